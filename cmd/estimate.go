package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var estimateBillID string

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate analysis cost for a bill without calling the model",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "estimate")
		if err != nil {
			return err
		}
		defer env.Close()

		est, err := env.Analyzer.EstimateCost(ctx, estimateBillID)
		if err != nil {
			return eris.Wrap(err, "estimate cost")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(est)
	},
}

func init() {
	estimateCmd.Flags().StringVar(&estimateBillID, "bill", "", "bill ID (required)")
	_ = estimateCmd.MarkFlagRequired("bill")
	rootCmd.AddCommand(estimateCmd)
}
