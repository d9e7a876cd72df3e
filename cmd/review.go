package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	reviewBillID string
	reviewClear  bool
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Mark a bill's priority as manually reviewed",
	Long:  "Sets the manual-review flag on a bill's priority, which locks the scores against automated recalculation. --clear releases the lock.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("dlq"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		reviewed := !reviewClear
		if err := st.SetManuallyReviewed(ctx, reviewBillID, reviewed); err != nil {
			return eris.Wrap(err, "set manually reviewed")
		}

		zap.L().Info("manual review flag updated",
			zap.String("bill_id", reviewBillID),
			zap.Bool("reviewed", reviewed),
		)

		p, err := st.GetPriority(ctx, reviewBillID)
		if err != nil {
			return eris.Wrap(err, "get priority")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	},
}

func init() {
	reviewCmd.Flags().StringVar(&reviewBillID, "bill", "", "bill ID (required)")
	reviewCmd.Flags().BoolVar(&reviewClear, "clear", false, "clear the manual-review flag instead of setting it")
	_ = reviewCmd.MarkFlagRequired("bill")
	rootCmd.AddCommand(reviewCmd)
}
