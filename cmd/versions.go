package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	versionsBillID string
	versionsLatest bool
)

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List the analysis version chain for a bill",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("versions"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if versionsLatest {
			rec, err := st.GetLatestAnalysis(ctx, versionsBillID)
			if err != nil {
				return eris.Wrap(err, "get latest analysis")
			}
			if rec == nil {
				return eris.Errorf("no analyses for bill %s", versionsBillID)
			}
			return enc.Encode(rec)
		}

		records, err := st.ListAnalyses(ctx, versionsBillID)
		if err != nil {
			return eris.Wrap(err, "list analyses")
		}
		return enc.Encode(records)
	},
}

func init() {
	versionsCmd.Flags().StringVar(&versionsBillID, "bill", "", "bill ID (required)")
	versionsCmd.Flags().BoolVar(&versionsLatest, "latest", false, "print only the latest version")
	_ = versionsCmd.MarkFlagRequired("bill")
	rootCmd.AddCommand(versionsCmd)
}
