package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/legis-analyzer/internal/model"
)

var (
	analyzeBillID string
	analyzeAsync  bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a single bill",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "analyze")
		if err != nil {
			return err
		}
		defer env.Close()

		var rec *model.AnalysisRecord
		if analyzeAsync {
			res := <-env.Analyzer.AnalyzeAsync(ctx, analyzeBillID)
			rec, err = res.Record, res.Err
		} else {
			rec, err = env.Analyzer.Analyze(ctx, analyzeBillID)
		}
		if err != nil {
			return eris.Wrap(err, "analyze bill")
		}

		zap.L().Info("analysis complete",
			zap.String("bill_id", rec.BillID),
			zap.Int("version", rec.Version),
			zap.String("impact_level", string(rec.Analysis.ImpactSummary.ImpactLevel)),
			zap.Bool("validated", rec.Validated),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeBillID, "bill", "", "bill ID (required)")
	analyzeCmd.Flags().BoolVar(&analyzeAsync, "async", false, "run through the async channel interface")
	_ = analyzeCmd.MarkFlagRequired("bill")
	rootCmd.AddCommand(analyzeCmd)
}
