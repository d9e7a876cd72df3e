package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/legis-analyzer/internal/analysis"
	"github.com/sells-group/legis-analyzer/pkg/anthropic"
)

var (
	batchLimit    int
	batchNoPrimer bool
)

var batchCmd = &cobra.Command{
	Use:   "batch [billID...]",
	Short: "Analyze a batch of bills concurrently",
	Long:  "Analyzes the given bill IDs, or every stored bill when none are given. Failed bills land in the dead letter queue for later replay.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "batch")
		if err != nil {
			return err
		}
		defer env.Close()

		billIDs := args
		if len(billIDs) == 0 {
			billIDs, err = env.Store.ListBillIDs(ctx, batchLimit)
			if err != nil {
				return eris.Wrap(err, "list bills")
			}
		} else if batchLimit > 0 && len(billIDs) > batchLimit {
			billIDs = billIDs[:batchLimit]
		}

		if len(billIDs) == 0 {
			zap.L().Info("no bills to analyze")
			return nil
		}

		if !batchNoPrimer {
			warmPromptCache(ctx, env.Client)
		}

		zap.L().Info("processing batch",
			zap.Int("bills", len(billIDs)),
			zap.Int("concurrency", cfg.Batch.MaxConcurrentBills),
		)

		result := env.Analyzer.BatchAnalyze(ctx, billIDs, cfg.Batch.MaxConcurrentBills)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

// warmPromptCache issues one small request so the shared system prompt is
// cached before the batch fans out. Failure is non-fatal; the first real
// call will write the cache instead.
func warmPromptCache(ctx context.Context, client anthropic.Client) {
	_, err := anthropic.PrimerRequest(ctx, client, anthropic.MessageRequest{
		Model:     cfg.Anthropic.Model,
		MaxTokens: 1,
		System:    anthropic.BuildCachedSystemBlocks(analysis.SystemInstruction(true)),
		Messages:  []anthropic.Message{{Role: "user", Content: "ok"}},
	})
	if err != nil {
		zap.L().Warn("prompt cache warm-up failed", zap.Error(err))
		return
	}
	zap.L().Debug("prompt cache warmed")
}

func init() {
	batchCmd.Flags().IntVar(&batchLimit, "limit", 100, "max number of bills to process")
	batchCmd.Flags().BoolVar(&batchNoPrimer, "no-primer", false, "skip the prompt cache warm-up request")
	rootCmd.AddCommand(batchCmd)
}
