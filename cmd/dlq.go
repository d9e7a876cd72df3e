package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/legis-analyzer/internal/analysis"
	"github.com/sells-group/legis-analyzer/internal/resilience"
	"github.com/sells-group/legis-analyzer/internal/store"
)

var (
	dlqErrorType string
	dlqLimit     int
)

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Inspect and replay the dead letter queue",
}

var dlqListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued failures",
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

		entries, err := st.DequeueDLQ(ctx, resilience.DLQFilter{
			ErrorType: dlqErrorType,
			Limit:     dlqLimit,
		})
		if err != nil {
			return eris.Wrap(err, "list DLQ")
		}

		total, err := st.CountDLQ(ctx)
		if err != nil {
			return eris.Wrap(err, "count DLQ")
		}
		zap.L().Info("dead letter queue",
			zap.Int("total", total),
			zap.Int("due", len(entries)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	},
}

var dlqRetryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Replay due transient failures through the analyzer",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "analyze")
		if err != nil {
			return err
		}
		defer env.Close()

		retried, failed, err := replayDLQ(ctx, env.Store, env.Analyzer, dlqLimit)
		if err != nil {
			return err
		}

		zap.L().Info("DLQ replay complete",
			zap.Int("retried", retried),
			zap.Int("failed_again", failed),
		)
		return nil
	},
}

var dlqRemoveCmd = &cobra.Command{
	Use:   "remove [entryID]",
	Short: "Remove an entry from the queue",
	Args:  cobra.ExactArgs(1),
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

		if err := st.RemoveDLQ(ctx, args[0]); err != nil {
			return eris.Wrap(err, "remove DLQ entry")
		}
		zap.L().Info("entry removed", zap.String("id", args[0]))
		return nil
	},
}

// replayDLQ re-runs the analysis for every due transient entry. A successful
// run removes the entry; another failure pushes its next attempt out on the
// entry's backoff schedule.
func replayDLQ(ctx context.Context, st store.Store, analyzer *analysis.Analyzer, limit int) (retried, failed int, err error) {
	entries, err := st.DequeueDLQ(ctx, resilience.DLQFilter{ErrorType: "transient", Limit: limit})
	if err != nil {
		return 0, 0, eris.Wrap(err, "dequeue DLQ")
	}

	for _, entry := range entries {
		if !entry.CanRetry() {
			continue
		}

		if _, runErr := analyzer.Analyze(ctx, entry.BillID); runErr != nil {
			failed++
			nextAt := time.Now().UTC().Add(entry.NextRetryDelay())
			if incErr := st.IncrementDLQRetry(ctx, entry.ID, nextAt, runErr.Error()); incErr != nil {
				zap.L().Warn("failed to record DLQ retry",
					zap.String("id", entry.ID),
					zap.Error(incErr),
				)
			}
			continue
		}

		retried++
		if rmErr := st.RemoveDLQ(ctx, entry.ID); rmErr != nil {
			zap.L().Warn("failed to remove replayed DLQ entry",
				zap.String("id", entry.ID),
				zap.Error(rmErr),
			)
		}
	}
	return retried, failed, nil
}

func init() {
	dlqCmd.PersistentFlags().StringVar(&dlqErrorType, "error-type", "", "filter by error type (transient or permanent)")
	dlqCmd.PersistentFlags().IntVar(&dlqLimit, "limit", 50, "max entries to process")
	dlqCmd.AddCommand(dlqListCmd, dlqRetryCmd, dlqRemoveCmd)
	rootCmd.AddCommand(dlqCmd)
}
