package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/legis-analyzer/internal/resilience"
)

func enqueueDueEntry(t *testing.T, st interface {
	EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error
}, id, billID string) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, st.EnqueueDLQ(context.Background(), resilience.DLQEntry{
		ID:           id,
		BillID:       billID,
		Error:        "model call failed",
		ErrorType:    "transient",
		FailedStage:  "llm_call",
		MaxRetries:   3,
		NextRetryAt:  now.Add(-time.Minute),
		CreatedAt:    now.Add(-time.Hour),
		LastFailedAt: now.Add(-time.Hour),
	}))
}

func TestReplayDLQ_SuccessRemovesEntry(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedBill(t, st, "bill-dlq-1")
	enqueueDueEntry(t, st, "entry-1", "bill-dlq-1")

	analyzer := newTestAnalyzer(t, st, &stubModel{text: stubAnalysisJSON})

	retried, failed, err := replayDLQ(ctx, st, analyzer, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, retried)
	assert.Equal(t, 0, failed)

	// Entry is gone and the analysis was persisted.
	count, err := st.CountDLQ(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	rec, err := st.GetLatestAnalysis(ctx, "bill-dlq-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 1, rec.Version)
}

func TestReplayDLQ_FailurePushesRetryOut(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedBill(t, st, "bill-dlq-2")
	enqueueDueEntry(t, st, "entry-2", "bill-dlq-2")

	analyzer := newTestAnalyzer(t, st, &stubModel{err: errors.New("invalid request")})

	retried, failed, err := replayDLQ(ctx, st, analyzer, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, retried)
	assert.Equal(t, 1, failed)

	// Entry survives but is no longer due.
	count, err := st.CountDLQ(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	due, err := st.DequeueDLQ(ctx, resilience.DLQFilter{})
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestReplayDLQ_SkipsExhaustedEntries(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedBill(t, st, "bill-dlq-3")

	now := time.Now().UTC()
	require.NoError(t, st.EnqueueDLQ(ctx, resilience.DLQEntry{
		ID:          "entry-3",
		BillID:      "bill-dlq-3",
		Error:       "model call failed",
		ErrorType:   "permanent",
		MaxRetries:  3,
		NextRetryAt: now.Add(-time.Minute),
		CreatedAt:   now,
	}))

	model := &stubModel{text: stubAnalysisJSON}
	analyzer := newTestAnalyzer(t, st, model)

	retried, failed, err := replayDLQ(ctx, st, analyzer, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, retried)
	assert.Equal(t, 0, failed)
	assert.Equal(t, 0, model.calls)
}
