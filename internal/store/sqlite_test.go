package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/legis-analyzer/internal/model"
	"github.com/sells-group/legis-analyzer/internal/resilience"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLite(filepath.Join(t.TempDir(), "legis-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func seedBill(t *testing.T, store *SQLiteStore, id string) {
	t.Helper()
	require.NoError(t, store.UpsertBill(context.Background(), model.Bill{
		ID:         id,
		BillNumber: "HB 100",
		Title:      "Test Act",
		GovtType:   "state",
		Status:     "introduced",
		Text:       []byte("Section 1. This is a test act."),
	}))
}

func TestSQLiteBillRoundtrip(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	seedBill(t, store, "bill-1")

	bill, err := store.GetBill(ctx, "bill-1")
	require.NoError(t, err)
	require.NotNil(t, bill)
	assert.Equal(t, "HB 100", bill.BillNumber)
	assert.Equal(t, []byte("Section 1. This is a test act."), bill.Text)

	// Update path of the upsert.
	bill.Status = "passed"
	require.NoError(t, store.UpsertBill(ctx, *bill))
	bill, err = store.GetBill(ctx, "bill-1")
	require.NoError(t, err)
	assert.Equal(t, "passed", bill.Status)

	missing, err := store.GetBill(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	ids, err := store.ListBillIDs(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"bill-1"}, ids)
}

func TestSQLiteAnalysisVersionChain(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	seedBill(t, store, "bill-1")

	first, err := store.CreateAnalysis(ctx, &model.AnalysisRecord{
		BillID:       "bill-1",
		ModelVersion: "claude-sonnet-4-5-20250929",
		Analysis: model.Analysis{
			Summary:   "First pass.",
			KeyPoints: []model.KeyPoint{{Point: "Creates a fund", ImpactType: "positive"}},
			ImpactSummary: model.ImpactSummary{
				PrimaryCategory:   model.CategoryPublicHealth,
				ImpactLevel:       model.ImpactModerate,
				RelevanceToRegion: model.RelevanceHigh,
			},
		},
		Raw:       []byte(`{"summary":"First pass."}`),
		Validated: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Version)
	assert.Nil(t, first.PreviousVersionID)

	second, err := store.CreateAnalysis(ctx, &model.AnalysisRecord{
		BillID:   "bill-1",
		Analysis: model.Analysis{Summary: "Second pass."},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Version)
	require.NotNil(t, second.PreviousVersionID)
	assert.Equal(t, first.ID, *second.PreviousVersionID)

	latest, err := store.GetLatestAnalysis(ctx, "bill-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 2, latest.Version)
	assert.Equal(t, "Second pass.", latest.Analysis.Summary)

	all, err := store.ListAnalyses(ctx, "bill-1")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 1, all[0].Version)
	assert.Equal(t, "First pass.", all[0].Analysis.Summary)
	assert.Equal(t, model.CategoryPublicHealth, all[0].Analysis.ImpactSummary.PrimaryCategory)
	require.Len(t, all[0].Analysis.KeyPoints, 1)
	assert.Equal(t, "Creates a fund", all[0].Analysis.KeyPoints[0].Point)
	assert.True(t, all[0].Validated)
}

func TestSQLiteGetLatestAnalysis_NoRows(t *testing.T) {
	store := newTestSQLiteStore(t)

	rec, err := store.GetLatestAnalysis(context.Background(), "bill-without-analyses")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestSQLiteManualReviewLocksPriority(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()
	seedBill(t, store, "bill-1")

	require.NoError(t, store.UpsertPriority(ctx, model.Priority{
		BillID:            "bill-1",
		HealthRelevance:   50,
		LocalGovRelevance: 40,
		OverallPriority:   45,
		AutoCategorized:   true,
		AutoCategories:    []string{"public_health"},
	}))

	require.NoError(t, store.SetManuallyReviewed(ctx, "bill-1", true))

	// Re-scoring after manual review must not change the stored scores.
	require.NoError(t, store.UpsertPriority(ctx, model.Priority{
		BillID:          "bill-1",
		HealthRelevance: 99,
		OverallPriority: 99,
	}))

	p, err := store.GetPriority(ctx, "bill-1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 50, p.HealthRelevance)
	assert.Equal(t, 45, p.OverallPriority)
	assert.True(t, p.ManuallyReviewed)

	// Clearing the flag re-opens the row to automated scoring.
	require.NoError(t, store.SetManuallyReviewed(ctx, "bill-1", false))
	require.NoError(t, store.UpsertPriority(ctx, model.Priority{
		BillID:          "bill-1",
		HealthRelevance: 75,
		OverallPriority: 60,
	}))
	p, err = store.GetPriority(ctx, "bill-1")
	require.NoError(t, err)
	assert.Equal(t, 75, p.HealthRelevance)
}

func TestSQLiteGetPriority_NotFound(t *testing.T) {
	store := newTestSQLiteStore(t)

	p, err := store.GetPriority(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestSQLiteSetManuallyReviewed_NotFound(t *testing.T) {
	store := newTestSQLiteStore(t)

	err := store.SetManuallyReviewed(context.Background(), "missing", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLiteDLQLifecycle(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Minute)
	entry := resilience.DLQEntry{
		BillID:       "bill-1",
		Error:        "connection reset by peer",
		ErrorType:    "transient",
		FailedStage:  "llm_call",
		MaxRetries:   3,
		NextRetryAt:  past,
		CreatedAt:    past,
		LastFailedAt: past,
	}
	require.NoError(t, store.EnqueueDLQ(ctx, entry))

	count, err := store.CountDLQ(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	due, err := store.DequeueDLQ(ctx, resilience.DLQFilter{ErrorType: "transient"})
	require.NoError(t, err)
	require.Len(t, due, 1)
	got := due[0]
	assert.Equal(t, "bill-1", got.BillID)
	assert.Equal(t, "llm_call", got.FailedStage)
	assert.Equal(t, 0, got.RetryCount)

	// Pushed into the future, the entry is no longer due.
	future := time.Now().UTC().Add(time.Hour)
	require.NoError(t, store.IncrementDLQRetry(ctx, got.ID, future, "still failing"))
	due, err = store.DequeueDLQ(ctx, resilience.DLQFilter{})
	require.NoError(t, err)
	assert.Empty(t, due)

	require.NoError(t, store.RemoveDLQ(ctx, got.ID))
	count, err = store.CountDLQ(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestSQLiteDLQ_ExhaustedRetriesNotDequeued(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, store.EnqueueDLQ(ctx, resilience.DLQEntry{
		ID:           "dlq-exhausted",
		BillID:       "bill-1",
		Error:        "boom",
		ErrorType:    "transient",
		RetryCount:   3,
		MaxRetries:   3,
		NextRetryAt:  past,
		CreatedAt:    past,
		LastFailedAt: past,
	}))

	due, err := store.DequeueDLQ(ctx, resilience.DLQFilter{})
	require.NoError(t, err)
	assert.Empty(t, due)

	count, err := store.CountDLQ(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
