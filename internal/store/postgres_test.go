package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/legis-analyzer/internal/model"
	"github.com/sells-group/legis-analyzer/internal/resilience"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &PostgresStore{pool: mock}, mock
}

func billRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "external_id", "bill_number", "title", "description",
		"govt_type", "govt_source", "status", "text", "text_is_binary", "updated_at",
	})
}

func TestPostgresGetBill(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, external_id, bill_number, title, description, govt_type, govt_source, status, text, text_is_binary, updated_at FROM bills WHERE id = \$1`).
		WithArgs("bill-1").
		WillReturnRows(billRows().AddRow(
			"bill-1", "ext-9", "HB 1234", "Water Quality Act", "An act about water",
			"state", "texas", "introduced", []byte("bill text"), false, now,
		))

	bill, err := store.GetBill(context.Background(), "bill-1")
	require.NoError(t, err)
	require.NotNil(t, bill)
	assert.Equal(t, "HB 1234", bill.BillNumber)
	assert.Equal(t, []byte("bill text"), bill.Text)
	assert.False(t, bill.TextIsBinary)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetBill_NotFound(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, external_id, .* FROM bills WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	bill, err := store.GetBill(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, bill)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsertBill(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO bills .* ON CONFLICT \(id\) DO UPDATE SET`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.UpsertBill(context.Background(), model.Bill{
		ID:         "bill-1",
		BillNumber: "SB 42",
		Title:      "Rural Broadband Act",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateAnalysis_FirstVersion(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, version FROM bill_analyses WHERE bill_id = \$1 ORDER BY version DESC LIMIT 1 FOR UPDATE`).
		WithArgs("bill-1").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO bill_analyses`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	rec, err := store.CreateAnalysis(context.Background(), &model.AnalysisRecord{
		BillID:       "bill-1",
		ModelVersion: "claude-sonnet-4-5-20250929",
		Analysis:     model.Analysis{Summary: "A summary."},
		Validated:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Version)
	assert.Nil(t, rec.PreviousVersionID)
	assert.NotEmpty(t, rec.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateAnalysis_ChainsVersions(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, version FROM bill_analyses .* FOR UPDATE`).
		WithArgs("bill-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "version"}).AddRow("prev-analysis", 3))
	mock.ExpectExec(`INSERT INTO bill_analyses`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	rec, err := store.CreateAnalysis(context.Background(), &model.AnalysisRecord{
		BillID:   "bill-1",
		Analysis: model.Analysis{Summary: "Revised."},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, rec.Version)
	require.NotNil(t, rec.PreviousVersionID)
	assert.Equal(t, "prev-analysis", *rec.PreviousVersionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateAnalysis_RaceLoserFails(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	// Both writers saw no prior row; the loser hits the unique constraint.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, version FROM bill_analyses .* FOR UPDATE`).
		WithArgs("bill-1").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO bill_analyses`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(eris.New(`duplicate key value violates unique constraint "bill_analyses_bill_id_version_key"`))
	mock.ExpectRollback()

	_, err := store.CreateAnalysis(context.Background(), &model.AnalysisRecord{
		BillID:   "bill-1",
		Analysis: model.Analysis{Summary: "loser"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create analysis: insert")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateAnalysis_NormalizesUnknownEnums(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, version FROM bill_analyses .* FOR UPDATE`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO bill_analyses`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	rec, err := store.CreateAnalysis(context.Background(), &model.AnalysisRecord{
		BillID: "bill-1",
		Analysis: model.Analysis{
			Summary: "s",
			ImpactSummary: model.ImpactSummary{
				PrimaryCategory:   model.ImpactCategory("weird"),
				ImpactLevel:       model.ImpactHigh,
				RelevanceToRegion: model.RelevanceLevel("nonsense"),
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, model.CategoryUnset, rec.Analysis.ImpactSummary.PrimaryCategory)
	assert.Equal(t, model.ImpactHigh, rec.Analysis.ImpactSummary.ImpactLevel)
	assert.Equal(t, model.RelevanceUnset, rec.Analysis.ImpactSummary.RelevanceToRegion)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetLatestAnalysis_NotFound(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .* FROM bill_analyses WHERE bill_id = \$1 ORDER BY version DESC LIMIT 1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	rec, err := store.GetLatestAnalysis(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsertPriority_GuardsManualReview(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO bill_priorities .* ON CONFLICT \(bill_id\) DO UPDATE SET .* WHERE bill_priorities\.manually_reviewed = FALSE`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	err := store.UpsertPriority(context.Background(), model.Priority{
		BillID:          "bill-1",
		HealthRelevance: 75,
		OverallPriority: 60,
		AutoCategorized: true,
		AutoCategories:  []string{"public_health"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSetManuallyReviewed_NotFound(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE bill_priorities SET manually_reviewed`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.SetManuallyReviewed(context.Background(), "missing", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDLQRoundtrip(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	mock.ExpectExec(`INSERT INTO dead_letter_queue`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT id, bill_id, error, error_type, .* FROM dead_letter_queue`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "bill_id", "error", "error_type", "failed_stage",
			"retry_count", "max_retries", "next_retry_at", "created_at", "last_failed_at",
		}).AddRow("dlq-1", "bill-1", "rate limited", "transient", ptr("llm_call"), 1, 3, now, now, now))
	mock.ExpectExec(`DELETE FROM dead_letter_queue WHERE id = \$1`).
		WithArgs("dlq-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	err := store.EnqueueDLQ(context.Background(), resilience.DLQEntry{
		BillID:      "bill-1",
		Error:       "rate limited",
		ErrorType:   "transient",
		FailedStage: "llm_call",
		MaxRetries:  3,
		NextRetryAt: now,
	})
	require.NoError(t, err)

	entries, err := store.DequeueDLQ(context.Background(), resilience.DLQFilter{ErrorType: "transient"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "bill-1", entries[0].BillID)
	assert.Equal(t, "llm_call", entries[0].FailedStage)

	require.NoError(t, store.RemoveDLQ(context.Background(), "dlq-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresIncrementDLQRetry_NotFound(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE dead_letter_queue`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.IncrementDLQRetry(context.Background(), "missing", time.Now(), "still failing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func ptr(s string) *string { return &s }
