package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/legis-analyzer/internal/model"
	"github.com/sells-group/legis-analyzer/internal/resilience"
)

// SQLiteStore implements Store backed by a local SQLite file. Used for
// single-user runs and tests where standing up Postgres is overkill.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (or creates) a SQLite database at path.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}

	// Single writer; WAL keeps readers unblocked during analysis writes.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: %s", p)
		}
	}
	db.SetMaxOpenConns(1)

	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS bills (
	id             TEXT PRIMARY KEY,
	external_id    TEXT NOT NULL DEFAULT '',
	bill_number    TEXT NOT NULL DEFAULT '',
	title          TEXT NOT NULL DEFAULT '',
	description    TEXT NOT NULL DEFAULT '',
	govt_type      TEXT NOT NULL DEFAULT '',
	govt_source    TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT '',
	text           BLOB,
	text_is_binary INTEGER NOT NULL DEFAULT 0,
	updated_at     TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_bills_bill_number ON bills(bill_number);

CREATE TABLE IF NOT EXISTS bill_analyses (
	id                       TEXT PRIMARY KEY,
	bill_id                  TEXT NOT NULL REFERENCES bills(id),
	version                  INTEGER NOT NULL,
	previous_version_id      TEXT,
	analysis_date            TIMESTAMP NOT NULL,
	model_version            TEXT NOT NULL DEFAULT '',
	summary                  TEXT NOT NULL DEFAULT '',
	key_points               TEXT NOT NULL DEFAULT '[]',
	public_health_impacts    TEXT NOT NULL DEFAULT '{}',
	local_government_impacts TEXT NOT NULL DEFAULT '{}',
	economic_impacts         TEXT NOT NULL DEFAULT '{}',
	environmental_impacts    TEXT NOT NULL DEFAULT '[]',
	education_impacts        TEXT NOT NULL DEFAULT '[]',
	infrastructure_impacts   TEXT NOT NULL DEFAULT '[]',
	recommended_actions      TEXT NOT NULL DEFAULT '[]',
	immediate_actions        TEXT NOT NULL DEFAULT '[]',
	resource_needs           TEXT NOT NULL DEFAULT '[]',
	primary_category         TEXT NOT NULL DEFAULT 'unset',
	impact_level             TEXT NOT NULL DEFAULT 'unset',
	relevance_to_region      TEXT NOT NULL DEFAULT 'unset',
	raw                      TEXT,
	validated                INTEGER NOT NULL DEFAULT 0,
	UNIQUE (bill_id, version)
);

CREATE INDEX IF NOT EXISTS idx_bill_analyses_bill_id ON bill_analyses(bill_id);

CREATE TABLE IF NOT EXISTS bill_priorities (
	bill_id             TEXT PRIMARY KEY REFERENCES bills(id),
	health_relevance    INTEGER NOT NULL DEFAULT 0,
	local_gov_relevance INTEGER NOT NULL DEFAULT 0,
	overall_priority    INTEGER NOT NULL DEFAULT 0,
	auto_categorized    INTEGER NOT NULL DEFAULT 0,
	manually_reviewed   INTEGER NOT NULL DEFAULT 0,
	auto_categories     TEXT NOT NULL DEFAULT '[]',
	updated_at          TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS dead_letter_queue (
	id             TEXT PRIMARY KEY,
	bill_id        TEXT NOT NULL,
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL DEFAULT 'transient',
	failed_stage   TEXT,
	retry_count    INTEGER NOT NULL DEFAULT 0,
	max_retries    INTEGER NOT NULL DEFAULT 3,
	next_retry_at  TIMESTAMP NOT NULL,
	created_at     TIMESTAMP NOT NULL,
	last_failed_at TIMESTAMP NOT NULL
);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return dbErr("ping", s.db.PingContext(ctx))
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return dbErr("migrate", err)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func checkRowsAffected(res sql.Result, op, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return dbErr(op, err)
	}
	if n == 0 {
		return dbErr(op, eris.Errorf("not found: %s", id))
	}
	return nil
}

func (s *SQLiteStore) GetBill(ctx context.Context, id string) (*model.Bill, error) {
	var b model.Bill
	err := s.db.QueryRowContext(ctx,
		`SELECT id, external_id, bill_number, title, description, govt_type, govt_source, status, text, text_is_binary, updated_at FROM bills WHERE id = ?`,
		id,
	).Scan(&b.ID, &b.ExternalID, &b.BillNumber, &b.Title, &b.Description,
		&b.GovtType, &b.GovtSource, &b.Status, &b.Text, &b.TextIsBinary, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, dbErr(fmt.Sprintf("get bill %s", id), err)
	}
	return &b, nil
}

func (s *SQLiteStore) UpsertBill(ctx context.Context, bill model.Bill) error {
	if bill.ID == "" {
		bill.ID = uuid.New().String()
	}
	if bill.UpdatedAt.IsZero() {
		bill.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bills (id, external_id, bill_number, title, description, govt_type, govt_source, status, text, text_is_binary, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   external_id = excluded.external_id, bill_number = excluded.bill_number,
		   title = excluded.title, description = excluded.description,
		   govt_type = excluded.govt_type, govt_source = excluded.govt_source,
		   status = excluded.status, text = excluded.text,
		   text_is_binary = excluded.text_is_binary, updated_at = excluded.updated_at`,
		bill.ID, bill.ExternalID, bill.BillNumber, bill.Title, bill.Description,
		bill.GovtType, bill.GovtSource, bill.Status, bill.Text, bill.TextIsBinary, bill.UpdatedAt,
	)
	return dbErr("upsert bill", err)
}

func (s *SQLiteStore) ListBillIDs(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM bills ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, dbErr("list bill ids", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, dbErr("scan bill id", err)
		}
		ids = append(ids, id)
	}
	return ids, dbErr("list bill ids iterate", rows.Err())
}

func (s *SQLiteStore) CreateAnalysis(ctx context.Context, rec *model.AnalysisRecord) (*model.AnalysisRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.AnalysisDate.IsZero() {
		rec.AnalysisDate = time.Now().UTC()
	}
	rec.Analysis.Normalize()
	normalizeEnums(rec.BillID, &rec.Analysis)

	cols, err := marshalAnalysisColumns(&rec.Analysis)
	if err != nil {
		return nil, dbErr("marshal analysis", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, dbErr("create analysis: begin", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var prevID string
	var maxVersion int
	err = tx.QueryRowContext(ctx,
		`SELECT id, version FROM bill_analyses WHERE bill_id = ? ORDER BY version DESC LIMIT 1`,
		rec.BillID,
	).Scan(&prevID, &maxVersion)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		rec.Version = 1
		rec.PreviousVersionID = nil
	case err != nil:
		return nil, dbErr("create analysis: read max version", err)
	default:
		rec.Version = maxVersion + 1
		rec.PreviousVersionID = &prevID
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO bill_analyses
		 (id, bill_id, version, previous_version_id, analysis_date, model_version,
		  summary, key_points, public_health_impacts, local_government_impacts,
		  economic_impacts, environmental_impacts, education_impacts,
		  infrastructure_impacts, recommended_actions, immediate_actions,
		  resource_needs, primary_category, impact_level, relevance_to_region,
		  raw, validated)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.BillID, rec.Version, rec.PreviousVersionID, rec.AnalysisDate, rec.ModelVersion,
		rec.Analysis.Summary, cols.keyPoints, cols.publicHealth, cols.localGov,
		cols.economic, cols.environmental, cols.education,
		cols.infrastructure, cols.recommended, cols.immediate,
		cols.resourceNeeds, string(rec.Analysis.ImpactSummary.PrimaryCategory),
		string(rec.Analysis.ImpactSummary.ImpactLevel),
		string(rec.Analysis.ImpactSummary.RelevanceToRegion),
		string(rec.Raw), rec.Validated,
	)
	if err != nil {
		return nil, dbErr("create analysis: insert", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, dbErr("create analysis: commit", err)
	}
	return rec, nil
}

func (s *SQLiteStore) GetLatestAnalysis(ctx context.Context, billID string) (*model.AnalysisRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+analysisColumns+` FROM bill_analyses WHERE bill_id = ? ORDER BY version DESC LIMIT 1`,
		billID,
	)
	rec, err := scanAnalysisRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, dbErr(fmt.Sprintf("get latest analysis for %s", billID), err)
	}
	return rec, nil
}

func (s *SQLiteStore) ListAnalyses(ctx context.Context, billID string) ([]model.AnalysisRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+analysisColumns+` FROM bill_analyses WHERE bill_id = ? ORDER BY version ASC`,
		billID,
	)
	if err != nil {
		return nil, dbErr("list analyses", err)
	}
	defer rows.Close()

	var recs []model.AnalysisRecord
	for rows.Next() {
		rec, err := scanAnalysisRecord(rows)
		if err != nil {
			return nil, dbErr("scan analysis", err)
		}
		recs = append(recs, *rec)
	}
	return recs, dbErr("list analyses iterate", rows.Err())
}

func (s *SQLiteStore) GetPriority(ctx context.Context, billID string) (*model.Priority, error) {
	var p model.Priority
	var categoriesJSON []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT bill_id, health_relevance, local_gov_relevance, overall_priority, auto_categorized, manually_reviewed, auto_categories, updated_at
		 FROM bill_priorities WHERE bill_id = ?`,
		billID,
	).Scan(&p.BillID, &p.HealthRelevance, &p.LocalGovRelevance, &p.OverallPriority,
		&p.AutoCategorized, &p.ManuallyReviewed, &categoriesJSON, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, dbErr("get priority", err)
	}
	if err := json.Unmarshal(categoriesJSON, &p.AutoCategories); err != nil {
		return nil, dbErr("unmarshal auto categories", err)
	}
	return &p, nil
}

func (s *SQLiteStore) UpsertPriority(ctx context.Context, p model.Priority) error {
	categoriesJSON, err := json.Marshal(p.AutoCategories)
	if err != nil {
		return dbErr("marshal auto categories", err)
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO bill_priorities
		 (bill_id, health_relevance, local_gov_relevance, overall_priority, auto_categorized, manually_reviewed, auto_categories, updated_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?, ?)
		 ON CONFLICT (bill_id) DO UPDATE SET
		   health_relevance = excluded.health_relevance,
		   local_gov_relevance = excluded.local_gov_relevance,
		   overall_priority = excluded.overall_priority,
		   auto_categorized = excluded.auto_categorized,
		   auto_categories = excluded.auto_categories,
		   updated_at = excluded.updated_at
		 WHERE bill_priorities.manually_reviewed = 0`,
		p.BillID, p.HealthRelevance, p.LocalGovRelevance, p.OverallPriority,
		p.AutoCategorized, categoriesJSON, p.UpdatedAt,
	)
	return dbErr("upsert priority", err)
}

func (s *SQLiteStore) SetManuallyReviewed(ctx context.Context, billID string, reviewed bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE bill_priorities SET manually_reviewed = ?, updated_at = ? WHERE bill_id = ?`,
		reviewed, time.Now().UTC(), billID,
	)
	if err != nil {
		return dbErr(fmt.Sprintf("set manually reviewed %s", billID), err)
	}
	return checkRowsAffected(res, "set manually reviewed", billID)
}

func (s *SQLiteStore) EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dead_letter_queue
		 (id, bill_id, error, error_type, failed_stage, retry_count, max_retries, next_retry_at, created_at, last_failed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   error = excluded.error, error_type = excluded.error_type,
		   failed_stage = excluded.failed_stage, retry_count = excluded.retry_count,
		   next_retry_at = excluded.next_retry_at, last_failed_at = excluded.last_failed_at`,
		entry.ID, entry.BillID, entry.Error, entry.ErrorType,
		entry.FailedStage, entry.RetryCount, entry.MaxRetries,
		entry.NextRetryAt, entry.CreatedAt, entry.LastFailedAt,
	)
	return dbErr("enqueue dlq", err)
}

func (s *SQLiteStore) DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	query := `SELECT id, bill_id, error, error_type, failed_stage, retry_count, max_retries, next_retry_at, created_at, last_failed_at
	          FROM dead_letter_queue
	          WHERE next_retry_at <= ? AND retry_count < max_retries`
	args := []any{time.Now().UTC()}

	if filter.ErrorType != "" {
		query += ` AND error_type = ?`
		args = append(args, filter.ErrorType)
	}

	query += ` ORDER BY next_retry_at ASC LIMIT ?`
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbErr("dequeue dlq", err)
	}
	defer rows.Close()

	var entries []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		var failedStage sql.NullString
		if err := rows.Scan(&e.ID, &e.BillID, &e.Error, &e.ErrorType,
			&failedStage, &e.RetryCount, &e.MaxRetries,
			&e.NextRetryAt, &e.CreatedAt, &e.LastFailedAt); err != nil {
			return nil, dbErr("scan dlq entry", err)
		}
		e.FailedStage = failedStage.String
		entries = append(entries, e)
	}
	return entries, dbErr("dequeue dlq iterate", rows.Err())
}

func (s *SQLiteStore) IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE dead_letter_queue
		 SET retry_count = retry_count + 1, next_retry_at = ?, error = ?, last_failed_at = ?
		 WHERE id = ?`,
		nextRetryAt, lastErr, time.Now().UTC(), id,
	)
	if err != nil {
		return dbErr(fmt.Sprintf("increment dlq retry %s", id), err)
	}
	return checkRowsAffected(res, "increment dlq retry", id)
}

func (s *SQLiteStore) RemoveDLQ(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM dead_letter_queue WHERE id = ?`, id)
	return dbErr("remove dlq", err)
}

func (s *SQLiteStore) CountDLQ(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dead_letter_queue`).Scan(&count)
	return count, dbErr("count dlq", err)
}
