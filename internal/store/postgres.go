package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/legis-analyzer/internal/db"
	"github.com/sells-group/legis-analyzer/internal/model"
	"github.com/sells-group/legis-analyzer/internal/resilience"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_bill":        `SELECT id, external_id, bill_number, title, description, govt_type, govt_source, status, text, text_is_binary, updated_at FROM bills WHERE id = $1`,
	"latest_analysis": `SELECT id, version FROM bill_analyses WHERE bill_id = $1 ORDER BY version DESC LIMIT 1`,
	"get_priority":    `SELECT bill_id, health_relevance, local_gov_relevance, overall_priority, auto_categorized, manually_reviewed, auto_categories, updated_at FROM bill_priorities WHERE bill_id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool. The initial
// ping is retried because the database may still be starting up.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}

	pingCfg := resilience.FromRetryConfig(3, 1000, 5000, 2.0, 0.25)
	pingCfg.ShouldRetry = func(error) bool { return true }
	pingCfg.OnRetry = resilience.RetryLogger("postgres", "ping")
	if err := resilience.Do(ctx, pingCfg, func(ctx context.Context) error {
		return pool.Ping(ctx)
	}); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need direct
// query access (e.g., bulk import).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS bills (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	external_id    TEXT NOT NULL DEFAULT '',
	bill_number    TEXT NOT NULL DEFAULT '',
	title          TEXT NOT NULL DEFAULT '',
	description    TEXT NOT NULL DEFAULT '',
	govt_type      TEXT NOT NULL DEFAULT '',
	govt_source    TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT '',
	text           BYTEA,
	text_is_binary BOOLEAN NOT NULL DEFAULT FALSE,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_bills_bill_number ON bills(bill_number);
CREATE INDEX IF NOT EXISTS idx_bills_status ON bills(status);

CREATE TABLE IF NOT EXISTS bill_analyses (
	id                       TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	bill_id                  TEXT NOT NULL REFERENCES bills(id),
	version                  INTEGER NOT NULL,
	previous_version_id      TEXT,
	analysis_date            TIMESTAMPTZ NOT NULL DEFAULT now(),
	model_version            TEXT NOT NULL DEFAULT '',
	summary                  TEXT NOT NULL DEFAULT '',
	key_points               JSONB NOT NULL DEFAULT '[]',
	public_health_impacts    JSONB NOT NULL DEFAULT '{}',
	local_government_impacts JSONB NOT NULL DEFAULT '{}',
	economic_impacts         JSONB NOT NULL DEFAULT '{}',
	environmental_impacts    JSONB NOT NULL DEFAULT '[]',
	education_impacts        JSONB NOT NULL DEFAULT '[]',
	infrastructure_impacts   JSONB NOT NULL DEFAULT '[]',
	recommended_actions      JSONB NOT NULL DEFAULT '[]',
	immediate_actions        JSONB NOT NULL DEFAULT '[]',
	resource_needs           JSONB NOT NULL DEFAULT '[]',
	primary_category         TEXT NOT NULL DEFAULT 'unset',
	impact_level             TEXT NOT NULL DEFAULT 'unset',
	relevance_to_region      TEXT NOT NULL DEFAULT 'unset',
	raw                      JSONB,
	validated                BOOLEAN NOT NULL DEFAULT FALSE,
	UNIQUE (bill_id, version)
);

CREATE INDEX IF NOT EXISTS idx_bill_analyses_bill_id ON bill_analyses(bill_id);
CREATE INDEX IF NOT EXISTS idx_bill_analyses_impact_level ON bill_analyses(impact_level);

CREATE TABLE IF NOT EXISTS bill_priorities (
	bill_id             TEXT PRIMARY KEY REFERENCES bills(id),
	health_relevance    INTEGER NOT NULL DEFAULT 0,
	local_gov_relevance INTEGER NOT NULL DEFAULT 0,
	overall_priority    INTEGER NOT NULL DEFAULT 0,
	auto_categorized    BOOLEAN NOT NULL DEFAULT FALSE,
	manually_reviewed   BOOLEAN NOT NULL DEFAULT FALSE,
	auto_categories     JSONB NOT NULL DEFAULT '[]',
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_bill_priorities_overall ON bill_priorities(overall_priority DESC);

CREATE TABLE IF NOT EXISTS dead_letter_queue (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	bill_id        TEXT NOT NULL,
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL DEFAULT 'transient',
	failed_stage   TEXT,
	retry_count    INTEGER NOT NULL DEFAULT 0,
	max_retries    INTEGER NOT NULL DEFAULT 3,
	next_retry_at  TIMESTAMPTZ NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_failed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_dlq_error_type ON dead_letter_queue(error_type);
CREATE INDEX IF NOT EXISTS idx_dlq_next_retry ON dead_letter_queue(next_retry_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return dbErr("ping", err)
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return dbErr("migrate", err)
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetBill(ctx context.Context, id string) (*model.Bill, error) {
	var b model.Bill
	err := s.pool.QueryRow(ctx,
		`SELECT id, external_id, bill_number, title, description, govt_type, govt_source, status, text, text_is_binary, updated_at FROM bills WHERE id = $1`,
		id,
	).Scan(&b.ID, &b.ExternalID, &b.BillNumber, &b.Title, &b.Description,
		&b.GovtType, &b.GovtSource, &b.Status, &b.Text, &b.TextIsBinary, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, dbErr(fmt.Sprintf("get bill %s", id), err)
	}
	return &b, nil
}

func (s *PostgresStore) UpsertBill(ctx context.Context, bill model.Bill) error {
	if bill.ID == "" {
		bill.ID = uuid.New().String()
	}
	if bill.UpdatedAt.IsZero() {
		bill.UpdatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO bills (id, external_id, bill_number, title, description, govt_type, govt_source, status, text, text_is_binary, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO UPDATE SET
		   external_id = $2, bill_number = $3, title = $4, description = $5,
		   govt_type = $6, govt_source = $7, status = $8, text = $9,
		   text_is_binary = $10, updated_at = $11`,
		bill.ID, bill.ExternalID, bill.BillNumber, bill.Title, bill.Description,
		bill.GovtType, bill.GovtSource, bill.Status, bill.Text, bill.TextIsBinary, bill.UpdatedAt,
	)
	return dbErr("upsert bill", err)
}

func (s *PostgresStore) ListBillIDs(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM bills ORDER BY updated_at DESC LIMIT $1`, limit)
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

// CreateAnalysis inserts a new version-chained analysis record in one
// transaction. The prior max-version row is read under FOR UPDATE so two
// writers racing on the same bill serialize; the UNIQUE (bill_id, version)
// constraint rejects the loser when there was no prior row to lock.
func (s *PostgresStore) CreateAnalysis(ctx context.Context, rec *model.AnalysisRecord) (*model.AnalysisRecord, error) {
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

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, dbErr("create analysis: begin", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var prevID string
	var maxVersion int
	err = tx.QueryRow(ctx,
		`SELECT id, version FROM bill_analyses WHERE bill_id = $1 ORDER BY version DESC LIMIT 1 FOR UPDATE`,
		rec.BillID,
	).Scan(&prevID, &maxVersion)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		rec.Version = 1
		rec.PreviousVersionID = nil
	case err != nil:
		return nil, dbErr("create analysis: read max version", err)
	default:
		rec.Version = maxVersion + 1
		rec.PreviousVersionID = &prevID
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO bill_analyses
		 (id, bill_id, version, previous_version_id, analysis_date, model_version,
		  summary, key_points, public_health_impacts, local_government_impacts,
		  economic_impacts, environmental_impacts, education_impacts,
		  infrastructure_impacts, recommended_actions, immediate_actions,
		  resource_needs, primary_category, impact_level, relevance_to_region,
		  raw, validated)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`,
		rec.ID, rec.BillID, rec.Version, rec.PreviousVersionID, rec.AnalysisDate, rec.ModelVersion,
		rec.Analysis.Summary, cols.keyPoints, cols.publicHealth, cols.localGov,
		cols.economic, cols.environmental, cols.education,
		cols.infrastructure, cols.recommended, cols.immediate,
		cols.resourceNeeds, string(rec.Analysis.ImpactSummary.PrimaryCategory),
		string(rec.Analysis.ImpactSummary.ImpactLevel),
		string(rec.Analysis.ImpactSummary.RelevanceToRegion),
		[]byte(rec.Raw), rec.Validated,
	)
	if err != nil {
		return nil, dbErr("create analysis: insert", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, dbErr("create analysis: commit", err)
	}
	return rec, nil
}

const analysisColumns = `id, bill_id, version, previous_version_id, analysis_date, model_version,
	summary, key_points, public_health_impacts, local_government_impacts,
	economic_impacts, environmental_impacts, education_impacts,
	infrastructure_impacts, recommended_actions, immediate_actions,
	resource_needs, primary_category, impact_level, relevance_to_region,
	raw, validated`

func (s *PostgresStore) GetLatestAnalysis(ctx context.Context, billID string) (*model.AnalysisRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+analysisColumns+` FROM bill_analyses WHERE bill_id = $1 ORDER BY version DESC LIMIT 1`,
		billID,
	)
	rec, err := scanAnalysisRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, dbErr(fmt.Sprintf("get latest analysis for %s", billID), err)
	}
	return rec, nil
}

func (s *PostgresStore) ListAnalyses(ctx context.Context, billID string) ([]model.AnalysisRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+analysisColumns+` FROM bill_analyses WHERE bill_id = $1 ORDER BY version ASC`,
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

func (s *PostgresStore) GetPriority(ctx context.Context, billID string) (*model.Priority, error) {
	var p model.Priority
	var categoriesJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT bill_id, health_relevance, local_gov_relevance, overall_priority, auto_categorized, manually_reviewed, auto_categories, updated_at
		 FROM bill_priorities WHERE bill_id = $1`,
		billID,
	).Scan(&p.BillID, &p.HealthRelevance, &p.LocalGovRelevance, &p.OverallPriority,
		&p.AutoCategorized, &p.ManuallyReviewed, &categoriesJSON, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, dbErr("get priority", err)
	}
	if err := json.Unmarshal(categoriesJSON, &p.AutoCategories); err != nil {
		return nil, dbErr("unmarshal auto categories", err)
	}
	return &p, nil
}

// UpsertPriority writes derived priority scores. The WHERE clause on the
// conflict branch enforces the manual-review lock at the SQL level: a row a
// human has reviewed is never overwritten.
func (s *PostgresStore) UpsertPriority(ctx context.Context, p model.Priority) error {
	categoriesJSON, err := json.Marshal(p.AutoCategories)
	if err != nil {
		return dbErr("marshal auto categories", err)
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO bill_priorities
		 (bill_id, health_relevance, local_gov_relevance, overall_priority, auto_categorized, manually_reviewed, auto_categories, updated_at)
		 VALUES ($1, $2, $3, $4, $5, FALSE, $6, $7)
		 ON CONFLICT (bill_id) DO UPDATE SET
		   health_relevance = EXCLUDED.health_relevance,
		   local_gov_relevance = EXCLUDED.local_gov_relevance,
		   overall_priority = EXCLUDED.overall_priority,
		   auto_categorized = EXCLUDED.auto_categorized,
		   auto_categories = EXCLUDED.auto_categories,
		   updated_at = EXCLUDED.updated_at
		 WHERE bill_priorities.manually_reviewed = FALSE`,
		p.BillID, p.HealthRelevance, p.LocalGovRelevance, p.OverallPriority,
		p.AutoCategorized, categoriesJSON, p.UpdatedAt,
	)
	return dbErr("upsert priority", err)
}

func (s *PostgresStore) SetManuallyReviewed(ctx context.Context, billID string, reviewed bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE bill_priorities SET manually_reviewed = $1, updated_at = $2 WHERE bill_id = $3`,
		reviewed, time.Now().UTC(), billID,
	)
	if err != nil {
		return dbErr(fmt.Sprintf("set manually reviewed %s", billID), err)
	}
	if tag.RowsAffected() == 0 {
		return dbErr("set manually reviewed", eris.Errorf("priority not found: %s", billID))
	}
	return nil
}

// Dead letter queue methods

func (s *PostgresStore) EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO dead_letter_queue
		 (id, bill_id, error, error_type, failed_stage, retry_count, max_retries, next_retry_at, created_at, last_failed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET
		   error = $3, error_type = $4, failed_stage = $5, retry_count = $6,
		   next_retry_at = $8, last_failed_at = $10`,
		entry.ID, entry.BillID, entry.Error, entry.ErrorType,
		entry.FailedStage, entry.RetryCount, entry.MaxRetries,
		entry.NextRetryAt, entry.CreatedAt, entry.LastFailedAt,
	)
	return dbErr("enqueue dlq", err)
}

func (s *PostgresStore) DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	query := `SELECT id, bill_id, error, error_type, failed_stage, retry_count, max_retries, next_retry_at, created_at, last_failed_at
	          FROM dead_letter_queue
	          WHERE next_retry_at <= now() AND retry_count < max_retries`
	args := []any{}
	argIdx := 1

	if filter.ErrorType != "" {
		query += fmt.Sprintf(` AND error_type = $%d`, argIdx)
		args = append(args, filter.ErrorType)
		argIdx++
	}

	query += ` ORDER BY next_retry_at ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, dbErr("dequeue dlq", err)
	}
	defer rows.Close()

	var entries []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		var failedStage *string
		if err := rows.Scan(&e.ID, &e.BillID, &e.Error, &e.ErrorType,
			&failedStage, &e.RetryCount, &e.MaxRetries,
			&e.NextRetryAt, &e.CreatedAt, &e.LastFailedAt); err != nil {
			return nil, dbErr("scan dlq entry", err)
		}
		if failedStage != nil {
			e.FailedStage = *failedStage
		}
		entries = append(entries, e)
	}
	return entries, dbErr("dequeue dlq iterate", rows.Err())
}

func (s *PostgresStore) IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE dead_letter_queue
		 SET retry_count = retry_count + 1, next_retry_at = $1, error = $2, last_failed_at = now()
		 WHERE id = $3`,
		nextRetryAt, lastErr, id,
	)
	if err != nil {
		return dbErr(fmt.Sprintf("increment dlq retry %s", id), err)
	}
	if tag.RowsAffected() == 0 {
		return dbErr("increment dlq retry", eris.Errorf("dlq entry not found: %s", id))
	}
	return nil
}

func (s *PostgresStore) RemoveDLQ(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM dead_letter_queue WHERE id = $1`, id)
	return dbErr("remove dlq", err)
}

func (s *PostgresStore) CountDLQ(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM dead_letter_queue`).Scan(&count)
	return count, dbErr("count dlq", err)
}

// helpers

type analysisJSONColumns struct {
	keyPoints      []byte
	publicHealth   []byte
	localGov       []byte
	economic       []byte
	environmental  []byte
	education      []byte
	infrastructure []byte
	recommended    []byte
	immediate      []byte
	resourceNeeds  []byte
}

func marshalAnalysisColumns(a *model.Analysis) (*analysisJSONColumns, error) {
	var cols analysisJSONColumns
	var err error
	marshal := func(dst *[]byte, v any) {
		if err != nil {
			return
		}
		*dst, err = json.Marshal(v)
	}
	marshal(&cols.keyPoints, a.KeyPoints)
	marshal(&cols.publicHealth, a.PublicHealthImpacts)
	marshal(&cols.localGov, a.LocalGovImpacts)
	marshal(&cols.economic, a.EconomicImpacts)
	marshal(&cols.environmental, a.EnvironmentalImpacts)
	marshal(&cols.education, a.EducationImpacts)
	marshal(&cols.infrastructure, a.InfrastructureImpacts)
	marshal(&cols.recommended, a.RecommendedActions)
	marshal(&cols.immediate, a.ImmediateActions)
	marshal(&cols.resourceNeeds, a.ResourceNeeds)
	if err != nil {
		return nil, err
	}
	return &cols, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanAnalysisRecord(row scannable) (*model.AnalysisRecord, error) {
	var rec model.AnalysisRecord
	var keyPoints, publicHealth, localGov, economic []byte
	var environmental, education, infrastructure []byte
	var recommended, immediate, resourceNeeds []byte
	var raw []byte
	var category, level, relevance string

	err := row.Scan(&rec.ID, &rec.BillID, &rec.Version, &rec.PreviousVersionID,
		&rec.AnalysisDate, &rec.ModelVersion,
		&rec.Analysis.Summary, &keyPoints, &publicHealth, &localGov,
		&economic, &environmental, &education,
		&infrastructure, &recommended, &immediate,
		&resourceNeeds, &category, &level, &relevance,
		&raw, &rec.Validated)
	if err != nil {
		return nil, err
	}

	var uerr error
	unmarshal := func(data []byte, v any) {
		if uerr != nil || len(data) == 0 {
			return
		}
		uerr = json.Unmarshal(data, v)
	}
	unmarshal(keyPoints, &rec.Analysis.KeyPoints)
	unmarshal(publicHealth, &rec.Analysis.PublicHealthImpacts)
	unmarshal(localGov, &rec.Analysis.LocalGovImpacts)
	unmarshal(economic, &rec.Analysis.EconomicImpacts)
	unmarshal(environmental, &rec.Analysis.EnvironmentalImpacts)
	unmarshal(education, &rec.Analysis.EducationImpacts)
	unmarshal(infrastructure, &rec.Analysis.InfrastructureImpacts)
	unmarshal(recommended, &rec.Analysis.RecommendedActions)
	unmarshal(immediate, &rec.Analysis.ImmediateActions)
	unmarshal(resourceNeeds, &rec.Analysis.ResourceNeeds)
	if uerr != nil {
		return nil, uerr
	}

	rec.Analysis.ImpactSummary = model.ImpactSummary{
		PrimaryCategory:   model.ImpactCategory(category),
		ImpactLevel:       model.ImpactLevel(level),
		RelevanceToRegion: model.RelevanceLevel(relevance),
	}
	rec.Raw = json.RawMessage(raw)
	rec.Analysis.Normalize()
	return &rec, nil
}
