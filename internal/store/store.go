package store

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/legis-analyzer/internal/model"
	"github.com/sells-group/legis-analyzer/internal/resilience"
)

// Store defines the persistence interface for the analysis pipeline.
type Store interface {
	// Bills
	GetBill(ctx context.Context, id string) (*model.Bill, error)
	UpsertBill(ctx context.Context, bill model.Bill) error
	ListBillIDs(ctx context.Context, limit int) ([]string, error)

	// Analyses (immutable, version-chained)
	CreateAnalysis(ctx context.Context, rec *model.AnalysisRecord) (*model.AnalysisRecord, error)
	GetLatestAnalysis(ctx context.Context, billID string) (*model.AnalysisRecord, error)
	ListAnalyses(ctx context.Context, billID string) ([]model.AnalysisRecord, error)

	// Priorities
	GetPriority(ctx context.Context, billID string) (*model.Priority, error)
	UpsertPriority(ctx context.Context, p model.Priority) error
	SetManuallyReviewed(ctx context.Context, billID string, reviewed bool) error

	// Dead letter queue
	EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error
	DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error)
	IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error
	RemoveDLQ(ctx context.Context, id string) error
	CountDLQ(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// normalizeEnums maps model-produced enum strings onto the internal enum
// types. An unrecognized value is logged and stored as "unset" rather than
// failing the persist; schema drift in model output must not block storage
// of the rest of the analysis.
func normalizeEnums(billID string, a *model.Analysis) {
	warn := func(field, value string) {
		zap.L().Warn("unrecognized enum value, storing as unset",
			zap.String("bill_id", billID),
			zap.String("field", field),
			zap.String("value", value),
		)
	}

	if cat, ok := model.ParseImpactCategory(string(a.ImpactSummary.PrimaryCategory)); !ok {
		if a.ImpactSummary.PrimaryCategory != "" && a.ImpactSummary.PrimaryCategory != model.CategoryUnset {
			warn("primary_category", string(a.ImpactSummary.PrimaryCategory))
		}
		a.ImpactSummary.PrimaryCategory = cat
	}
	if lvl, ok := model.ParseImpactLevel(string(a.ImpactSummary.ImpactLevel)); !ok {
		if a.ImpactSummary.ImpactLevel != "" && a.ImpactSummary.ImpactLevel != model.ImpactUnset {
			warn("impact_level", string(a.ImpactSummary.ImpactLevel))
		}
		a.ImpactSummary.ImpactLevel = lvl
	}
	if rel, ok := model.ParseRelevanceLevel(string(a.ImpactSummary.RelevanceToRegion)); !ok {
		if a.ImpactSummary.RelevanceToRegion != "" && a.ImpactSummary.RelevanceToRegion != model.RelevanceUnset {
			warn("relevance_to_region", string(a.ImpactSummary.RelevanceToRegion))
		}
		a.ImpactSummary.RelevanceToRegion = rel
	}
}
