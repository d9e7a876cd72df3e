package analysis

import (
	"fmt"

	"github.com/sells-group/legis-analyzer/internal/resilience"
)

// TokenLimitError indicates content that cannot be sized against the model
// context budget.
type TokenLimitError struct {
	BillID string
	Tokens int
	Budget int
}

func (e *TokenLimitError) Error() string {
	return fmt.Sprintf("analysis: bill %s exceeds token budget (%d > %d)", e.BillID, e.Tokens, e.Budget)
}

// ContentProcessingError indicates that chunking produced no usable output
// for non-empty input.
type ContentProcessingError struct {
	BillID string
	Reason string
}

func (e *ContentProcessingError) Error() string {
	return fmt.Sprintf("analysis: content processing failed for bill %s: %s", e.BillID, e.Reason)
}

// APIError is an upstream model-service failure that survived the retry
// budget, carrying the classified failure kind and attempt count.
type APIError struct {
	Kind     resilience.FailureKind
	Attempts int
	Err      error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("analysis: api error (%s) after %d attempts: %v", e.Kind, e.Attempts, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// RateLimitError is distinguished from APIError because callers may want a
// longer back-off before resubmitting the document.
type RateLimitError struct {
	Attempts int
	Err      error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("analysis: rate limited after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// AnalysisError wraps anything unexpected in the pipeline.
type AnalysisError struct {
	BillID string
	Stage  string
	Err    error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis: bill %s failed at %s: %v", e.BillID, e.Stage, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }
