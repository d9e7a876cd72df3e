package resilience

import "time"

// DLQEntry represents a bill whose analysis failed and can be retried later.
type DLQEntry struct {
	ID           string    `json:"id"`
	BillID       string    `json:"bill_id"`
	Error        string    `json:"error"`
	ErrorType    string    `json:"error_type"` // "transient" or "permanent"
	FailedStage  string    `json:"failed_stage,omitempty"`
	RetryCount   int       `json:"retry_count"`
	MaxRetries   int       `json:"max_retries"`
	NextRetryAt  time.Time `json:"next_retry_at"`
	CreatedAt    time.Time `json:"created_at"`
	LastFailedAt time.Time `json:"last_failed_at"`
}

// DLQFilter specifies criteria for querying the dead letter queue.
type DLQFilter struct {
	ErrorType string `json:"error_type,omitempty"` // "transient", "permanent", or "" for all
	Limit     int    `json:"limit,omitempty"`
}

// CanRetry returns true if this entry has not exhausted its retry budget.
// Permanent failures are never retried.
func (e *DLQEntry) CanRetry() bool {
	return e.ErrorType == "transient" && e.RetryCount < e.MaxRetries
}

// NextRetryDelay returns the wait before the entry's next attempt,
// doubling per recorded retry from a one-minute floor.
func (e *DLQEntry) NextRetryDelay() time.Duration {
	return ExponentialDelay(time.Minute, e.RetryCount)
}

// ClassifyError categorizes an error as "transient" or "permanent".
func ClassifyError(err error) string {
	if IsTransient(err) {
		return "transient"
	}
	return "permanent"
}
