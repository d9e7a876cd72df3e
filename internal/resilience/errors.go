package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// FailureKind classifies an external-service failure for retry decisions.
type FailureKind string

const (
	FailureRateLimit  FailureKind = "rate_limit"
	FailureTimeout    FailureKind = "timeout"
	FailureServer     FailureKind = "server_error"
	FailureConnection FailureKind = "connection_error"
	FailureOther      FailureKind = "other"
)

// Retryable reports whether a failure of this kind is worth retrying.
func (k FailureKind) Retryable() bool {
	return k != FailureOther
}

// Classify buckets an error into a FailureKind by inspecting its type and
// message. Anything not recognizably transient is FailureOther and should
// surface immediately rather than burn the retry budget.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureOther
	}

	var te *TransientError
	if errors.As(err, &te) {
		switch {
		case te.StatusCode == 429:
			return FailureRateLimit
		case te.StatusCode == 408 || te.StatusCode == 504:
			return FailureTimeout
		case te.StatusCode >= 500:
			return FailureServer
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return FailureConnection
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "429") ||
		strings.Contains(msg, "too many requests") || strings.Contains(msg, "overloaded"):
		return FailureRateLimit
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out") ||
		strings.Contains(msg, "deadline exceeded"):
		return FailureTimeout
	case strings.Contains(msg, "server error") || strings.Contains(msg, "500") ||
		strings.Contains(msg, "502") || strings.Contains(msg, "503") ||
		strings.Contains(msg, "internal error"):
		return FailureServer
	}
	for _, p := range connectionPatterns {
		if strings.Contains(msg, p) {
			return FailureConnection
		}
	}

	return FailureOther
}

var connectionPatterns = []string{
	"connection reset by peer",
	"connection refused",
	"broken pipe",
	"temporary failure in name resolution",
	"no such host",
	"tls handshake timeout",
	"server closed idle connection",
	"transport connection broken",
	"connection error",
}

// TransientError wraps an error that is safe to retry (429, 5xx, network timeout).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// IsTransient returns true if the error (or any error in its chain) is a
// TransientError, or if it classifies as a retryable failure kind.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	return Classify(err).Retryable()
}

// IsTransientHTTPStatus returns true if the HTTP status code indicates a
// transient server-side issue that is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, // Request Timeout
		429, // Too Many Requests
		500, // Internal Server Error
		502, // Bad Gateway
		503, // Service Unavailable
		504: // Gateway Timeout
		return true
	default:
		return false
	}
}
