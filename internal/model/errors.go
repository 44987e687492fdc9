package model

import (
	"errors"
	"fmt"
)

// ErrNotConfigured marks a capability that does not apply (no external id known,
// integration disabled). Callers treat it as a silent no-op.
var ErrNotConfigured = errors.New("not configured")

// TransientNetworkError is a retryable transport failure.
type TransientNetworkError struct {
	Op  string
	Err error
}

func (e *TransientNetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientNetworkError) Unwrap() error {
	return e.Err
}

type FailureKind string

const (
	FailureAlreadyFlagged FailureKind = "already_flagged"
	FailureLimitReached   FailureKind = "limit_reached"
	FailureRateLimited    FailureKind = "rate_limited"
	FailureOther          FailureKind = "other"
)

// LogicalFailure is a platform answer that came back with a transport-level
// success but did not perform the action.
type LogicalFailure struct {
	Kind    FailureKind
	Message string
}

func (e *LogicalFailure) Error() string {
	switch e.Kind {
	case FailureAlreadyFlagged:
		return "Failed to flag: post already flagged"
	case FailureLimitReached:
		return "Failed to flag: post flag limit reached"
	case FailureRateLimited:
		return "Failed to flag: rate-limited"
	default:
		return "Failed to flag: " + e.Message
	}
}

// ValidationError reports invalid or out-of-order reference dates.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ReporterError is returned when an external service rejects feedback.
type ReporterError struct {
	Reporter string
	Message  string
	Err      error
}

func (e *ReporterError) Error() string {
	return e.Message
}

func (e *ReporterError) Unwrap() error {
	return e.Err
}

// IsSilent reports whether err should be swallowed rather than shown.
func IsSilent(err error) bool {
	return errors.Is(err, ErrNotConfigured)
}
