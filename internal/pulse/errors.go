package pulse

import (
	"errors"
	"fmt"
)

// Kind classifies failures so the runner and the API can react without
// inspecting upstream-specific error text.
type Kind string

// Failure kinds recognized across the pipeline.
const (
	KindConfigMissing       Kind = "config_missing"
	KindAuthRequired        Kind = "auth_required"
	KindTransientNetwork    Kind = "transient_network"
	KindRateLimited         Kind = "rate_limited"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindMalformedResponse   Kind = "malformed_response"
	KindValidationFailed    Kind = "validation_failed"
	KindNotFound            Kind = "not_found"
	KindBusy                Kind = "busy"
	KindInternal            Kind = "internal"
)

// Retryable reports whether the adapter retry loop may re-attempt an
// operation that failed with this kind. Auth and schema problems are
// never retried.
func (k Kind) Retryable() bool {
	switch k {
	case KindTransientNetwork, KindRateLimited, KindUpstreamUnavailable:
		return true
	default:
		return false
	}
}

// Error carries a failure kind alongside the wrapped cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap exposes the cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with a kind. A nil err yields a bare kind error.
func NewError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Errorf formats a new kinded error.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the kind from an error chain, defaulting to internal.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
