package providers

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	// network, timeout, 429 or 5xx; retried
	KindUnavailable ErrorKind = "upstream_unavailable"
	// 4xx, auth failure or an error envelope; never retried
	KindRejected ErrorKind = "upstream_rejected"
	// a record or payload that could not be mapped onto FlightSegment
	KindMalformed ErrorKind = "malformed_record"
	// no credential or token available for this call
	KindNoCredential ErrorKind = "no_credential"
)

// ProviderError is the error type returned by adapters.
type ProviderError struct {
	Provider   string
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is matches any *ProviderError of the same kind, so errors.Is(err, ErrRejected) works.
func (e *ProviderError) Is(target error) bool {
	t, ok := target.(*ProviderError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

var (
	ErrUnavailable  = &ProviderError{Kind: KindUnavailable}
	ErrRejected     = &ProviderError{Kind: KindRejected}
	ErrMalformed    = &ProviderError{Kind: KindMalformed}
	ErrNoCredential = &ProviderError{Kind: KindNoCredential}
)

// KindOf returns the kind of a provider error, or "" for anything else.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// statusKind classifies an upstream HTTP status. 429 and 5xx are transient,
// any other non-2xx status is a rejection.
func statusKind(code int) ErrorKind {
	if code == 429 || code >= 500 {
		return KindUnavailable
	}
	return KindRejected
}
