package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the client-side classification of a failed call.
type Kind string

const (
	KindValidation Kind = "validation"
	KindAuth       Kind = "auth"
	KindNotFound   Kind = "not_found"
	KindRateLimit  Kind = "rate_limit"
	KindServer     Kind = "server"
	KindNetwork    Kind = "network"
	KindTimeout    Kind = "timeout"
	KindHTTP       Kind = "http"
)

var kindSentinels = map[Kind]error{
	KindValidation: ErrValidation,
	KindAuth:       ErrUnauthorized,
	KindNotFound:   ErrNotFound,
	KindRateLimit:  ErrRateLimited,
	KindServer:     ErrServer,
	KindNetwork:    ErrNetwork,
	KindTimeout:    ErrTimeout,
	KindHTTP:       ErrRequest,
}

// APIError is a classified failure produced by the request pipeline or by local validation.
type APIError struct {
	Kind      Kind
	Status    int    // HTTP status, 0 when no response was received
	Message   string // user-facing message
	RequestID string
	Notified  bool  // true once the failure was announced to the user
	Err       error // underlying transport or decode error, may be nil
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Status != 0 {
		fmt.Fprintf(&b, " (%d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// Unwrap exposes the underlying cause.
func (e *APIError) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind.
func (e *APIError) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}

// Validation builds a locally detected validation failure.
func Validation(format string, args ...any) *APIError {
	return &APIError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// As extracts an *APIError from the chain.
func As(err error) (*APIError, bool) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// Announced reports whether the user was already notified about err.
func Announced(err error) bool {
	ae, ok := As(err)
	return ok && ae.Notified
}

// KindOf returns the classification of err, or "" for unclassified errors.
func KindOf(err error) Kind {
	if ae, ok := As(err); ok {
		return ae.Kind
	}
	return ""
}
