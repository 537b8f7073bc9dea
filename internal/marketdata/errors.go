package marketdata

import (
	"errors"
	"fmt"
)

// ErrInvalidTicker is returned for symbols rejected locally, before any
// upstream call is made.
var ErrInvalidTicker = errors.New("invalid ticker")

// Kind classifies an upstream failure so HTTP handlers can map it to a
// status code without string matching.
type Kind string

const (
	// KindTransport covers network failures and non-2xx responses.
	KindTransport Kind = "transport"
	// KindUpstream covers 2xx responses whose payload encodes an error.
	KindUpstream Kind = "upstream"
	// KindRateLimited is an upstream credit/rate-limit signal, payload or
	// status level.
	KindRateLimited Kind = "rate_limited"
	// KindNotFound means the symbol is unknown to the provider.
	KindNotFound Kind = "not_found"
	// KindConfig means a required API key or setting is absent.
	KindConfig Kind = "config"
)

// Error is the single failure signal adapters emit. Transport-level and
// payload-level upstream failures both end up here, with a human-readable
// message preserved for the response body.
type Error struct {
	Kind     Kind
	Provider string
	Op       string // e.g. "quote", "time_series"
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Provider, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Provider, e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an *Error without a wrapped cause.
func NewError(kind Kind, provider, op, message string) *Error {
	return &Error{Kind: kind, Provider: provider, Op: op, Message: message}
}

// WrapError builds an *Error around an underlying cause.
func WrapError(kind Kind, provider, op, message string, err error) *Error {
	return &Error{Kind: kind, Provider: provider, Op: op, Message: message, Err: err}
}

// KindOf extracts the failure kind from an error chain, or "" when the chain
// carries no *Error.
func KindOf(err error) Kind {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	return ""
}

// IsRateLimited reports whether err carries an upstream rate-limit signal.
func IsRateLimited(err error) bool { return KindOf(err) == KindRateLimited }
