package remote

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a remote control-plane failure for retry and
// reporting decisions.
type ErrorKind string

const (
	// ErrorKindAuth indicates the control plane rejected our credentials.
	// Likely a stale secret; callers should alert.
	ErrorKindAuth ErrorKind = "auth"

	// ErrorKindUnavailable covers network failures, 5xx responses and
	// anything else that makes the listing untrustworthy.
	ErrorKindUnavailable ErrorKind = "unavailable"

	// ErrorKindNotFound means the collection endpoint does not exist.
	// This is distinct from an empty listing: an empty listing is a
	// successful response with zero items, NotFound is an error.
	ErrorKindNotFound ErrorKind = "not_found"

	// ErrorKindTimeout indicates the connect or read deadline expired.
	ErrorKindTimeout ErrorKind = "timeout"
)

// Error is a classified remote API failure.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("remote %s: [%s] %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("remote %s: [%s]", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on kind so callers can use errors.Is with sentinel values.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewAuthError wraps a credential failure.
func NewAuthError(op string, err error) *Error {
	return &Error{Kind: ErrorKindAuth, Op: op, Err: err}
}

// NewUnavailableError wraps a transport or server-side failure.
func NewUnavailableError(op string, err error) *Error {
	return &Error{Kind: ErrorKindUnavailable, Op: op, Err: err}
}

// NewNotFoundError wraps a missing-collection response.
func NewNotFoundError(op string, err error) *Error {
	return &Error{Kind: ErrorKindNotFound, Op: op, Err: err}
}

// NewTimeoutError wraps an expired connect or read deadline.
func NewTimeoutError(op string, err error) *Error {
	return &Error{Kind: ErrorKindTimeout, Op: op, Err: err}
}

// IsAuth returns true if the error is a credential failure.
func IsAuth(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == ErrorKindAuth
}

// IsNotFound returns true if the error is a missing-collection response.
func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == ErrorKindNotFound
}

// IsUnavailable returns true for transport, server-side and timeout
// failures. A listing obtained alongside such an error must never be
// interpreted as "zero items".
func IsUnavailable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == ErrorKindUnavailable || e.Kind == ErrorKindTimeout
}
