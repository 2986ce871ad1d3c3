package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies failures at module boundaries so callers can branch on
// the outcome without inspecting messages.
type Kind string

const (
	KindUnknown        Kind = "unknown"
	KindAuthentication Kind = "authentication"
	KindValidation     Kind = "validation"
	KindUpstream       Kind = "upstream"
	KindSettlement     Kind = "settlement"
	KindOrder          Kind = "order"
	KindSwapTerminal   Kind = "swap_terminal"
	KindDuplicate      Kind = "duplicate"
	KindConfig         Kind = "config"
)

// Error is the shared error type for every plugin.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	// Status and Body are set for failures that came back from a remote API.
	Status int
	Body   string
	Err    error
}

// New creates an error of the given kind.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return New(kind, op, fmt.Sprintf(format, args...))
}

// Wrap attaches a kind to an existing error.
func Wrap(kind Kind, op string, err error, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// Upstream describes a non-2xx HTTP response.
func Upstream(op string, status int, body string) *Error {
	return &Error{
		Kind:    KindUpstream,
		Op:      op,
		Message: fmt.Sprintf("API returned status code %d", status),
		Status:  status,
		Body:    body,
	}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithKind returns a copy of e re-classified as kind. Used when an upstream
// failure means something more specific to the caller, e.g. a rejected order.
func (e *Error) WithKind(kind Kind) *Error {
	cp := *e
	cp.Kind = kind
	return &cp
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// As is a shorthand for errors.As with *Error.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
