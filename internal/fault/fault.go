// Package fault defines the enumerable error kinds surfaced by the
// assessment engine. Every error returned across a package boundary either
// is a *Error or wraps something that reports a Kind, so callers can react
// deterministically without string matching.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies an error.
type Kind string

const (
	KindInternal          Kind = "internal"
	KindValidation        Kind = "validation"
	KindNotApplicable     Kind = "not_applicable"
	KindAlreadyCompleted  Kind = "already_completed"
	KindNotFound          Kind = "not_found"
	KindCatalogIntegrity  Kind = "catalog_integrity"
	KindHintProvider      Kind = "hint_provider"
	KindInvalidTransition Kind = "invalid_transition"
	KindConflict          Kind = "conflict"
)

// Code returns the stable, client-facing code for the kind.
func (k Kind) Code() string {
	switch k {
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindNotApplicable:
		return "NOT_APPLICABLE"
	case KindAlreadyCompleted:
		return "ALREADY_COMPLETED"
	case KindNotFound:
		return "NOT_FOUND"
	case KindCatalogIntegrity:
		return "CATALOG_INTEGRITY"
	case KindHintProvider:
		return "HINT_PROVIDER"
	case KindInvalidTransition:
		return "INVALID_TRANSITION"
	case KindConflict:
		return "CONFLICT"
	default:
		return "INTERNAL"
	}
}

// Kinder is implemented by errors that carry their own Kind.
type Kinder interface {
	Kind() Kind
}

// Error is the generic typed error for the engine.
type Error struct {
	K   Kind
	Op  string
	Msg string
	Err error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Kind reports the error kind.
func (e *Error) Kind() Kind { return e.K }

// New creates an *Error with a formatted message.
func New(k Kind, op, format string, args ...any) *Error {
	return &Error{K: k, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to err. Returns nil if err is nil.
func Wrap(k Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{K: k, Op: op, Err: err}
}

// NotFound is shorthand for an unknown assessment or question id.
func NotFound(op, what, id string) *Error {
	return New(KindNotFound, op, "%s %q not found", what, id)
}

// KindOf returns the kind of the first error in the chain that reports one,
// or KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var k Kinder
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindInternal
}

// Is reports whether err carries kind k.
func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}
