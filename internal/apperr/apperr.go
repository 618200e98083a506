// Package apperr defines the error taxonomy shared by the export pipeline,
// the sequence generator and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error so callers can decide whether it is fatal for a
// run, skippable per record, or how it maps to an HTTP status.
type Kind string

const (
	// KindConfig is a missing or malformed setting. Fatal.
	KindConfig Kind = "CONFIG"

	// KindIntegrity is a referential inconsistency in reference data, e.g. a
	// health facility pointing at a location that does not exist. Fatal.
	KindIntegrity Kind = "INTEGRITY"

	// KindFormat is a malformed field in a single source record. The record
	// is skipped and the run continues.
	KindFormat Kind = "FORMAT"

	// KindPublish is a warehouse failure (connect, DDL, load). Fatal.
	KindPublish Kind = "PUBLISH"

	// KindNotFound indicates a missing resource.
	KindNotFound Kind = "NOT_FOUND"

	// KindInternal is anything else.
	KindInternal Kind = "INTERNAL"
)

// Error is the application error type.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	prefix := string(e.Kind)
	if e.Op != "" {
		prefix += " " + e.Op
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Config returns a KindConfig error.
func Config(op, format string, args ...any) *Error {
	return &Error{Kind: KindConfig, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Integrity returns a KindIntegrity error.
func Integrity(op, format string, args ...any) *Error {
	return &Error{Kind: KindIntegrity, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Format returns a KindFormat error.
func Format(op, format string, args ...any) *Error {
	return &Error{Kind: KindFormat, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// NotFound returns a KindNotFound error.
func NotFound(op, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Publish wraps a warehouse failure.
func Publish(op, msg string, err error) *Error {
	return &Error{Kind: KindPublish, Op: op, Msg: msg, Err: err}
}

// Internal wraps an unexpected failure.
func Internal(op, msg string, err error) *Error {
	return &Error{Kind: KindInternal, Op: op, Msg: msg, Err: err}
}

// Wrap attaches kind and op to err. A nil err stays nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Msg: "failed", Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}
