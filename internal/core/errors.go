package core

import (
	"errors"
	"fmt"
)

// Failure taxonomy surfaced to the API layer. Everything else bubbles up as
// an UpstreamError with the underlying cause preserved for diagnosis.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
)

// ValidationError reports a missing or malformed request field, before any
// I/O has happened.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// EmptyResultError reports a window with zero dreams or a model response with
// no usable content. Nothing is persisted when it is returned.
type EmptyResultError struct {
	Msg string
}

func (e *EmptyResultError) Error() string { return e.Msg }

// UpstreamError wraps a failure from the record store, object store or the
// language-model API.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *UpstreamError) Unwrap() error { return e.Err }
