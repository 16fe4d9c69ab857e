package errors

import (
	"fmt"
)

var (
	ErrInvalidConfig = fmt.Errorf("memoryd: invalid config")
	ErrValidation    = fmt.Errorf("memoryd: validation error")
	ErrNotFound      = fmt.Errorf("memoryd: not found")
	ErrStore         = fmt.Errorf("memoryd: vector store error")
	ErrGraphStore    = fmt.Errorf("memoryd: graph store error")
	ErrProvider      = fmt.Errorf("memoryd: provider error")
)

var kinds = []error{
	ErrValidation,
	ErrNotFound,
	ErrStore,
	ErrGraphStore,
	ErrProvider,
	ErrInvalidConfig,
}

type markedError struct {
	kind  error
	cause error
}

func (e *markedError) Error() string   { return e.cause.Error() }
func (e *markedError) Unwrap() []error { return []error{e.cause, e.kind} }

// Mark tags err with one of the sentinel kinds while keeping the original cause
// reachable through Is and As. A nil err stays nil.
func Mark(err error, kind error) error {
	if err == nil {
		return nil
	}
	if Is(err, kind) {
		return err
	}
	return &markedError{kind: kind, cause: err}
}

// Kind returns the first sentinel matched by err, or nil.
func Kind(err error) error {
	for _, k := range kinds {
		if Is(err, k) {
			return k
		}
	}
	return nil
}

func Validationf(format string, args ...any) error {
	return Wrapf(ErrValidation, format, args...)
}

func NotFoundf(format string, args ...any) error {
	return Wrapf(ErrNotFound, format, args...)
}
