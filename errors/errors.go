// Package errors provides error handling for idveil.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - PII-safe error formatting
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Check errors
//	if errors.Is(err, errors.ErrUnsupportedFormat) {
//	    // handle unsupported file type
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
)

// Common sentinel errors used across idveil.
// Use these with errors.Is() for type-safe error checking.
// Wrap these with errors.Wrap() to add context while preserving the type.
var (
	// ErrNotFound indicates the requested file, row, or identifier does not exist
	ErrNotFound = New("not found")

	// ErrUnsupportedFormat indicates a file extension the tabular store cannot handle
	ErrUnsupportedFormat = New("unsupported file format")

	// ErrMissingColumn indicates a required column is absent from a tabular file
	ErrMissingColumn = New("missing required column")

	// ErrReplaceExhausted indicates the atomic file-replace protocol ran out of retries
	ErrReplaceExhausted = New("file replace retries exhausted")
)

// IsNotFoundError checks if an error is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsMissingColumnError checks if an error is or wraps ErrMissingColumn.
func IsMissingColumnError(err error) bool {
	return err != nil && Is(err, ErrMissingColumn)
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Wrap(ErrNotFound, Newf(format, args...).Error())
}

// NewMissingColumnError creates a missing-column error with a formatted message
func NewMissingColumnError(format string, args ...interface{}) error {
	return Wrap(ErrMissingColumn, Newf(format, args...).Error())
}
