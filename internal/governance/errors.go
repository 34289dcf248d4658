// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package governance implements the permission matrix, the preview-commit
// pipeline, and the history/revert engine for governed content sections.
package governance

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by governed operations. Handlers map each one to
// a distinct human-readable message: "not allowed" is never conflated with
// "failed to save" or "nothing to revert to".
var (
	// ErrForbidden means a capability or role check failed. It is returned
	// before any mutation is attempted.
	ErrForbidden = errors.New("forbidden")

	// ErrDuplicateEmail means an active authorization record already exists
	// for the normalized email.
	ErrDuplicateEmail = errors.New("email already authorized")

	// ErrUnknownEmail means no registered user exists for the email.
	ErrUnknownEmail = errors.New("unknown email")

	// ErrNothingToRevert means the history entry has no prior snapshot to
	// restore (it recorded the section's creation).
	ErrNothingToRevert = errors.New("nothing to revert to")

	// ErrConflict means the section changed since the editor last read it
	// and the commit carried an expected base version.
	ErrConflict = errors.New("section changed since last read")
)

// ValidationError reports a malformed request payload.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// StorageError wraps a failed persistence call so callers can distinguish
// "the system failed to save this" from permission and validation failures.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return "storage: " + e.Op + ": " + e.Err.Error() }

func (e *StorageError) Unwrap() error { return e.Err }

// IsStorage reports whether err is a StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
