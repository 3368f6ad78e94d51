package domain

import (
	"errors"
	"fmt"
)

// NotFoundError indicates a named remote file does not exist. It is the
// expected first-sync condition and triggers CREATE, never a caller error.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// RemoteUnavailableError indicates a transient remote-store failure. Callers
// may retry with bounded backoff.
type RemoteUnavailableError struct {
	Message string
	Err     error
}

func (e *RemoteUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *RemoteUnavailableError) Unwrap() error { return e.Err }

// SchemaMismatchError indicates an append whose rows do not match the remote
// file's column signature. The sync engine handles it by escalating to
// REPLACE.
type SchemaMismatchError struct {
	Message string
}

func (e *SchemaMismatchError) Error() string { return e.Message }

// SourceUnavailableError indicates the source-of-record could not be read.
// Fatal for that table's sync attempt only.
type SourceUnavailableError struct {
	Message string
	Err     error
}

func (e *SourceUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

// ValidationError indicates invalid input or configuration.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...any) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrRemoteUnavailable creates a RemoteUnavailableError wrapping err.
func ErrRemoteUnavailable(err error, format string, args ...any) *RemoteUnavailableError {
	return &RemoteUnavailableError{Message: fmt.Sprintf(format, args...), Err: err}
}

// ErrSchemaMismatch creates a SchemaMismatchError with a formatted message.
func ErrSchemaMismatch(format string, args ...any) *SchemaMismatchError {
	return &SchemaMismatchError{Message: fmt.Sprintf(format, args...)}
}

// ErrSourceUnavailable creates a SourceUnavailableError wrapping err.
func ErrSourceUnavailable(err error, format string, args ...any) *SourceUnavailableError {
	return &SourceUnavailableError{Message: fmt.Sprintf(format, args...), Err: err}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsRemoteUnavailable reports whether err is (or wraps) a
// RemoteUnavailableError.
func IsRemoteUnavailable(err error) bool {
	var target *RemoteUnavailableError
	return errors.As(err, &target)
}

// IsSchemaMismatch reports whether err is (or wraps) a SchemaMismatchError.
func IsSchemaMismatch(err error) bool {
	var target *SchemaMismatchError
	return errors.As(err, &target)
}
