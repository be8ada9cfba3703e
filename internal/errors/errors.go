package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Rolodex error code.
type ErrorCode string

const (
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"      // 400
	ErrPermissionDenied   ErrorCode = "PERMISSION_DENIED"    // 403
	ErrNotFound           ErrorCode = "NOT_FOUND"            // 404
	ErrFileNotFound       ErrorCode = "FILE_NOT_FOUND"       // 404
	ErrConflict           ErrorCode = "CONFLICT"             // 409
	ErrSyncInProgress     ErrorCode = "SYNC_IN_PROGRESS"     // 409
	ErrCancelled          ErrorCode = "CANCELLED"            // 499
	ErrInternal           ErrorCode = "INTERNAL"             // 500
	ErrStoreWriteFailed   ErrorCode = "STORE_WRITE_FAILED"   // 500
	ErrImportSourceFailed ErrorCode = "IMPORT_SOURCE_FAILED" // 502
)

// RolodexError represents a structured error with code, status, and details.
type RolodexError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	cause error
}

// Error implements the error interface.
func (e *RolodexError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *RolodexError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *RolodexError {
	return &RolodexError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewPermissionDenied creates a 403 error when access to the device directory was refused.
func NewPermissionDenied(msg string) *RolodexError {
	return &RolodexError{
		Code:    ErrPermissionDenied,
		Status:  403,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when a contact cannot be found.
func NewNotFound(identifier string) *RolodexError {
	return &RolodexError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("contact not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewNoteNotFound creates a 404 error for a missing note on an existing contact.
func NewNoteNotFound(contactID, noteID string) *RolodexError {
	return &RolodexError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("note %s not found on contact %s", noteID, contactID),
		Details: map[string]any{"contact_id": contactID, "note_id": noteID},
	}
}

// NewFileNotFound creates a 404 error for import/export paths that do not exist.
func NewFileNotFound(path string) *RolodexError {
	return &RolodexError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewConflict creates a 409 error for general conflicts.
func NewConflict(msg string) *RolodexError {
	return &RolodexError{
		Code:    ErrConflict,
		Status:  409,
		Message: msg,
	}
}

// NewSyncInProgress creates a 409 error when a sync run is already active.
func NewSyncInProgress() *RolodexError {
	return &RolodexError{
		Code:    ErrSyncInProgress,
		Status:  409,
		Message: "a contact sync is already in progress",
	}
}

// NewCancelled creates a 499 error when an operation was cancelled or ran past its deadline.
func NewCancelled(operation string) *RolodexError {
	return &RolodexError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", operation),
		Details: map[string]any{"operation": operation},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *RolodexError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &RolodexError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// NewStoreWriteFailed creates a 500 error for a failed write to the contact store.
// Writes applied before the failure are kept.
func NewStoreWriteFailed(err error) *RolodexError {
	msg := "failed to write contacts"
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &RolodexError{
		Code:    ErrStoreWriteFailed,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// NewImportSourceFailed creates a 502 error when the device directory cannot be read.
func NewImportSourceFailed(err error) *RolodexError {
	msg := "failed to read device contacts"
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &RolodexError{
		Code:    ErrImportSourceFailed,
		Status:  502,
		Message: msg,
		cause:   err,
	}
}

// Is checks if err (or anything it wraps) is a RolodexError with the given code.
func Is(err error, code ErrorCode) bool {
	var rErr *RolodexError
	if stderrors.As(err, &rErr) {
		return rErr.Code == code
	}
	return false
}

// As returns the RolodexError carried by err, if any.
func As(err error) (*RolodexError, bool) {
	var rErr *RolodexError
	if stderrors.As(err, &rErr) {
		return rErr, true
	}
	return nil, false
}
