// Package errors provides the structured error type used across tsm.
//
// Every failure that crosses a package boundary is an *AppError carrying a
// Code, so the CLI can print it and the HTTP API can map it to a status
// without string matching.
//
// # Error Codes
//
// The template renderer reports one of:
//
//	ErrCodeRead               template could not be read as text
//	ErrCodeDestinationMissing destination directory does not exist
//	ErrCodeWrite              output file could not be written
//	ErrCodeUnexpected         anything else that went wrong while rendering
//	ErrCodeInvalidRequest     the render request itself is malformed
//
// The remaining codes (NOT_FOUND, ALREADY_EXISTS, VALIDATION, ...) are shared
// by the store, auth and server packages.
//
// # Usage
//
//	// Resource not found
//	return errors.NotFound("user", publicID)
//
//	// Wrapping an underlying error
//	return errors.Wrap(errors.ErrCodeStore, "failed to load user", err)
//
// Use errors.Is with the sentinels to compare codes:
//
//	if errors.Is(err, errors.ErrNotFound) {
//	    // Handle not found case
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode categorizes errors for programmatic handling.
type ErrorCode string

// Error codes for different error categories.
const (
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeAlreadyExists      ErrorCode = "ALREADY_EXISTS"
	ErrCodeValidation         ErrorCode = "VALIDATION"
	ErrCodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrCodePermission         ErrorCode = "PERMISSION"
	ErrCodeConfig             ErrorCode = "CONFIG"
	ErrCodeDriver             ErrorCode = "DRIVER"
	ErrCodeStore              ErrorCode = "STORE"
	ErrCodeInternal           ErrorCode = "INTERNAL"
	ErrCodeRead               ErrorCode = "READ_ERROR"
	ErrCodeDestinationMissing ErrorCode = "DESTINATION_MISSING"
	ErrCodeWrite              ErrorCode = "WRITE_ERROR"
	ErrCodeUnexpected         ErrorCode = "UNEXPECTED_ERROR"
	ErrCodeInvalidRequest     ErrorCode = "INVALID_REQUEST"
)

// AppError represents a structured error with context about the operation.
type AppError struct {
	Code     ErrorCode // Error category
	Message  string    // Human-readable message
	Resource string    // Resource the error refers to (if applicable)
	Err      error     // Underlying error (if any)
}

// Error implements the error interface.
func (e *AppError) Error() string {
	msg := e.Message
	if e.Resource != "" {
		if msg == "" {
			msg = e.Resource
		} else {
			msg = fmt.Sprintf("%s: %s", e.Resource, msg)
		}
	}
	if e.Err != nil {
		if msg == "" {
			return e.Err.Error()
		}
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error for error chain traversal.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target matches this error.
// Comparison is based on error code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Sentinel errors for use with errors.Is.
var (
	ErrNotFound           = &AppError{Code: ErrCodeNotFound, Message: "not found"}
	ErrAlreadyExists      = &AppError{Code: ErrCodeAlreadyExists, Message: "already exists"}
	ErrValidation         = &AppError{Code: ErrCodeValidation, Message: "validation failed"}
	ErrUnauthorized       = &AppError{Code: ErrCodeUnauthorized, Message: "authentication required"}
	ErrPermissionDenied   = &AppError{Code: ErrCodePermission, Message: "permission denied"}
	ErrConfigInvalid      = &AppError{Code: ErrCodeConfig, Message: "invalid configuration"}
	ErrDriver             = &AppError{Code: ErrCodeDriver, Message: "driver failure"}
	ErrStore              = &AppError{Code: ErrCodeStore, Message: "store failure"}
	ErrRead               = &AppError{Code: ErrCodeRead, Message: "failed to read template file"}
	ErrDestinationMissing = &AppError{Code: ErrCodeDestinationMissing, Message: "target directory does not exist"}
	ErrWrite              = &AppError{Code: ErrCodeWrite, Message: "failed to write nginx config file"}
	ErrUnexpected         = &AppError{Code: ErrCodeUnexpected, Message: "unexpected error"}
	ErrInvalidRequest     = &AppError{Code: ErrCodeInvalidRequest, Message: "invalid request"}
)

// New creates an error with the given code and message.
func New(code ErrorCode, msg string) error {
	return &AppError{Code: code, Message: msg}
}

// NotFound creates an error for a missing resource, e.g. NotFound("user", id).
func NotFound(kind, id string) error {
	return &AppError{
		Code:     ErrCodeNotFound,
		Message:  "not found",
		Resource: fmt.Sprintf("%s %s", kind, id),
	}
}

// AlreadyExists creates an error for a resource that already exists.
func AlreadyExists(kind, id string) error {
	return &AppError{
		Code:     ErrCodeAlreadyExists,
		Message:  "already exists",
		Resource: fmt.Sprintf("%s %s", kind, id),
	}
}

// Validation creates a validation error with a custom message.
func Validation(msg string) error {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: msg,
	}
}

// Unauthorized creates an authentication error with a custom message.
func Unauthorized(msg string) error {
	return &AppError{
		Code:    ErrCodeUnauthorized,
		Message: msg,
	}
}

// Forbidden creates a permission error with a custom message.
func Forbidden(msg string) error {
	return &AppError{
		Code:    ErrCodePermission,
		Message: msg,
	}
}

// Wrap creates an error with the specified code, message, and underlying error.
func Wrap(code ErrorCode, msg string, err error) error {
	return &AppError{
		Code:    code,
		Message: msg,
		Err:     err,
	}
}

// WrapResource creates an error with resource context and underlying error.
func WrapResource(code ErrorCode, resource string, err error) error {
	return &AppError{
		Code:     code,
		Resource: resource,
		Err:      err,
	}
}

// CodeOf returns the code of the first AppError in err's chain,
// or ErrCodeInternal when there is none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// HTTPStatus maps an error to the HTTP status the API responds with.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeAlreadyExists:
		return http.StatusConflict
	case ErrCodeValidation, ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodePermission:
		return http.StatusForbidden
	case ErrCodeDestinationMissing, ErrCodeRead:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Is reports whether any error in err's chain matches target.
// This is a re-export of errors.Is for convenience.
var Is = errors.Is

// As finds the first error in err's chain that matches target.
// This is a re-export of errors.As for convenience.
var As = errors.As
