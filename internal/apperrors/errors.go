package apperrors

import (
	"errors"
	"fmt"
)

// ErrorType represents the kinds of failure a use-case can report
type ErrorType string

const (
	// ErrorTypeNotFound indicates an entity id did not resolve
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeDuplicateEmail indicates a user with the email already exists
	ErrorTypeDuplicateEmail ErrorType = "DUPLICATE_EMAIL"

	// ErrorTypeDuplicateName indicates a cafe with the name already exists
	ErrorTypeDuplicateName ErrorType = "DUPLICATE_NAME"

	// ErrorTypeUserNotFound indicates no account matches the login email
	ErrorTypeUserNotFound ErrorType = "USER_NOT_FOUND"

	// ErrorTypeBadCredential indicates the password did not verify
	ErrorTypeBadCredential ErrorType = "BAD_CREDENTIAL"

	// ErrorTypeForbidden indicates an admin-only action by anyone else
	ErrorTypeForbidden ErrorType = "FORBIDDEN"

	// ErrorTypeLoginRequired indicates the action needs a logged-in user
	ErrorTypeLoginRequired ErrorType = "LOGIN_REQUIRED"

	// ErrorTypeUnauthorized indicates a persisted session no longer resolves
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"

	// ErrorTypeValidation indicates malformed input
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeTooManyRequests indicates the caller hit a rate limit
	ErrorTypeTooManyRequests ErrorType = "TOO_MANY_REQUESTS"

	// ErrorTypeInternal indicates an unexpected store or runtime fault
	ErrorTypeInternal ErrorType = "INTERNAL"
)

// AppError is a recoverable, user-facing failure. Message is safe to show
// to the end user; Err carries the operator-only cause, if any.
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates an error of the given type
func New(t ErrorType, message string) *AppError {
	return &AppError{Type: t, Message: message}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return New(ErrorTypeNotFound, message)
}

// NewForbiddenError creates a new forbidden error
func NewForbiddenError(message string) *AppError {
	return New(ErrorTypeForbidden, message)
}

// NewLoginRequiredError creates an advisory that sends the user to the login page
func NewLoginRequiredError(message string) *AppError {
	return New(ErrorTypeLoginRequired, message)
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError(message string) *AppError {
	return New(ErrorTypeUnauthorized, message)
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return New(ErrorTypeValidation, message)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// TypeOf returns the type of the first AppError in err's chain, or
// ErrorTypeInternal when there is none.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// Is reports whether err carries an AppError of type t.
func Is(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}

// MessageOf returns the user-facing message for err. Errors that are not
// AppErrors never expose their text.
func MessageOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Type != ErrorTypeInternal {
		return appErr.Message
	}
	return "An error occurred."
}
