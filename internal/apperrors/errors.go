package apperrors

import (
	"errors"
	"fmt"
)

// FatalError indicates an error that is unlikely to be resolved by retrying.
type FatalError struct {
	Err error
}

// Error implements the error interface.
func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %v", e.Err)
}

// Unwrap returns the wrapped error.
func (e *FatalError) Unwrap() error {
	return e.Err
}

// NewFatal wraps the given error as a FatalError, adding a message.
// It uses fmt.Errorf with %w to maintain the error chain.
func NewFatal(err error, message string, args ...interface{}) error {
	format := message + ": %w"
	allArgs := append(args, err)
	return &FatalError{Err: fmt.Errorf(format, allArgs...)}
}

// --- Standard Error Definitions ---

// These sentinel errors define common application-level error conditions.
// They can be checked using errors.Is and may be wrapped with further
// context at the call site.
var (
	// ErrNotFound indicates a requested resource was not found.
	ErrNotFound = errors.New("resource not found")
	// ErrValidation indicates failure during data validation.
	ErrValidation = errors.New("validation failed")
	// ErrDatabase indicates a general database interaction error.
	ErrDatabase = errors.New("database error")
	// ErrExternalAPI indicates a general remote API communication error.
	ErrExternalAPI = errors.New("external api error")
	// ErrDuplicate indicates a conflict due to duplicate data (e.g., unique constraint).
	ErrDuplicate = errors.New("duplicate resource")
	// ErrBadRequest indicates a malformed or invalid request from the client/caller.
	ErrBadRequest = errors.New("bad request")
	// ErrRateLimited indicates an operation was rate limited.
	ErrRateLimited = errors.New("rate limited")

	// ErrServiceNotFound indicates a deal's service name has no entry in the
	// service directory sheet.
	ErrServiceNotFound = errors.New("service not found in directory")
	// ErrDepartmentNotAssigned indicates a service directory entry exists but
	// carries no department code.
	ErrDepartmentNotAssigned = errors.New("service has no department assigned")
)

// --- Helper functions for checking ---

// IsServiceNotFoundError checks if the error is or wraps ErrServiceNotFound.
func IsServiceNotFoundError(err error) bool {
	return errors.Is(err, ErrServiceNotFound)
}

// IsDepartmentNotAssignedError checks if the error is or wraps ErrDepartmentNotAssigned.
func IsDepartmentNotAssignedError(err error) bool {
	return errors.Is(err, ErrDepartmentNotAssigned)
}
