package common

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Error codes stored alongside processing errors.
const (
	CodeConfig              = "CONFIG_ERROR"
	CodeValidation          = "VALIDATION_ERROR"
	CodeExtractionExhausted = "EXTRACTION_EXHAUSTED"
	CodeLowContent          = "LOW_CONTENT"
	CodePersistenceFailure  = "PERSISTENCE_FAILURE"
	CodeNotRetryable        = "NOT_RETRYABLE"
	CodeRunFailure          = "RUN_FAILURE"
)

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
)

// Pipeline errors
var (
	ErrExtractionExhausted = errors.New("all extraction providers exhausted")
	ErrCandidateParse      = errors.New("transaction candidate could not be parsed")
	ErrPersistence         = errors.New("persisting transactions failed")
	ErrNotRetryable        = errors.New("statement is not in a retryable state")
	ErrProviderUnavailable = errors.New("extraction provider unavailable")
	ErrRunSuperseded       = errors.New("run superseded by a later retry")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// CodeOf returns the AppError code carried by err, or fallback.
func CodeOf(err error, fallback string) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return fallback
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func NotFoundError(message string) error {
	return status.Error(codes.NotFound, message)
}

func FailedPreconditionError(message string) error {
	return status.Error(codes.FailedPrecondition, message)
}

func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}

func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return InvalidArgumentError(fmt.Sprintf(format, args...))
}

func InternalErrorf(format string, args ...interface{}) error {
	return InternalError(fmt.Sprintf(format, args...))
}

// ToStatus maps application errors onto gRPC status errors.
func ToStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return NotFoundError(err.Error())
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidation):
		return InvalidArgumentError(err.Error())
	case errors.Is(err, ErrNotRetryable):
		return FailedPreconditionError(err.Error())
	default:
		return InternalError(err.Error())
	}
}
