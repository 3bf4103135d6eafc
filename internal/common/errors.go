package common

import (
	"errors"
	"fmt"
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

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")

	ErrInvalidRegion     = errors.New("invalid region")
	ErrUnreadablePackage = errors.New("unreadable package")
	ErrNormalization     = errors.New("normalization failed")
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

// InvalidRegionError reports a template region or page geometry that cannot be extracted.
// It is fatal for the run.
type InvalidRegionError struct {
	Field  string
	Region [4]float64
	Reason string
}

func (e *InvalidRegionError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid region: %s", e.Reason)
	}
	return fmt.Sprintf("invalid region for field %q %v: %s", e.Field, e.Region, e.Reason)
}

func (e *InvalidRegionError) Unwrap() error { return ErrInvalidRegion }

// UnreadablePackageError reports an existing package that cannot be opened or yields no units.
type UnreadablePackageError struct {
	Path   string
	Reason string
	Cause  error
}

func (e *UnreadablePackageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("unreadable package %q: %s: %v", e.Path, e.Reason, e.Cause)
	}
	return fmt.Sprintf("unreadable package %q: %s", e.Path, e.Reason)
}

// Unwrap exposes both the sentinel and the underlying cause to errors.Is.
func (e *UnreadablePackageError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrUnreadablePackage}
	}
	return []error{ErrUnreadablePackage, e.Cause}
}
