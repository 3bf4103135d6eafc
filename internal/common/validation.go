package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ValidationError represents validation failures
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s' with value '%v': %s", e.Field, e.Value, e.Message)
}

// Validator provides validation utilities
type Validator struct {
	errors []ValidationError
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{
		errors: make([]ValidationError, 0),
	}
}

// Field validates a field and collects errors
func (v *Validator) Field(fieldName string, value interface{}, rules ...ValidationRule) *Validator {
	for _, rule := range rules {
		if err := rule(fieldName, value); err != nil {
			v.errors = append(v.errors, *err)
		}
	}
	return v
}

// HasErrors returns true if there are validation errors
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors
func (v *Validator) Errors() []ValidationError {
	return v.errors
}

// Error returns a combined error wrapping ErrValidation
func (v *Validator) Error() error {
	if !v.HasErrors() {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrValidation, v.ErrorMessage())
}

// ErrorMessage returns a combined error message as string
func (v *Validator) ErrorMessage() string {
	if !v.HasErrors() {
		return ""
	}

	var messages []string
	for _, err := range v.errors {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// ValidationRule represents a single validation rule
type ValidationRule func(fieldName string, value interface{}) *ValidationError

// Required - Common validation rules
func Required(fieldName string, value interface{}) *ValidationError {
	if value == nil {
		return &ValidationError{Field: fieldName, Value: value, Message: "is required"}
	}

	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return &ValidationError{Field: fieldName, Value: value, Message: "is required"}
		}
	case *string:
		if v == nil || strings.TrimSpace(*v) == "" {
			return &ValidationError{Field: fieldName, Value: value, Message: "is required"}
		}
	}
	return nil
}

// FileExists requires value to name an existing regular file. Empty values are left to Required.
func FileExists(fieldName string, value interface{}) *ValidationError {
	path, ok := value.(string)
	if !ok || strings.TrimSpace(path) == "" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return &ValidationError{Field: fieldName, Value: value, Message: "file does not exist"}
	}
	if info.IsDir() {
		return &ValidationError{Field: fieldName, Value: value, Message: "must be a file, not a directory"}
	}
	return nil
}

// DirExists requires value to name an existing directory.
func DirExists(fieldName string, value interface{}) *ValidationError {
	path, ok := value.(string)
	if !ok || strings.TrimSpace(path) == "" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return &ValidationError{Field: fieldName, Value: value, Message: "directory does not exist"}
	}
	if !info.IsDir() {
		return &ValidationError{Field: fieldName, Value: value, Message: "must be a directory"}
	}
	return nil
}

// ParentDirExists requires the directory that would contain value to exist.
func ParentDirExists(fieldName string, value interface{}) *ValidationError {
	path, ok := value.(string)
	if !ok || strings.TrimSpace(path) == "" {
		return nil
	}
	if r := DirExists(fieldName, filepath.Dir(path)); r != nil {
		r.Value = value
		r.Message = "parent directory does not exist"
		return r
	}
	return nil
}

// Extension requires value to carry one of the given extensions (without the dot).
func Extension(exts ...string) ValidationRule {
	return func(fieldName string, value interface{}) *ValidationError {
		path, ok := value.(string)
		if !ok || strings.TrimSpace(path) == "" {
			return nil
		}
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
		for _, e := range exts {
			if ext == e {
				return nil
			}
		}
		return &ValidationError{
			Field:   fieldName,
			Value:   value,
			Message: fmt.Sprintf("must have extension %s", strings.Join(exts, "|")),
		}
	}
}
