// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrInsufficientData      = errors.New("insufficient data")
	ErrDegenerateInput       = errors.New("degenerate input")
	ErrUnsupportedOptionType = errors.New("unsupported option type")
	ErrConfigInvalid         = errors.New("invalid configuration")
	ErrDataNotFound          = errors.New("data not found")
	ErrDatabaseError         = errors.New("database error")
)

// InputError describes a caller input that failed validation. It always wraps
// one of the sentinel errors above so callers can branch with errors.Is.
type InputError struct {
	Field  string
	Value  interface{}
	Reason string
	Err    error
}

func (e *InputError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", e.Err, e.Reason)
	}
	return fmt.Sprintf("%v: %s (%v): %s", e.Err, e.Field, e.Value, e.Reason)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// InvalidInput creates an InputError wrapping ErrInvalidInput.
func InvalidInput(field string, value interface{}, reason string) *InputError {
	return &InputError{Field: field, Value: value, Reason: reason, Err: ErrInvalidInput}
}

// InsufficientData creates an InputError wrapping ErrInsufficientData.
func InsufficientData(field string, have, need int) *InputError {
	return &InputError{
		Field:  field,
		Value:  have,
		Reason: fmt.Sprintf("need at least %d values", need),
		Err:    ErrInsufficientData,
	}
}

// Degenerate creates an InputError wrapping ErrDegenerateInput.
func Degenerate(field string, value interface{}, reason string) *InputError {
	return &InputError{Field: field, Value: value, Reason: reason, Err: ErrDegenerateInput}
}

// UnsupportedOptionType creates an InputError wrapping ErrUnsupportedOptionType.
func UnsupportedOptionType(value interface{}) *InputError {
	return &InputError{
		Field:  "option_type",
		Value:  value,
		Reason: "must be call or put",
		Err:    ErrUnsupportedOptionType,
	}
}

// DataError represents an error while loading market data.
type DataError struct {
	Source  string
	Line    int
	Message string
	Err     error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s:%d]: %s: %v", e.Source, e.Line, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s:%d]: %s", e.Source, e.Line, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(source string, line int, message string, err error) *DataError {
	return &DataError{
		Source:  source,
		Line:    line,
		Message: message,
		Err:     err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
