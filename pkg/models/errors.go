package models

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation error")
	ErrDecode     = errors.New("decode error")
	ErrRange      = errors.New("range error")
)

// ValidationError reports a bad input shape at a public entry point.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// DecodeError is returned when a string cannot be mapped back through an alphabet.
type DecodeError struct {
	Alphabet string
	Err      error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("decode %s: malformed input", e.Alphabet)
	}
	return fmt.Sprintf("decode %s: %v", e.Alphabet, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// RangeError is a programmer error: an empty or non-finite random range.
type RangeError struct {
	Min    string
	Max    string
	Reason string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("invalid range [%s, %s]: %s", e.Min, e.Max, e.Reason)
}

func (e *RangeError) Is(target error) bool { return target == ErrRange }
