package domain

import (
	"errors"
	"fmt"
)

// ErrValidation matches every *ValidationError via errors.Is.
var ErrValidation = errors.New("validation error")

// ErrInvariant matches every *InvariantError via errors.Is.
var ErrInvariant = errors.New("state invariant violation")

// ValidationError reports malformed or insufficiently sized input.
// It is always surfaced to the caller; the core never turns it into a HOLD.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// InvariantError is a programming error: the engine was asked to do something
// that would break a campaign invariant.
type InvariantError struct {
	Reason string
}

func (e *InvariantError) Error() string {
	return "invariant: " + e.Reason
}

// Is reports whether target is ErrInvariant.
func (e *InvariantError) Is(target error) bool {
	return target == ErrInvariant
}

// Invalid builds a *ValidationError with a formatted reason.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Violation builds a *InvariantError with a formatted reason.
func Violation(format string, args ...any) error {
	return &InvariantError{Reason: fmt.Sprintf(format, args...)}
}
