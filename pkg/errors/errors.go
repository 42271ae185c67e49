package errors

import (
	"fmt"
)

// ErrNotFound is returned when a resource does not exist
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrInvalidStateTransition is returned when a status change is not allowed
type ErrInvalidStateTransition struct {
	From fmt.Stringer
	To   fmt.Stringer
}

func (e *ErrInvalidStateTransition) Error() string {
	return fmt.Sprintf("invalid state transition from %s to %s", e.From, e.To)
}

// ErrUnauthorized is returned when a caller cannot be authenticated
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message == "" {
		return "unauthorized"
	}
	return e.Message
}

// ErrValidation is returned when input fails validation
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsNotFound reports whether err is, or wraps, an ErrNotFound
func IsNotFound(err error) bool {
	var nf *ErrNotFound
	return As(err, &nf)
}

// IsValidation reports whether err is, or wraps, an ErrValidation
func IsValidation(err error) bool {
	var ve *ErrValidation
	return As(err, &ve)
}
