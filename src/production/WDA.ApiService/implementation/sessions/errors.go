package sessions

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned by Get when the device has no session
var ErrSessionNotFound = errors.New("session not found")

// InputValidationError is a client-correctable rejection; no store call was made
type InputValidationError struct {
	Field   string
	Message string
}

func (e *InputValidationError) Error() string {
	return e.Message
}

func invalid(field, message string) *InputValidationError {
	return &InputValidationError{Field: field, Message: message}
}

// PersistenceError wraps a failed store call
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is an InputValidationError
func IsValidation(err error) bool {
	var v *InputValidationError
	return errors.As(err, &v)
}
