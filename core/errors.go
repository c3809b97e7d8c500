package core

import "github.com/pkg/errors"

// FieldError pins a validation failure to one input field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is returned for rejected user input. Handlers render it as
// a 400 with the per-field breakdown.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

func (err *ValidationError) Unwrap() error { return err.Err }

// shutdown marks an error the process cannot recover from in place.
type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

// IsShutdown reports whether err calls for terminating the application.
func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
