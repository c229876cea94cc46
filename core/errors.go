package core

import "github.com/pkg/errors"

// FieldError ties an error message to the input field that caused it.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is a 400-class error. It carries either a plain message or
// per-field messages keyed for the client; the HTTP layer renders whichever
// is set.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

// NewFieldValidationError reports err against a single named field.
func NewFieldValidationError(field string, err error) error {
	return &ValidationError{err, []FieldError{{Field: field, Error: err.Error()}}}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// shutdown signals that the app state is beyond repair and the server must
// stop; the HTTP error handler converts it into a graceful shutdown.
type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

// IsShutdown checks if an error in the chain is of type shutdown.
func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
