package clinic

import (
	"errors"
)

// ErrClosed is returned by writes submitted after Close.
var ErrClosed = errors.New("coordinator closed")

// ErrNotStarted is returned by writes submitted before Start.
var ErrNotStarted = errors.New("coordinator not started")

// ValidationError reports the first input field that failed validation.
// Nothing was written.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}

// StoreError wraps a failure returned by the persistent store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *StoreError) Unwrap() error { return e.Err }

// UserMessage renders err the way it is shown to a user: "Error: " followed
// by the validation message or the store failure's description.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return "Error: " + ve.Message
	}
	var se *StoreError
	if errors.As(err, &se) {
		return "Error: " + se.Err.Error()
	}
	return "Error: " + err.Error()
}
