package lifecycle

import (
	"errors"
	"fmt"
	"strings"

	"classwork/internal/storage"
)

var (
	// ErrNotFound is returned when a referenced project, task or user does not exist.
	ErrNotFound = storage.ErrNotFound
	// ErrVersionConflict is returned by conditional writes that lost a race.
	ErrVersionConflict = storage.ErrVersionConflict
	// ErrInvalidTransition is returned in strict mode when a status would move backwards.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrAlreadyExists is returned when registering an id that is taken.
	ErrAlreadyExists = errors.New("already exists")

	errInvalidInput = errors.New("invalid input")
)

// FieldError is used to indicate an error with a specific input field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ValidationError reports input that was rejected before any write was attempted.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

// NewValidationError builds a ValidationError from err and the offending fields.
func NewValidationError(err error, fields ...FieldError) error {
	if err == nil {
		err = errInvalidInput
	}
	return &ValidationError{Err: err, Fields: fields}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Err.Error()
	}
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Field + ": " + f.Error
	}
	return e.Err.Error() + ": " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error { return e.Err }

// StoreError wraps a failure of the underlying store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// storeErr leaves domain errors untouched and wraps everything else.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var verr *ValidationError
	var serr *StoreError
	switch {
	case errors.As(err, &verr), errors.As(err, &serr),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrVersionConflict),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrAlreadyExists):
		return err
	}
	return &StoreError{Op: op, Err: err}
}
