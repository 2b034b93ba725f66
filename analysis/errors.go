package analysis

import (
	"errors"
	"fmt"
)

// InvalidRangeError reports a malformed or inverted date range.
type InvalidRangeError struct {
	Reason string
}

func (e *InvalidRangeError) Error() string {
	return "invalid range: " + e.Reason
}

// InvalidDimensionError reports a dimension key outside calls, jds, resumes, interviews.
type InvalidDimensionError struct {
	Key string
}

func (e *InvalidDimensionError) Error() string {
	return fmt.Sprintf("invalid dimension %q", e.Key)
}

// StoreError wraps a failure of the activity or target store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

// wrapStoreError leaves errors that are already a *StoreError as they are.
func wrapStoreError(op string, err error) error {
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func invalidRange(format string, args ...any) error {
	return &InvalidRangeError{Reason: fmt.Sprintf(format, args...)}
}
