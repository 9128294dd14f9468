package attendance

import (
	"errors"
	"fmt"
)

// InputError marks malformed or missing caller input. Handlers surface it to
// the caller as {error, message} and the stage CLI exits non-zero; no partial
// result is emitted.
type InputError struct {
	Msg string
	Err error
}

func (e *InputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid input: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("invalid input: %s", e.Msg)
}

func (e *InputError) Unwrap() error { return e.Err }

// NewInputError wraps a cause as caller-facing input error.
func NewInputError(msg string, err error) *InputError {
	return &InputError{Msg: msg, Err: err}
}

// IsInputError reports whether err is (or wraps) an InputError.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}

// ConfigurationError marks a startup-time misconfiguration such as a missing
// classifier artifact or a feature-manifest mismatch. It is fatal: the service
// must refuse work rather than run with a broken model contract.
type ConfigurationError struct {
	Msg string
	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("configuration error: %s", e.Msg)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// NewConfigurationError wraps a cause as a fatal configuration error.
func NewConfigurationError(msg string, err error) *ConfigurationError {
	return &ConfigurationError{Msg: msg, Err: err}
}

// IsConfigurationError reports whether err is (or wraps) a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// ComputationError marks an unexpected failure inside one unit of work, such
// as a single student's evaluation in a class batch. It is caught per unit,
// logged, and skipped; one bad student must not abort the batch.
type ComputationError struct {
	StudentID string
	Err       error
}

func (e *ComputationError) Error() string {
	if e.StudentID != "" {
		return fmt.Sprintf("computation failed for student %s: %v", e.StudentID, e.Err)
	}
	return fmt.Sprintf("computation failed: %v", e.Err)
}

func (e *ComputationError) Unwrap() error { return e.Err }

// NewComputationError tags a failure with the student it belongs to.
func NewComputationError(studentID string, err error) *ComputationError {
	return &ComputationError{StudentID: studentID, Err: err}
}
