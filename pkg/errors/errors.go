// Package errors provides the error types shared by every sealedml package.
//
// Errors are built on github.com/cockroachdb/errors so that they carry stack
// traces (visible with "%+v") while remaining compatible with the standard
// library's errors.Is / errors.As / errors.Unwrap.
//
// The typed errors describe the failure classes that show up across the
// module:
//
//   - DimensionError: matrix/share shapes that do not line up
//   - NotFittedError: a model used before Fit
//   - ValueError: an argument with an invalid value
//   - ValidationError: a named parameter that failed validation
//   - ModelError: an operation failure wrapping a cause
//   - ProtocolError: a failure inside a multi-party protocol step
package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Sentinel errors.
var (
	// ErrNotImplemented marks functionality that is not available.
	ErrNotImplemented = errors.New("not implemented")
	// ErrEmptyData is returned when an input has no rows or columns.
	ErrEmptyData = errors.New("empty data")
	// ErrUnsupported marks a configuration value the runtime cannot execute.
	ErrUnsupported = errors.New("unsupported")
	// ErrAborted is returned by blocked network operations after an abort.
	ErrAborted = errors.New("aborted")
	// ErrNotUp is returned when the emulator is used before Up or after Down.
	ErrNotUp = errors.New("emulator is not up")
	// ErrShareMismatch is returned when replicated shares disagree.
	ErrShareMismatch = errors.New("replicated shares are inconsistent")
)

// New, Newf, Wrap, Wrapf, Is, As, Unwrap and Join re-export cockroachdb/errors so
// callers only need a single errors import.
var (
	New    = errors.New
	Newf   = errors.Newf
	Wrap   = errors.Wrap
	Wrapf  = errors.Wrapf
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

const prefix = "sealedml"

// DimensionError reports a shape mismatch along Axis (0 = rows, 1 = columns).
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int
}

func (e *DimensionError) Error() string {
	axis := "rows"
	if e.Axis == 1 {
		axis = "columns"
	}
	return fmt.Sprintf("%s: %s: dimension mismatch in %s: expected %d, got %d",
		prefix, e.Op, axis, e.Expected, e.Got)
}

// NewDimensionError creates a DimensionError with a stack trace.
func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

// NotFittedError is returned when a model is used before it has been fitted.
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("%s: %s: this %s instance is not fitted yet; call Fit before %s",
		prefix, e.ModelName, e.ModelName, e.Method)
}

// NewNotFittedError creates a NotFittedError with a stack trace.
func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

// ValueError reports an invalid argument value.
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("%s: %s: %s", prefix, e.Op, e.Message)
}

// NewValueError creates a ValueError with a stack trace.
func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// ValidationError reports a named parameter that failed validation.
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: invalid parameter %q (value %v): %s", prefix, e.ParamName, e.Value, e.Reason)
}

// NewValidationError creates a ValidationError with a stack trace.
func NewValidationError(paramName, reason string, value interface{}) error {
	return errors.WithStack(&ValidationError{ParamName: paramName, Reason: reason, Value: value})
}

// ModelError wraps a cause with the operation that failed.
type ModelError struct {
	Op      string
	Message string
	Err     error
}

func (e *ModelError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s: %s", prefix, e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s: %v", prefix, e.Op, e.Message, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// NewModelError creates a ModelError. The returned value is the *ModelError
// itself so that Unwrap yields err directly.
func NewModelError(op, message string, err error) error {
	return &ModelError{Op: op, Message: message, Err: err}
}

// ProtocolError reports a failure of one party inside a protocol step.
type ProtocolError struct {
	Party int
	Op    string
	Err   error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: party %d: %s: %v", prefix, e.Party, e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// NewProtocolError wraps err with the party and protocol step it happened in.
// A nil err yields nil.
func NewProtocolError(party int, op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProtocolError
	if errors.As(err, &pe) {
		// already attributed to a party; keep the innermost step
		return err
	}
	return errors.WithStack(&ProtocolError{Party: party, Op: op, Err: err})
}
