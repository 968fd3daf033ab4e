package transform

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownEngine  = errors.New("transform: unknown engine")
	ErrInvalidProgram = errors.New("transform: invalid program")
	ErrInvalidCommand = errors.New("transform: invalid command")

	// ErrUnsupportedOperation is wrapped by *UnsupportedOperationError.
	ErrUnsupportedOperation = errors.New("transform: unsupported operation")
)

// Program kinds reported by EvaluationError.
const (
	ProgramBody     = "body"
	ProgramProperty = "property"
)

// EvaluationError reports a failure while running a transform program or
// applying its result.
type EvaluationError struct {
	Program string // ProgramBody or ProgramProperty
	Err     error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("transform: %s program: %v", e.Program, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// UnsupportedOperationError reports a command the property schema defines but
// the transformer refuses to apply.
//
// TODO: RemoveProperty has always been rejected here; decide with the route
// owners whether removal should ship before relaxing this.
type UnsupportedOperationError struct {
	Command string
	Name    string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("transform: unsupported operation %s(%q)", e.Command, e.Name)
}

func (e *UnsupportedOperationError) Unwrap() error { return ErrUnsupportedOperation }
