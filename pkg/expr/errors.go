package expr

import (
	"errors"
	"fmt"
)

var (
	// ErrAttributeNotFound is returned when the referenced attribute is not
	// present in the request list.
	ErrAttributeNotFound = errors.New("attribute not found")

	// ErrNotUnsigned is returned by FindUint for non integer references.
	ErrNotUnsigned = errors.New("expression does not reference an unsigned integer attribute")

	// ErrEmptyExpansion is returned when an expansion produces no output.
	ErrEmptyExpansion = errors.New("expansion produced no output")
)

// EvalError wraps HCL diagnostics produced while evaluating an expression.
type EvalError struct {
	Expression string
	Cause      error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("failed to evaluate %s: %v", e.Expression, e.Cause)
}

func (e *EvalError) Unwrap() error {
	return e.Cause
}
