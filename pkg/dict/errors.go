package dict

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownType is returned for type names outside the supported set.
	ErrUnknownType = errors.New("unknown attribute type")

	// ErrDuplicateAttribute is returned when two attributes share a name.
	ErrDuplicateAttribute = errors.New("duplicate attribute")

	// ErrInvalidAttribute is returned for malformed attribute definitions.
	ErrInvalidAttribute = errors.New("invalid attribute definition")
)

// LoadError describes a dictionary file that could not be loaded.
type LoadError struct {
	Path  string
	Cause error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load dictionary %s: %v", e.Path, e.Cause)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}
