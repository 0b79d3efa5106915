package connector

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration is returned when the repository base address is
	// missing or unusable. It surfaces at the first address translation.
	ErrInvalidConfiguration = errors.New("invalid connector configuration")

	// ErrUnspecifiedNodeType is returned by CreateNode when no usable node
	// type is given.
	ErrUnspecifiedNodeType = errors.New("must specify a valid node type")

	// ErrNotAFile is returned when content information is requested for a
	// folder.
	ErrNotAFile = errors.New("can only get content information from files")

	// ErrInvalidLabel is returned when a label is not a single path segment.
	ErrInvalidLabel = errors.New("label must be a single path segment")
)

// OperationError is the single error kind surfaced for repository
// communication failures. Callers never observe backend-specific error types
// without this wrapper; the cause stays reachable through errors.Is/As.
type OperationError struct {
	// Op is the connector operation that failed (see the Op* constants).
	Op string

	// ID is the affected node identifier.
	ID string

	// Err is the underlying cause.
	Err error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s %q failed: %v", e.Op, e.ID, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}
