package gpu

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when a barrier's Before state does not match the tracked state of its resource.
var ErrInvalidTransition = errors.New("invalid resource state transition")

// ResourceError reports a failed GPU object creation. Creation failures are fatal to the caller.
type ResourceError struct {
	// Op names the operation that failed, e.g. "create buffer".
	Op string
	// Err is the underlying cause.
	Err error
}

// NewResourceError wraps err as a ResourceError for the given operation.
func NewResourceError(op string, err error) *ResourceError {
	return &ResourceError{Op: op, Err: err}
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("gpu: %s: %v", e.Op, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}
