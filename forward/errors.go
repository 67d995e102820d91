package forward

import (
	"errors"
	"fmt"
)

// ErrNotSupported is returned for visitor operations outside the forwarded
// subset: labels, jumps, switches, raw try/catch entries, line numbers,
// local-variable entries, annotations and attributes.
var ErrNotSupported = errors.New("operation not supported by the forwarder")

// NotSupportedError names the rejected operation.
type NotSupportedError struct {
	Op string
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, ErrNotSupported)
}

// Unwrap lets errors.Is match ErrNotSupported.
func (e *NotSupportedError) Unwrap() error {
	return ErrNotSupported
}

func notSupported(op string) error {
	return &NotSupportedError{Op: op}
}
