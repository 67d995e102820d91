package lambdameta

import (
	"errors"
	"fmt"
)

var (
	// ErrResourceNotFound is returned by locators when no class resource
	// exists under the requested name.
	ErrResourceNotFound = errors.New("class resource not found")

	// ErrMetadataUnavailable is the surface error of DeclarationLine when the
	// declaring class could not be found or decoded.
	ErrMetadataUnavailable = errors.New("declaration metadata unavailable")
)

// UnavailableError reports why the declaration line of a method could not be
// computed. It matches ErrMetadataUnavailable and its cause with errors.Is.
type UnavailableError struct {
	Type     string
	Resource string
	Err      error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%v: %s (%s): %v", ErrMetadataUnavailable, e.Type, e.Resource, e.Err)
}

func (e *UnavailableError) Unwrap() []error {
	return []error{ErrMetadataUnavailable, e.Err}
}
