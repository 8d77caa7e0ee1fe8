package container

import "errors"

// Domain errors for the container package.
var (
	// ErrInvalidValue is returned when a value cannot be stored in a parameter.
	ErrInvalidValue = errors.New("container: invalid value")
)
