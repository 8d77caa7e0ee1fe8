package action

import "errors"

// Domain errors for the action package.
var (
	// ErrInvalidRole is returned when a role name is not one of Roles().
	ErrInvalidRole = errors.New("action: invalid role")

	// ErrActionNotFound is returned when an action short name does not exist.
	ErrActionNotFound = errors.New("action: not found")
)
