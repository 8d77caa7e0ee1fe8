package item

import "errors"

// Domain errors for the item package.
var (
	// ErrCreateFailed is returned when a manager factory cannot build an item.
	ErrCreateFailed = errors.New("item: create failed")

	// ErrUnknownType is returned by factories for an unregistered item type.
	ErrUnknownType = errors.New("item: unknown type")
)
