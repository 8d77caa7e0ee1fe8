package module

import "errors"

// Domain-specific errors for module operations.
var (
	// ErrModuleNotFound is returned when a command names an unknown module.
	ErrModuleNotFound = errors.New("module: not found")

	// ErrModuleDisabled is returned when a disabled module receives a command.
	ErrModuleDisabled = errors.New("module: disabled")

	// ErrUnknownType is returned by the factory for unregistered module types.
	ErrUnknownType = errors.New("module: unknown type")

	// ErrUnknownCommand is returned when a driver does not know a command.
	ErrUnknownCommand = errors.New("module: unknown command")

	// ErrInvalidArgument is returned when a command argument is missing or malformed.
	ErrInvalidArgument = errors.New("module: invalid argument")

	// ErrNoTransport is returned when an MQTT module runs without a broker client.
	ErrNoTransport = errors.New("module: no mqtt client")
)
