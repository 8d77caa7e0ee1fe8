package consequence

import "errors"

// Domain errors for the consequence package.
var (
	// ErrNoCommand is returned when a consequence has no module or command set.
	ErrNoCommand = errors.New("consequence: no command")

	// ErrNoDispatcher is returned when a consequence has nowhere to send its command.
	ErrNoDispatcher = errors.New("consequence: no dispatcher")

	// ErrPanic wraps a panic recovered while dispatching a command.
	ErrPanic = errors.New("consequence: dispatch panicked")
)
