package action

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/nerrad567/cuelogic-core/internal/condition"
	"github.com/nerrad567/cuelogic-core/internal/consequence"
)

// Role tags an action for the orchestration layer.
type Role string

// Roles.
const (
	RoleNone       Role = "none"
	RoleActivate   Role = "activate"
	RoleDeactivate Role = "deactivate"
	RoleBoth       Role = "both"
)

// Roles returns every role name, in display order.
func Roles() []string {
	return []string{string(RoleNone), string(RoleActivate), string(RoleDeactivate), string(RoleBoth)}
}

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	if !slices.Contains(Roles(), s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return Role(s), nil
}

// State is the validation state of an action.
type State int

// States.
const (
	StateIdle State = iota
	StateValidating
	StateValidatedTrue
	StateValidatedFalse
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateValidatedTrue:
		return "validated_true"
	case StateValidatedFalse:
		return "validated_false"
	}
	return "unknown"
}

func validatedState(v bool) State {
	if v {
		return StateValidatedTrue
	}
	return StateValidatedFalse
}

// EventType identifies an action event.
type EventType string

// Event types.
const (
	EventEnabledChanged    EventType = "enabled_changed"
	EventRoleChanged       EventType = "role_changed"
	EventValidationChanged EventType = "validation_changed"
)

// Event reports a change of an action. The fields reflect the action at the
// time of the change.
type Event struct {
	Type    EventType
	Action  *Action
	Enabled bool
	Role    Role
	State   State

	// Valid is the pending result while validating, else the last
	// validated result.
	Valid bool

	Progress float64
}

// Execution records one run of a consequence set.
type Execution struct {
	ID           string
	Action       string
	Valid        bool
	Trigger      string
	StartedAt    time.Time
	Consequences consequence.Result
}

// Execution triggers.
const (
	TriggerValidation = "validation"
	TriggerManual     = "manual"
	TriggerRole       = "role"
)

// Recorder receives every execution, typically for logging and metrics.
type Recorder interface {
	RecordExecution(ctx context.Context, exec Execution)
}

// Logger defines the logging interface used by actions.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Deps are the collaborators injected into every action.
type Deps struct {
	Resolver    condition.Resolver
	Dispatcher  consequence.Dispatcher
	Definitions consequence.DefinitionLookup

	// Clock defaults to RealClock.
	Clock Clock

	// Logger defaults to a no-op logger.
	Logger Logger

	// Recorder is optional.
	Recorder Recorder

	// DefaultValidationTime is the validation time of new actions.
	DefaultValidationTime time.Duration
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = RealClock()
	}
	if d.Logger == nil {
		d.Logger = noopLogger{}
	}
	return d
}
