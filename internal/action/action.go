package action

import (
	"sync"
	"time"

	"github.com/nerrad567/cuelogic-core/internal/condition"
	"github.com/nerrad567/cuelogic-core/internal/consequence"
	"github.com/nerrad567/cuelogic-core/internal/container"
	"github.com/nerrad567/cuelogic-core/internal/item"
	"github.com/nerrad567/cuelogic-core/internal/notify"
)

// maxValidationTime bounds the validation time parameter, in seconds.
const maxValidationTime = 3600

// Action couples a condition set to two consequence sets through a
// debounced validation window.
//
// A change of the combined condition result starts validation. The result
// must then hold for the whole validation time; each flip restarts the
// window against the new result. When the window completes the action
// enters validated_true or validated_false and fires onTrue or onFalse once.
// A result equal to the last validated one fires nothing.
//
// Thread Safety: safe for concurrent use. Consequence sets run on a
// per-action worker goroutine, so condition evaluation never waits for
// module I/O.
type Action struct {
	*item.Base

	deps Deps

	enabled            *container.Parameter
	role               *container.Parameter
	validationTime     *container.Parameter
	validationProgress *container.Parameter
	isValid            *container.Parameter

	conditions *condition.Set
	onTrue     *consequence.Set
	onFalse    *consequence.Set

	mu           sync.Mutex
	state        State
	pending      bool
	lastValid    bool
	hasValidated bool
	gen          uint64
	timer        Timer
	armedAt      time.Time
	armedFor     time.Duration
	clearing     bool
	loading      bool

	// pubMu orders publish against Clear so the transient parameters are
	// never written after the action started going away.
	pubMu sync.Mutex

	worker worker

	events notify.List[Event]
}

// New creates an enabled action with empty condition and consequence sets.
func New(deps Deps) *Action {
	deps = deps.withDefaults()
	a := &Action{
		Base: item.NewBase("Action"),
		deps: deps,
	}
	a.worker.run = a.execute

	a.enabled = a.AddBoolParameter("Enabled", "evaluate conditions and fire consequences", true)
	a.role = a.AddEnumParameter("Role", "tag used by role triggers", Roles(), string(RoleNone))
	a.validationTime = a.AddFloatParameter("Validation Time",
		"seconds the condition result must hold before firing",
		deps.DefaultValidationTime.Seconds(), 0, maxValidationTime)
	a.validationProgress = a.AddFloatParameter("Validation Progress", "", 0, 0, 1).SetPersistent(false)
	a.isValid = a.AddBoolParameter("Is Valid", "last validated result", false).SetPersistent(false)

	a.conditions = condition.NewSet(deps.Resolver)
	a.conditions.SetLogger(deps.Logger)
	a.onTrue = consequence.NewSet("On True", deps.Dispatcher, deps.Definitions)
	a.onTrue.SetLogger(deps.Logger)
	a.onFalse = consequence.NewSet("On False", deps.Dispatcher, deps.Definitions)
	a.onFalse.SetLogger(deps.Logger)
	a.AddChild(a.conditions.Container)
	a.AddChild(a.onTrue.Container)
	a.AddChild(a.onFalse.Container)

	a.enabled.OnChange(func(*container.Parameter) { a.enabledChanged() })
	a.role.OnChange(func(*container.Parameter) { a.emit(EventRoleChanged) })
	a.conditions.OnChange(a.handleConditions)
	return a
}

// Conditions returns the condition set.
func (a *Action) Conditions() *condition.Set { return a.conditions }

// OnTrue returns the consequences fired on validation to true.
func (a *Action) OnTrue() *consequence.Set { return a.onTrue }

// OnFalse returns the consequences fired on validation to false.
func (a *Action) OnFalse() *consequence.Set { return a.onFalse }

// Enabled reports whether the action reacts to its conditions.
func (a *Action) Enabled() bool { return a.enabled.Bool() }

// SetEnabled enables or disables the action. Disabling cancels a running
// validation and returns the action to idle; enabling re-checks the
// conditions.
func (a *Action) SetEnabled(v bool) { _ = a.enabled.Set(v) }

// Role returns the action's role.
func (a *Action) Role() Role { return Role(a.role.String()) }

// SetRole changes the role and emits EventRoleChanged.
func (a *Action) SetRole(r Role) error {
	if _, err := ParseRole(string(r)); err != nil {
		return err
	}
	return a.role.Set(string(r))
}

// HasRole reports whether the action takes part in r. RoleBoth matches
// activate and deactivate.
func (a *Action) HasRole(r Role) bool {
	own := a.Role()
	if own == r {
		return true
	}
	return own == RoleBoth && (r == RoleActivate || r == RoleDeactivate)
}

// ValidationTime returns how long a result must hold before it fires.
func (a *Action) ValidationTime() time.Duration {
	return time.Duration(a.validationTime.Float() * float64(time.Second))
}

// SetValidationTime sets the validation time. It applies from the next
// validation on.
func (a *Action) SetValidationTime(d time.Duration) error {
	return a.validationTime.Set(d.Seconds())
}

// State returns the validation state.
func (a *Action) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// LastValid returns the last validated result and whether one exists.
func (a *Action) LastValid() (valid, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastValid, a.hasValidated
}

// ValidationProgress returns how far the running validation window has
// elapsed, from 0 to 1. It is 1 once validated and 0 when idle.
func (a *Action) ValidationProgress() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.progressLocked()
}

func (a *Action) progressLocked() float64 {
	switch a.state {
	case StateValidating:
		if a.armedFor <= 0 {
			return 0
		}
		p := float64(a.deps.Clock.Now().Sub(a.armedAt)) / float64(a.armedFor)
		return min(max(p, 0), 1)
	case StateValidatedTrue, StateValidatedFalse:
		return 1
	}
	return 0
}

// OnEvent registers fn for the action's events.
func (a *Action) OnEvent(fn func(Event)) func() {
	return a.events.Add(fn)
}

// Check evaluates the conditions as if they had just changed.
func (a *Action) Check() {
	a.handleConditions(a.conditions.Evaluate())
}

// Fire runs onTrue (valid) or onFalse without touching the validation
// state. Fire is the manual trigger; it works on disabled actions too.
func (a *Action) Fire(valid bool) {
	a.worker.enqueue(job{valid: valid, trigger: TriggerManual, at: a.deps.Clock.Now()})
}

// fireRole queues the set selected by a role trigger.
func (a *Action) fireRole(valid bool) {
	a.worker.enqueue(job{valid: valid, trigger: TriggerRole, at: a.deps.Clock.Now()})
}

// beginLoad suppresses evaluation while the action is imported. Partial
// condition sets seen during the import never drive the state machine.
func (a *Action) beginLoad() {
	a.mu.Lock()
	a.loading = true
	a.mu.Unlock()
}

// finishLoad ends the import. It does not evaluate; the owner calls Check
// once the modules the conditions read are up.
func (a *Action) finishLoad() {
	a.mu.Lock()
	a.loading = false
	a.mu.Unlock()
}

// Clear stops the timer and the worker and clears the owned sets.
// The action manager calls it when the action is removed.
func (a *Action) Clear() {
	a.pubMu.Lock()
	a.mu.Lock()
	a.clearing = true
	a.gen++
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.state = StateIdle
	a.mu.Unlock()
	a.pubMu.Unlock()

	a.worker.stop()
	a.conditions.Clear()
	a.onTrue.Clear()
	a.onFalse.Clear()
	a.events.Reset()
}

// handleConditions drives the state machine from a condition result.
func (a *Action) handleConditions(result bool) {
	if !a.Enabled() {
		return
	}

	a.mu.Lock()
	if a.clearing || a.loading {
		a.mu.Unlock()
		return
	}

	switch a.state {
	case StateValidating:
		if result == a.pending {
			a.mu.Unlock()
			return
		}
		if a.hasValidated && result == a.lastValid {
			// Back to the validated result before the window completed.
			a.cancelLocked()
			a.state = validatedState(a.lastValid)
			ev := a.eventLocked(EventValidationChanged)
			a.mu.Unlock()
			a.publish(ev, 1)
			return
		}
	case StateValidatedTrue, StateValidatedFalse:
		if result == a.lastValid {
			a.mu.Unlock()
			return
		}
	}

	delay := a.ValidationTime()
	if delay <= 0 {
		a.cancelLocked()
		a.confirmLocked(result)
		return
	}
	a.armLocked(result, delay)
}

// armLocked starts a validation window for result. Caller holds a.mu;
// armLocked releases it.
func (a *Action) armLocked(result bool, delay time.Duration) {
	a.cancelLocked()
	a.state = StateValidating
	a.pending = result
	a.armedAt = a.deps.Clock.Now()
	a.armedFor = delay
	gen := a.gen
	a.timer = a.deps.Clock.AfterFunc(delay, func() { a.expire(gen) })
	ev := a.eventLocked(EventValidationChanged)
	a.mu.Unlock()

	a.deps.Logger.Debug("action validating",
		"action", a.Address(),
		"result", result,
		"delay", delay,
	)
	a.publish(ev, 0)
}

// expire completes the validation window armed with generation gen.
// Callbacks from a cancelled window are no-ops.
func (a *Action) expire(gen uint64) {
	a.mu.Lock()
	if gen != a.gen || a.clearing || a.state != StateValidating {
		a.mu.Unlock()
		return
	}
	a.timer = nil
	a.confirmLocked(a.pending)
}

// confirmLocked enters the validated state for result and queues the
// matching consequence set. Caller holds a.mu; confirmLocked releases it.
func (a *Action) confirmLocked(result bool) {
	a.gen++
	a.state = validatedState(result)
	a.pending = result
	a.lastValid = result
	a.hasValidated = true
	ev := a.eventLocked(EventValidationChanged)
	at := a.deps.Clock.Now()
	a.mu.Unlock()

	a.deps.Logger.Info("action validated",
		"action", a.Address(),
		"result", result,
	)
	a.publish(ev, 1)
	a.worker.enqueue(job{valid: result, trigger: TriggerValidation, at: at})
}

// cancelLocked invalidates any armed timer. Caller holds a.mu.
func (a *Action) cancelLocked() {
	a.gen++
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func (a *Action) enabledChanged() {
	if a.Enabled() {
		a.emit(EventEnabledChanged)
		a.Check()
		return
	}

	a.mu.Lock()
	a.cancelLocked()
	wasActive := a.state != StateIdle
	a.state = StateIdle
	a.mu.Unlock()

	if wasActive {
		a.pubMu.Lock()
		if !a.isClearing() {
			_ = a.validationProgress.Set(0.0)
		}
		a.pubMu.Unlock()
	}
	a.emit(EventEnabledChanged)
}

// publish mirrors the state into the transient parameters and emits ev.
func (a *Action) publish(ev Event, progress float64) {
	a.pubMu.Lock()
	if a.isClearing() || a.IsRemoved() {
		a.pubMu.Unlock()
		return
	}
	_ = a.validationProgress.Set(progress)
	if ev.State != StateValidating {
		_ = a.isValid.Set(ev.Valid)
	}
	a.pubMu.Unlock()
	a.events.Emit(ev)
}

func (a *Action) isClearing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.clearing
}

func (a *Action) emit(t EventType) {
	a.mu.Lock()
	ev := a.eventLocked(t)
	a.mu.Unlock()
	a.events.Emit(ev)
}

func (a *Action) eventLocked(t EventType) Event {
	valid := a.lastValid
	if a.state == StateValidating {
		valid = a.pending
	}
	return Event{
		Type:     t,
		Action:   a,
		Enabled:  a.enabled.Bool(),
		Role:     Role(a.role.String()),
		State:    a.state,
		Valid:    valid,
		Progress: a.progressLocked(),
	}
}
