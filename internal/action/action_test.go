package action

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/cuelogic-core/internal/condition"
	"github.com/nerrad567/cuelogic-core/internal/consequence"
	"github.com/nerrad567/cuelogic-core/internal/container"
)

// ─── Validation ─────────────────────────────────────────────────────────────

func TestAction_DebounceScenario(t *testing.T) {
	f := newFixture(t)
	a := f.newAction(t, 200*time.Millisecond)
	t0 := f.clock.Now()

	a.SetEnabled(true) // idle: starts validating false
	_ = f.flag.Set(true)
	f.clock.Advance(150 * time.Millisecond)
	_ = f.flag.Set(false)
	f.clock.Advance(10 * time.Millisecond)
	_ = f.flag.Set(true)

	f.clock.Advance(199 * time.Millisecond)
	if a.State() != StateValidating {
		t.Fatalf("state at 359ms = %s, want validating", a.State())
	}

	f.clock.Advance(1 * time.Millisecond)
	if a.State() != StateValidatedTrue {
		t.Fatalf("state at 360ms = %s, want validated_true", a.State())
	}
	drain(t, a)

	f.clock.Advance(time.Second)
	drain(t, a)

	if got := f.disp.count("on"); got != 1 {
		t.Errorf("onTrue fired %d times, want 1", got)
	}
	if got := f.disp.count("off"); got != 0 {
		t.Errorf("onFalse fired %d times, want 0", got)
	}
	execs := f.rec.all()
	if len(execs) != 1 {
		t.Fatalf("executions = %d, want 1", len(execs))
	}
	if got := execs[0].StartedAt.Sub(t0); got != 360*time.Millisecond {
		t.Errorf("fired at %v, want 360ms", got)
	}
	if !execs[0].Valid || execs[0].Trigger != TriggerValidation {
		t.Errorf("execution = %+v", execs[0])
	}
}

func TestAction_SingleFireOnChange(t *testing.T) {
	f := newFixture(t)
	_ = f.flag.Set(true)
	a := f.newAction(t, 100*time.Millisecond)
	a.SetEnabled(true)

	f.clock.Advance(100 * time.Millisecond)
	// Same result again: nothing new.
	_ = f.flag.Set(false)
	_ = f.flag.Set(true)
	a.Check()
	f.clock.Advance(time.Second)
	drain(t, a)

	if got := f.disp.count("on"); got != 1 {
		t.Errorf("onTrue fired %d times, want 1", got)
	}
	if got := f.disp.count("off"); got != 0 {
		t.Errorf("onFalse fired %d times, want 0", got)
	}
}

func TestAction_FlipBeforeWindowNeverFires(t *testing.T) {
	f := newFixture(t)
	a := f.newAction(t, 200*time.Millisecond)
	a.SetEnabled(true)
	f.clock.Advance(200 * time.Millisecond) // validated false
	drain(t, a)

	_ = f.flag.Set(true)
	f.clock.Advance(100 * time.Millisecond)
	_ = f.flag.Set(false) // back to the validated result
	if a.State() != StateValidatedFalse {
		t.Fatalf("state = %s, want validated_false", a.State())
	}
	f.clock.Advance(time.Second)
	drain(t, a)

	if got := f.disp.count("on"); got != 0 {
		t.Errorf("onTrue fired %d times, want 0", got)
	}
	if got := f.disp.count("off"); got != 1 {
		t.Errorf("onFalse fired %d times, want 1 (initial validation)", got)
	}
}

func TestAction_ZeroDelayConfirmsImmediately(t *testing.T) {
	f := newFixture(t)
	a := f.newAction(t, 0)

	a.SetEnabled(true)
	if a.State() != StateValidatedFalse {
		t.Fatalf("state = %s, want validated_false", a.State())
	}
	_ = f.flag.Set(true)
	if a.State() != StateValidatedTrue {
		t.Fatalf("state = %s, want validated_true", a.State())
	}
	_ = f.flag.Set(false)
	drain(t, a)

	if f.disp.count("on") != 1 || f.disp.count("off") != 2 {
		t.Errorf("on = %d, off = %d; want 1, 2", f.disp.count("on"), f.disp.count("off"))
	}
}

func TestAction_EmptyConditionsAreTrue(t *testing.T) {
	f := newFixture(t)
	a, err := f.actions.AddItem(nil)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	_, _ = a.OnTrue().AddConsequence(consequence.Definition{Module: "desk", Command: "on"})

	if !a.Conditions().Evaluate() {
		t.Fatal("empty condition set should be true")
	}
	a.Check()
	if a.State() != StateValidatedTrue {
		t.Fatalf("state = %s, want validated_true", a.State())
	}
	drain(t, a)
	if got := f.disp.count("on"); got != 1 {
		t.Errorf("onTrue fired %d times, want 1", got)
	}
}

func TestAction_StaleTimerIsNoop(t *testing.T) {
	f := newFixture(t)
	a := f.newAction(t, 200*time.Millisecond)
	a.SetEnabled(true)

	a.mu.Lock()
	stale := a.gen
	a.mu.Unlock()

	_ = f.flag.Set(true) // re-arms, stale generation is dead
	a.expire(stale)

	if a.State() != StateValidating {
		t.Errorf("state = %s, want validating", a.State())
	}
	if valid, ok := a.LastValid(); ok {
		t.Errorf("LastValid() = %v, want none", valid)
	}
}

func TestAction_DisableCancelsValidation(t *testing.T) {
	f := newFixture(t)
	a := f.newAction(t, 200*time.Millisecond)
	a.SetEnabled(true)

	var events []Event
	a.OnEvent(func(ev Event) { events = append(events, ev) })

	a.SetEnabled(false)
	if a.State() != StateIdle {
		t.Errorf("state = %s, want idle", a.State())
	}
	f.clock.Advance(time.Second)
	_ = f.flag.Set(true)
	drain(t, a)

	if f.disp.count("on")+f.disp.count("off") != 0 {
		t.Error("disabled action fired")
	}
	if len(events) != 1 || events[0].Type != EventEnabledChanged || events[0].Enabled {
		t.Errorf("events = %+v", events)
	}

	a.SetEnabled(true) // re-check against the current result
	f.clock.Advance(200 * time.Millisecond)
	drain(t, a)
	if got := f.disp.count("on"); got != 1 {
		t.Errorf("onTrue fired %d times after re-enable, want 1", got)
	}
}

func TestAction_ValidationProgress(t *testing.T) {
	f := newFixture(t)
	a := f.newAction(t, 200*time.Millisecond)

	if a.ValidationProgress() != 0 {
		t.Errorf("idle progress = %v, want 0", a.ValidationProgress())
	}
	a.SetEnabled(true)
	f.clock.Advance(50 * time.Millisecond)
	if got := a.ValidationProgress(); got != 0.25 {
		t.Errorf("progress = %v, want 0.25", got)
	}
	f.clock.Advance(150 * time.Millisecond)
	if got := a.ValidationProgress(); got != 1 {
		t.Errorf("validated progress = %v, want 1", got)
	}
	p, _ := a.ParameterByName("validationProgress")
	if p.Float() != 1 {
		t.Errorf("validationProgress parameter = %v, want 1", p.Value())
	}
}

// ─── Events & Role ──────────────────────────────────────────────────────────

func TestAction_Events(t *testing.T) {
	f := newFixture(t)
	a := f.newAction(t, 0)

	var events []Event
	a.OnEvent(func(ev Event) { events = append(events, ev) })

	if err := a.SetRole(RoleActivate); err != nil {
		t.Fatalf("SetRole: %v", err)
	}
	a.SetEnabled(true)

	want := []struct {
		typ   EventType
		state State
	}{
		{EventRoleChanged, StateIdle},
		{EventEnabledChanged, StateIdle},
		{EventValidationChanged, StateValidatedFalse},
	}
	if len(events) != len(want) {
		t.Fatalf("events = %d, want %d", len(events), len(want))
	}
	for i, w := range want {
		if events[i].Type != w.typ || events[i].State != w.state {
			t.Errorf("event %d = (%s, %s), want (%s, %s)", i, events[i].Type, events[i].State, w.typ, w.state)
		}
	}
	if events[0].Role != RoleActivate {
		t.Errorf("role event carries %q", events[0].Role)
	}
	if events[0].Action != a {
		t.Error("event does not reference the action")
	}
}

func TestAction_Roles(t *testing.T) {
	a := New(Deps{})
	if err := a.SetRole("sideways"); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("SetRole error = %v, want ErrInvalidRole", err)
	}

	tests := []struct {
		role       Role
		activate   bool
		deactivate bool
	}{
		{RoleNone, false, false},
		{RoleActivate, true, false},
		{RoleDeactivate, false, true},
		{RoleBoth, true, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			_ = a.SetRole(tt.role)
			if a.HasRole(RoleActivate) != tt.activate || a.HasRole(RoleDeactivate) != tt.deactivate {
				t.Errorf("HasRole(activate, deactivate) = (%v, %v), want (%v, %v)",
					a.HasRole(RoleActivate), a.HasRole(RoleDeactivate), tt.activate, tt.deactivate)
			}
		})
	}
}

// ─── Persistence ────────────────────────────────────────────────────────────

func TestAction_RoundTrip(t *testing.T) {
	src := newFixture(t)
	a := src.newAction(t, 1500*time.Millisecond)
	_ = a.SetRole(RoleDeactivate)
	a.SetNiceName("House Lights")

	data, err := json.Marshal(src.actions.Export())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var snap container.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	dst := newFixture(t)
	if err := dst.actions.Import(&snap); err != nil {
		t.Fatalf("Import: %v", err)
	}

	got, err := dst.actions.ActionByName("action")
	if err != nil {
		t.Fatalf("ActionByName: %v", err)
	}
	if got.NiceName() != "House Lights" || got.Role() != RoleDeactivate || got.Enabled() {
		t.Errorf("action = (%q, %s, enabled %v)", got.NiceName(), got.Role(), got.Enabled())
	}
	if got.ValidationTime() != 1500*time.Millisecond {
		t.Errorf("ValidationTime() = %v", got.ValidationTime())
	}
	if got.Conditions().Len() != 1 || got.OnTrue().Len() != 1 || got.OnFalse().Len() != 1 {
		t.Fatalf("sets = %d/%d/%d, want 1/1/1",
			got.Conditions().Len(), got.OnTrue().Len(), got.OnFalse().Len())
	}
	std := got.Conditions().Items()[0].(*condition.Standard)
	if std.Bound() != dst.flag {
		t.Error("restored condition is not bound to /values/flag")
	}
	if cmd := got.OnFalse().Items()[0].Command().String(); cmd != "off" {
		t.Errorf("onFalse command = %q, want off", cmd)
	}
}

func TestAction_LoadDoesNotEvaluate(t *testing.T) {
	src := newFixture(t)
	a := src.newAction(t, 0)
	src.flag.Owner().AddBoolParameter("Armed", "", false)
	c, err := a.Conditions().AddCondition(condition.TypeStandard)
	if err != nil {
		t.Fatalf("AddCondition: %v", err)
	}
	std := c.(*condition.Standard)
	_ = std.Reference().Set("true")
	_ = std.Source().Set("/values/armed")
	a.SetEnabled(true)
	drain(t, a)

	snap := src.actions.Export()

	dst := newFixture(t)
	armed := dst.flag.Owner().AddBoolParameter("Armed", "", false)
	_ = dst.flag.Set(true)
	if err := dst.actions.Import(snap); err != nil {
		t.Fatalf("Import: %v", err)
	}
	got, err := dst.actions.ActionByName("action")
	if err != nil {
		t.Fatalf("ActionByName: %v", err)
	}
	drain(t, got)

	if !got.Enabled() || got.Conditions().Len() != 2 {
		t.Fatalf("restored action: enabled %v, %d conditions", got.Enabled(), got.Conditions().Len())
	}
	if n := dst.disp.count("on") + dst.disp.count("off"); n != 0 {
		t.Errorf("loading fired %d consequences, want 0", n)
	}
	if got.State() != StateIdle {
		t.Errorf("state after load = %s, want idle", got.State())
	}

	dst.actions.CheckAll()
	drain(t, got)
	if dst.disp.count("on") != 0 || dst.disp.count("off") != 1 {
		t.Errorf("after CheckAll on=%d off=%d, want 0/1", dst.disp.count("on"), dst.disp.count("off"))
	}

	// Loading is over: live changes drive the action again.
	_ = armed.Set(true)
	drain(t, got)
	if dst.disp.count("on") != 1 {
		t.Errorf("on fired %d times after armed, want 1", dst.disp.count("on"))
	}
}

func TestAction_RemoveWhileValidating(t *testing.T) {
	for range 50 {
		f := newFixture(t)
		a := f.newAction(t, 100*time.Millisecond)
		a.SetEnabled(true)
		_ = f.flag.Set(true)

		done := make(chan struct{})
		go func() {
			defer close(done)
			f.clock.Advance(time.Second)
		}()
		f.actions.RemoveItem(a)
		<-done

		if !a.IsDestroyed() {
			t.Fatal("removed action is not destroyed")
		}
	}
}
