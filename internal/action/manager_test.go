package action

import (
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/cuelogic-core/internal/consequence"
)

func TestManager_TriggerRole(t *testing.T) {
	f := newFixture(t)

	roles := []Role{RoleActivate, RoleDeactivate, RoleBoth, RoleNone}
	var actions []*Action
	for _, r := range roles {
		a := f.newAction(t, 0)
		if err := a.SetRole(r); err != nil {
			t.Fatalf("SetRole(%s): %v", r, err)
		}
		actions = append(actions, a)
	}
	// Role triggers ignore validation state but skip disabled actions.
	enableQuietly := func(a *Action) {
		// Enabling with validation time 0 would fire onFalse at once;
		// use a long window so only the role trigger fires.
		_ = a.SetValidationTime(time.Hour)
		a.SetEnabled(true)
	}
	for _, a := range actions {
		enableQuietly(a)
	}
	actions[2].SetEnabled(false) // both, disabled

	if n := f.actions.TriggerRole(RoleActivate); n != 1 {
		t.Errorf("TriggerRole(activate) = %d, want 1", n)
	}
	if n := f.actions.TriggerRole(RoleDeactivate); n != 1 {
		t.Errorf("TriggerRole(deactivate) = %d, want 1", n)
	}
	if n := f.actions.TriggerRole(RoleNone); n != 0 {
		t.Errorf("TriggerRole(none) = %d, want 0", n)
	}
	for _, a := range actions {
		drain(t, a)
	}

	if f.disp.count("on") != 1 || f.disp.count("off") != 1 {
		t.Errorf("on = %d, off = %d; want 1, 1", f.disp.count("on"), f.disp.count("off"))
	}
	for _, exec := range f.rec.all() {
		if exec.Trigger != TriggerRole {
			t.Errorf("execution trigger = %q, want role", exec.Trigger)
		}
	}

	actions[2].SetEnabled(true)
	if n := f.actions.TriggerRole(RoleActivate); n != 2 {
		t.Errorf("TriggerRole(activate) with both enabled = %d, want 2", n)
	}
}

func TestManager_EventsFollowOwnership(t *testing.T) {
	f := newFixture(t)
	a := f.newAction(t, 0)

	var got []EventType
	f.actions.OnEvent(func(ev Event) { got = append(got, ev.Type) })

	_ = a.SetRole(RoleBoth)
	f.actions.RemoveItem(a)

	if len(got) != 1 || got[0] != EventRoleChanged {
		t.Errorf("events = %v, want [role_changed]", got)
	}
}

func TestManager_RemoveStopsValidation(t *testing.T) {
	f := newFixture(t)
	a := f.newAction(t, 200*time.Millisecond)
	a.SetEnabled(true)
	_ = f.flag.Set(true)

	f.actions.RemoveItem(a)
	f.clock.Advance(time.Second)

	if f.disp.count("on")+f.disp.count("off") != 0 {
		t.Error("removed action fired")
	}
	if a.State() != StateIdle {
		t.Errorf("state = %s, want idle", a.State())
	}
	if !a.IsDestroyed() || a.Conditions().Len() != 0 || a.OnTrue().Len() != 0 {
		t.Error("removed action should be destroyed with empty sets")
	}
	a.Fire(true) // worker stopped: dropped
	if f.disp.count("on") != 0 {
		t.Error("Fire on a removed action dispatched")
	}
}

func TestManager_ActionByName(t *testing.T) {
	f := newFixture(t)
	f.newAction(t, 0)

	if _, err := f.actions.ActionByName("action"); err != nil {
		t.Errorf("ActionByName: %v", err)
	}
	if _, err := f.actions.ActionByName("missing"); !errors.Is(err, ErrActionNotFound) {
		t.Errorf("ActionByName error = %v, want ErrActionNotFound", err)
	}
}

func TestManager_CheckAll(t *testing.T) {
	f := newFixture(t)
	a, _ := f.actions.AddItem(nil)
	b, _ := f.actions.AddItem(nil)
	_, _ = a.OnTrue().AddConsequence(consequence.Definition{Module: "desk", Command: "on"})
	_, _ = b.OnTrue().AddConsequence(consequence.Definition{Module: "desk", Command: "on"})

	f.actions.CheckAll()
	drain(t, a)
	drain(t, b)

	if got := f.disp.count("on"); got != 2 {
		t.Errorf("onTrue fired %d times, want 2", got)
	}
}
