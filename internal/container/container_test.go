package container

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
)

// ─── Helpers ────────────────────────────────────────────────────────────────

// buildTree creates /modules/lights/values with a few parameters.
func buildTree(t *testing.T) (*Container, *Container) {
	t.Helper()

	root := New("Project")
	modules := New("Modules")
	root.AddChild(modules)
	lights := New("Lights")
	modules.AddChild(lights)
	values := New("Values")
	lights.AddChild(values)

	values.AddFloatParameter("Level", "dimmer level", 0, 0, 1)
	values.AddIntParameter("Scene", "scene number", 1, 0, 64)
	values.AddBoolParameter("Power", "", false)
	values.AddEnumParameter("Mode", "", []string{"auto", "manual"}, "auto")
	values.AddStringParameter("Label", "", "")
	values.AddBoolParameter("Is Valid", "", false).SetPersistent(false)
	values.AddTrigger("Refresh", "")

	return root, values
}

func mustPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s: expected panic", name)
		}
	}()
	fn()
}

// ─── Naming ─────────────────────────────────────────────────────────────────

func TestToShortName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"On True", "onTrue"},
		{"Conditions", "conditions"},
		{"validation Time", "validationTime"},
		{"Level 2", "level2"},
		{"#1", "1"},
		{"isValid", "isValid"},
		{"  ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ToShortName(tt.in); got != tt.want {
				t.Errorf("ToShortName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestAddChild_UniqueNames(t *testing.T) {
	root := New("Root")
	a, b, c := New("Action"), New("Action"), New("Action")
	root.AddChild(a)
	root.AddChild(b)
	root.AddChild(c)

	want := []struct{ nice, short string }{
		{"Action", "action"},
		{"Action 2", "action2"},
		{"Action 3", "action3"},
	}
	for i, child := range root.Children() {
		if child.NiceName() != want[i].nice || child.ShortName() != want[i].short {
			t.Errorf("child %d = (%q, %q), want (%q, %q)",
				i, child.NiceName(), child.ShortName(), want[i].nice, want[i].short)
		}
	}
}

func TestAddChild_RestoredShortNameCollision(t *testing.T) {
	root := New("Root")
	root.AddChild(New("Level"))

	other := New("Other")
	other.RestoreShortName("level")
	root.AddChild(other)

	if other.ShortName() != "level2" {
		t.Errorf("ShortName() = %q, want %q", other.ShortName(), "level2")
	}
	if other.NiceName() != "Other" {
		t.Errorf("NiceName() = %q, want %q", other.NiceName(), "Other")
	}
}

func TestRestoreShortName_LockedPanics(t *testing.T) {
	root := New("Root")
	child := New("Child")
	root.AddChild(child)

	mustPanic(t, "RestoreShortName", func() { child.RestoreShortName("other") })
}

func TestSetNiceName_ShortNameImmutable(t *testing.T) {
	root := New("Root")
	a, b := New("Action"), New("Other")
	root.AddChild(a)
	root.AddChild(b)

	if got := b.SetNiceName("Action"); got != "Action 2" {
		t.Errorf("SetNiceName() = %q, want %q", got, "Action 2")
	}
	b.SetNiceName("Renamed")
	if b.NiceName() != "Renamed" {
		t.Errorf("NiceName() = %q, want %q", b.NiceName(), "Renamed")
	}
	if b.ShortName() != "other" {
		t.Errorf("ShortName() = %q, want %q", b.ShortName(), "other")
	}
}

func TestRemoveChild(t *testing.T) {
	root := New("Root")
	child := New("Child")
	root.AddChild(child)

	if !root.RemoveChild(child) {
		t.Fatal("RemoveChild returned false")
	}
	if root.RemoveChild(child) {
		t.Error("second RemoveChild returned true")
	}
	if child.Parent() != nil {
		t.Error("Parent() should be nil after removal")
	}
	if len(root.Children()) != 0 {
		t.Errorf("len(Children()) = %d, want 0", len(root.Children()))
	}
}

// ─── Addressing ─────────────────────────────────────────────────────────────

func TestAddress_And_ResolveParameter(t *testing.T) {
	root, values := buildTree(t)

	level, ok := values.ParameterByName("level")
	if !ok {
		t.Fatal("level parameter missing")
	}
	if got := level.Address(); got != "/modules/lights/values/level" {
		t.Errorf("Address() = %q", got)
	}
	if got := root.Address(); got != "/" {
		t.Errorf("root Address() = %q, want /", got)
	}

	resolved, ok := root.ResolveParameter("/modules/lights/values/level")
	if !ok || resolved != level {
		t.Error("ResolveParameter did not return the level parameter")
	}
	if _, ok := root.ResolveParameter("/modules/missing/values/level"); ok {
		t.Error("ResolveParameter resolved a missing path")
	}
	if !values.IsDescendantOf(root) {
		t.Error("values should descend from root")
	}
}

// ─── Parameters ─────────────────────────────────────────────────────────────

func TestParameter_SetCoercesAndClamps(t *testing.T) {
	_, values := buildTree(t)
	level, _ := values.ParameterByName("level")
	scene, _ := values.ParameterByName("scene")
	power, _ := values.ParameterByName("power")

	tests := []struct {
		name string
		p    *Parameter
		in   any
		want any
	}{
		{"float clamp high", level, 1.5, 1.0},
		{"float from string", level, "0.25", 0.25},
		{"int rounds", scene, 3.6, 4},
		{"int clamp", scene, 100, 64},
		{"bool from string", power, "true", true},
		{"bool from number", power, 0.0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.p.Set(tt.in); err != nil {
				t.Fatalf("Set(%v): %v", tt.in, err)
			}
			if got := tt.p.Value(); got != tt.want {
				t.Errorf("Value() = %v (%T), want %v (%T)", got, got, tt.want, tt.want)
			}
		})
	}
}

func TestParameter_RangeWhileResized(t *testing.T) {
	_, values := buildTree(t)
	level, _ := values.ParameterByName("level")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := range 200 {
			level.SetRange(0, float64(i+1))
		}
	}()
	go func() {
		defer wg.Done()
		for range 200 {
			if lo, hi, ok := level.Range(); !ok || lo != 0 || hi < 1 {
				t.Errorf("Range() = %v, %v, %v", lo, hi, ok)
				return
			}
		}
	}()
	wg.Wait()

	if _, hi, _ := level.Range(); hi != 200 {
		t.Errorf("final max = %v, want 200", hi)
	}
}

func TestParameter_InvalidValues(t *testing.T) {
	_, values := buildTree(t)
	mode, _ := values.ParameterByName("mode")
	refresh, _ := values.ParameterByName("refresh")

	if err := mode.Set("party"); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("enum Set error = %v, want ErrInvalidValue", err)
	}
	if mode.String() != "auto" {
		t.Errorf("enum value changed to %q", mode.String())
	}
	if err := refresh.Set(true); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("trigger Set error = %v, want ErrInvalidValue", err)
	}
}

func TestParameter_NotifiesOnlyOnChange(t *testing.T) {
	_, values := buildTree(t)
	power, _ := values.ParameterByName("power")

	calls := 0
	power.OnChange(func(*Parameter) { calls++ })

	_ = power.Set(true)
	_ = power.Set(true)
	_ = power.Set("true")
	_ = power.Set(false)

	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestParameter_TriggerNotifies(t *testing.T) {
	_, values := buildTree(t)
	refresh, _ := values.ParameterByName("refresh")

	calls := 0
	refresh.OnChange(func(*Parameter) { calls++ })
	refresh.Trigger()
	refresh.Trigger()

	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestParameter_RemovedContainerPanics(t *testing.T) {
	c := New("Gone")
	p := c.AddBoolParameter("Flag", "", false)
	c.MarkRemoved()

	mustPanic(t, "Set", func() { _ = p.Set(true) })
	mustPanic(t, "AddChild", func() { c.AddChild(New("Late")) })
}

func TestEnsureParameter_InfersKind(t *testing.T) {
	c := New("Values")
	p := c.EnsureParameter("level", 0.5)
	if p.Kind() != KindFloat {
		t.Errorf("Kind() = %q, want %q", p.Kind(), KindFloat)
	}
	if again := c.EnsureParameter("level", "x"); again != p {
		t.Error("EnsureParameter created a duplicate")
	}
	if s := c.EnsureParameter("name", "x"); s.Kind() != KindString {
		t.Errorf("Kind() = %q, want %q", s.Kind(), KindString)
	}
}

// ─── Structure Events ───────────────────────────────────────────────────────

func TestStructureEvents_Bubble(t *testing.T) {
	root, values := buildTree(t)

	var got []StructureEvent
	unsub := root.OnStructureChange(func(ev StructureEvent) { got = append(got, ev) })

	p := values.AddBoolParameter("Extra", "", true)
	values.RemoveParameter(p)
	child := New("Nested")
	values.AddChild(child)
	child.SetNiceName("Nested Renamed")

	unsub()
	values.AddChild(New("Ignored"))

	wantKinds := []EventKind{ParameterAdded, ParameterRemoved, ChildAdded, NameChanged}
	if len(got) != len(wantKinds) {
		t.Fatalf("got %d events, want %d", len(got), len(wantKinds))
	}
	for i, k := range wantKinds {
		if got[i].Kind != k {
			t.Errorf("event %d kind = %s, want %s", i, got[i].Kind, k)
		}
	}
	if got[0].Source != values {
		t.Error("ParameterAdded source should be the values container")
	}
}

// ─── Snapshot ───────────────────────────────────────────────────────────────

func TestExportImport_RoundTrip(t *testing.T) {
	src, srcValues := buildTree(t)
	set := func(name string, v any) {
		p, _ := srcValues.ParameterByName(name)
		if err := p.Set(v); err != nil {
			t.Fatalf("Set(%s): %v", name, err)
		}
	}
	set("level", 0.75)
	set("scene", 12)
	set("power", true)
	set("mode", "manual")
	set("label", "Stage left")
	set("isValid", true)

	data, err := json.Marshal(src.Export())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	dst, dstValues := buildTree(t)
	if err := dst.Import(&snap); err != nil {
		t.Fatalf("Import: %v", err)
	}

	get := func(name string) *Parameter {
		p, _ := dstValues.ParameterByName(name)
		return p
	}
	if get("level").Float() != 0.75 {
		t.Errorf("level = %v", get("level").Value())
	}
	if get("scene").Int() != 12 {
		t.Errorf("scene = %v", get("scene").Value())
	}
	if !get("power").Bool() {
		t.Error("power should be true")
	}
	if get("mode").String() != "manual" {
		t.Errorf("mode = %q", get("mode").String())
	}
	if get("label").String() != "Stage left" {
		t.Errorf("label = %q", get("label").String())
	}
	if get("isValid").Bool() {
		t.Error("transient isValid should not be restored")
	}
}

func TestExport_SkipsOptedOutChildren(t *testing.T) {
	root := New("Root")
	kept, skipped := New("Kept"), New("Skipped")
	skipped.SetSaveInParent(false)
	root.AddChild(kept)
	root.AddChild(skipped)

	s := root.Export()
	if s.Child("kept") == nil {
		t.Error("kept child missing from snapshot")
	}
	if s.Child("skipped") != nil {
		t.Error("skipped child should not be exported")
	}
}

func TestImport_CollectsErrors(t *testing.T) {
	root, values := buildTree(t)
	snap := &Snapshot{
		Containers: map[string]*Snapshot{
			"modules": {Containers: map[string]*Snapshot{
				"lights": {Containers: map[string]*Snapshot{
					"values": {Parameters: map[string]any{
						"mode":    "party",
						"power":   true,
						"unknown": 1,
					}},
				}},
			}},
		},
	}

	err := root.Import(snap)
	if !errors.Is(err, ErrInvalidValue) {
		t.Errorf("Import error = %v, want ErrInvalidValue", err)
	}
	power, _ := values.ParameterByName("power")
	if !power.Bool() {
		t.Error("valid fields should still be applied")
	}
}
