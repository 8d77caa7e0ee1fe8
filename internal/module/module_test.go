package module

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nerrad567/cuelogic-core/internal/consequence"
	"github.com/nerrad567/cuelogic-core/internal/container"
)

func newTestManager(t *testing.T) (*Manager, *mockMQTT) {
	t.Helper()
	client := newMockMQTT()
	m := NewManager(NewFactory(Deps{MQTT: client, QoS: 1}), nil)
	root := container.New("Project")
	root.AddChild(m.Container)
	return m, client
}

// ─── Factory ────────────────────────────────────────────────────────────────

func TestFactory_Types(t *testing.T) {
	f := NewFactory(Deps{})
	f.Register(Definition{MenuPath: "Video", Type: "Player", NewDriver: NewVirtualDriver})

	groups := f.Types()
	if len(groups) != 3 {
		t.Fatalf("groups = %+v, want 3", groups)
	}
	if groups[0].MenuPath != "Generic" || len(groups[0].Types) != 2 ||
		groups[0].Types[0] != TypeMQTT || groups[0].Types[1] != TypeVirtual {
		t.Errorf("Generic group = %+v", groups[0])
	}
	if groups[1].MenuPath != "System" || groups[1].Types[0] != TypeLauncher {
		t.Errorf("System group = %+v", groups[1])
	}
	if groups[2].MenuPath != "Video" || groups[2].Types[0] != "Player" {
		t.Errorf("Video group = %+v", groups[2])
	}

	if _, err := f.Create("Gamepad"); !errors.Is(err, ErrUnknownType) {
		t.Errorf("Create(Gamepad) error = %v, want ErrUnknownType", err)
	}
	mod, err := f.Create("Player")
	if err != nil || mod.TypeName() != "Player" {
		t.Errorf("Create(Player) = %v, %v", mod, err)
	}
}

// ─── Manager ────────────────────────────────────────────────────────────────

func TestManager_AddAndResolve(t *testing.T) {
	m, _ := newTestManager(t)

	desk, err := m.AddModule(TypeVirtual, "Desk")
	if err != nil {
		t.Fatalf("AddModule: %v", err)
	}
	if desk.ShortName() != "desk" {
		t.Errorf("ShortName() = %q, want desk", desk.ShortName())
	}
	if _, err := m.AddItem(nil); !errors.Is(err, ErrUnknownType) {
		t.Errorf("AddItem(nil) error = %v, want ErrUnknownType", err)
	}

	p, err := desk.SetValue("Fader 1", 0.5)
	if err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if p.Address() != "/modules/desk/values/fader1" {
		t.Errorf("Address() = %q", p.Address())
	}
	for _, addr := range []string{"desk/values/fader1", "/modules/desk/values/fader1"} {
		got, ok := m.ResolveParameter(addr)
		if !ok || got != p {
			t.Errorf("ResolveParameter(%q) = %v, %v", addr, got, ok)
		}
	}
	if _, ok := m.ResolveParameter("/modules/desk/values/missing"); ok {
		t.Error("missing value resolved")
	}
}

func TestManager_Dispatch(t *testing.T) {
	m, _ := newTestManager(t)
	flags, _ := m.AddModule(TypeVirtual, "Flags")
	ctx := context.Background()

	err := m.Dispatch(ctx, consequence.Command{Module: "flags", Name: CommandSet,
		Args: map[string]any{ArgName: "Armed", ArgValue: "true"}})
	if err != nil {
		t.Fatalf("Dispatch(set): %v", err)
	}
	armed, ok := flags.Value("armed")
	if !ok || armed.Kind() != container.KindBool || !armed.Bool() {
		t.Fatalf("armed = %v", armed)
	}

	if err := m.Dispatch(ctx, consequence.Command{Module: "flags", Name: CommandToggle,
		Args: map[string]any{ArgName: "armed"}}); err != nil {
		t.Fatalf("Dispatch(toggle): %v", err)
	}
	if armed.Bool() {
		t.Error("toggle did not invert armed")
	}

	tests := []struct {
		name string
		cmd  consequence.Command
		want error
	}{
		{"unknown module", consequence.Command{Module: "ghost", Name: CommandSet}, ErrModuleNotFound},
		{"missing name", consequence.Command{Module: "flags", Name: CommandSet}, ErrInvalidArgument},
		{"unknown command", consequence.Command{Module: "flags", Name: "explode",
			Args: map[string]any{ArgName: "x"}}, ErrUnknownCommand},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := m.Dispatch(ctx, tt.cmd); !errors.Is(err, tt.want) {
				t.Errorf("Dispatch() error = %v, want %v", err, tt.want)
			}
		})
	}

	flags.SetEnabled(false)
	err = m.Dispatch(ctx, consequence.Command{Module: "flags", Name: CommandSet,
		Args: map[string]any{ArgName: "armed", ArgValue: "true"}})
	if !errors.Is(err, ErrModuleDisabled) {
		t.Errorf("disabled Dispatch() error = %v, want ErrModuleDisabled", err)
	}
}

func TestManager_LookupDefinition(t *testing.T) {
	m, _ := newTestManager(t)
	m.AddModule(TypeVirtual, "Flags")

	def, ok := m.LookupDefinition("flags", CommandSet)
	if !ok || def.Module != "flags" || len(def.Args) != 2 {
		t.Errorf("LookupDefinition(flags, set) = %+v, %v", def, ok)
	}
	if _, ok := m.LookupDefinition("flags", "publish"); ok {
		t.Error("virtual module exposes publish")
	}
	if _, ok := m.LookupDefinition("ghost", CommandSet); ok {
		t.Error("unknown module has definitions")
	}
	if n := len(m.Definitions()); n != 2 {
		t.Errorf("Definitions() = %d, want 2", n)
	}
}

func TestManager_ConsequenceArgumentsFollowDefinition(t *testing.T) {
	m, _ := newTestManager(t)
	m.AddModule(TypeVirtual, "Flags")

	c := consequence.New(m, m)
	def, _ := m.LookupDefinition("flags", CommandSet)
	if err := c.SetCommand(def); err != nil {
		t.Fatalf("SetCommand: %v", err)
	}
	name, ok := c.Arguments().ParameterByName("name")
	if !ok {
		t.Fatal("consequence has no name argument")
	}
	_ = name.Set("go")
	value, _ := c.Arguments().ParameterByName("value")
	_ = value.Set("3")

	if err := c.Trigger(context.Background()); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	flags, _ := m.ModuleByName("flags")
	got, ok := flags.Value("go")
	if !ok || got.Float() != 3 {
		t.Errorf("flags/go = %v", got)
	}
}

func TestManager_StartStop(t *testing.T) {
	m, client := newTestManager(t)
	desk, _ := m.AddModule(TypeMQTT, "Desk")

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !desk.Running() || !client.subscribed("cuelogic/state/desk/+") {
		t.Fatal("module did not start")
	}

	// Modules added while running start at once.
	lights, _ := m.AddModule(TypeMQTT, "Lights")
	if !lights.Running() {
		t.Error("late module did not start")
	}

	m.Stop()
	if desk.Running() || client.subscribed("cuelogic/state/desk/+") {
		t.Error("module still running after Stop")
	}
}

func TestManager_RemoveStopsModule(t *testing.T) {
	m, client := newTestManager(t)
	desk, _ := m.AddModule(TypeMQTT, "Desk")
	_ = m.Start(context.Background())

	m.RemoveItem(desk)

	if client.subscribed("cuelogic/state/desk/+") {
		t.Error("removed module still subscribed")
	}
	if !desk.IsDestroyed() {
		t.Error("removed module not destroyed")
	}
}

// ─── Persistence ────────────────────────────────────────────────────────────

func TestManager_RoundTrip(t *testing.T) {
	src, _ := newTestManager(t)
	desk, _ := src.AddModule(TypeMQTT, "Desk")
	_, _ = desk.SetValue("fader1", 0.75)
	_, _ = desk.SetValue("scene", "intro")
	model, _ := desk.Commands().AddItem(nil)
	model.SetNiceName("Go Cue")
	_ = model.TopicParameter().Set("/eos/cue/fire")
	_, _ = model.AddArgument(container.KindInt)
	_, _ = src.AddModule(TypeVirtual, "Flags")

	data, err := json.Marshal(src.Export())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var snap container.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	dst, _ := newTestManager(t)
	if err := dst.Import(&snap); err != nil {
		t.Fatalf("Import: %v", err)
	}

	if dst.Len() != 2 {
		t.Fatalf("modules = %d, want 2", dst.Len())
	}
	got, err := dst.ModuleByName("desk")
	if err != nil {
		t.Fatalf("ModuleByName: %v", err)
	}
	if got.TypeName() != TypeMQTT {
		t.Errorf("TypeName() = %q", got.TypeName())
	}
	fader, ok := dst.ResolveParameter("desk/values/fader1")
	if !ok || fader.Float() != 0.75 {
		t.Errorf("fader1 = %v", fader)
	}
	if scene, ok := got.Value("scene"); !ok || scene.String() != "intro" {
		t.Errorf("scene = %v", scene)
	}
	def, ok := dst.LookupDefinition("desk", "Go Cue")
	if !ok {
		t.Fatal("model definition not restored")
	}
	// Short names are fixed once attached; the rename only changed the nice name.
	if def.Fixed[ArgModel] != "newModel" || len(def.Args) != 1 || def.Args[0].Kind != container.KindInt {
		t.Errorf("definition = %+v", def)
	}
}
