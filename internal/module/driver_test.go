package module

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nerrad567/cuelogic-core/internal/consequence"
	"github.com/nerrad567/cuelogic-core/internal/container"
)

// ─── Values ─────────────────────────────────────────────────────────────────

func TestDecodeValue(t *testing.T) {
	tests := []struct {
		payload string
		want    any
	}{
		{"true", true},
		{"ON", true},
		{"off", false},
		{"0.5", 0.5},
		{" 42 ", float64(42)},
		{`"intro"`, "intro"},
		{`{"value": 3}`, float64(3)},
		{"1", float64(1)},
		{"hello world", "hello world"},
		{"[1,2]", "[1,2]"},
	}
	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			if got := DecodeValue([]byte(tt.payload)); got != tt.want {
				t.Errorf("DecodeValue(%q) = %#v, want %#v", tt.payload, got, tt.want)
			}
		})
	}
}

// ─── MQTT Driver ────────────────────────────────────────────────────────────

func startedMQTTModule(t *testing.T) (*Manager, *Module, *mockMQTT) {
	t.Helper()
	m, client := newTestManager(t)
	desk, err := m.AddModule(TypeMQTT, "Desk")
	if err != nil {
		t.Fatalf("AddModule: %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(m.Stop)
	return m, desk, client
}

func TestMQTTDriver_StateUpdatesValues(t *testing.T) {
	_, desk, client := startedMQTTModule(t)

	if err := client.deliver("cuelogic/state/desk/fader1", "0.25"); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if err := client.deliver("cuelogic/state/desk/blackout", "on"); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	fader, ok := desk.Value("fader1")
	if !ok || fader.Kind() != container.KindFloat || fader.Float() != 0.25 {
		t.Errorf("fader1 = %v", fader)
	}
	blackout, ok := desk.Value("blackout")
	if !ok || !blackout.Bool() {
		t.Errorf("blackout = %v", blackout)
	}

	desk.SetEnabled(false)
	_ = client.deliver("cuelogic/state/desk/fader1", "0.9")
	if fader.Float() != 0.25 {
		t.Errorf("disabled module accepted a value: %v", fader.Float())
	}
}

func TestMQTTDriver_ExecuteDefaultTopic(t *testing.T) {
	m, desk, client := startedMQTTModule(t)
	model, _ := desk.Commands().AddItem(nil)
	model.SetNiceName("Go Cue")

	err := m.Dispatch(context.Background(), consequence.Command{
		ID: "c1", Module: "desk", Name: "Go Cue", Source: "/actions/a",
		Args: map[string]any{ArgModel: model.ShortName()},
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	got := client.last()
	if got.topic != "cuelogic/command/desk/goCue" || got.retain {
		t.Errorf("published to %q (retain %v)", got.topic, got.retain)
	}
	var msg commandMessage
	if err := json.Unmarshal(got.payload, &msg); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if msg.ID != "c1" || msg.Command != "Go Cue" || msg.Source != "/actions/a" || msg.Args != nil {
		t.Errorf("message = %+v", msg)
	}
}

func TestMQTTDriver_ExecuteModelValues(t *testing.T) {
	m, desk, client := startedMQTTModule(t)
	model, _ := desk.Commands().AddItem(nil)
	model.SetNiceName("Fire")
	_ = model.TopicParameter().Set("/eos/cue/fire")
	list, _ := model.AddArgument(container.KindInt)
	cue, _ := model.AddArgument(container.KindFloat)
	_ = list.Value().Set(2)
	_ = cue.Value().Set(0.5)
	_ = cue.Editable().Set(false)

	def, ok := m.LookupDefinition("desk", "Fire")
	if !ok {
		t.Fatal("no definition for Fire")
	}
	if len(def.Args) != 1 || def.Args[0].Name != "#1" || def.Fixed["2"] != 0.5 {
		t.Errorf("definition = %+v", def)
	}

	c := consequence.New(m, m)
	_ = c.SetCommand(def)
	arg, ok := c.Arguments().ParameterByName("1")
	if !ok {
		t.Fatal("consequence has no #1 argument")
	}
	_ = arg.Set(7)
	if err := c.Trigger(context.Background()); err != nil {
		t.Fatalf("Trigger: %v", err)
	}

	got := client.last()
	if got.topic != "/eos/cue/fire" {
		t.Errorf("topic = %q, want /eos/cue/fire", got.topic)
	}
	var msg commandMessage
	_ = json.Unmarshal(got.payload, &msg)
	if len(msg.Values) != 2 || msg.Values[0] != float64(7) || msg.Values[1] != 0.5 {
		t.Errorf("values = %v, want [7 0.5]", msg.Values)
	}
}

func TestMQTTDriver_EditableTopicOverride(t *testing.T) {
	m, desk, client := startedMQTTModule(t)
	model, _ := desk.Commands().AddItem(nil)
	_ = model.TopicParameter().Set("lights/default")
	_ = model.EditableParameter().Set(true)

	def, _ := m.LookupDefinition("desk", model.CommandName())
	if len(def.Args) != 1 || def.Args[0].Name != "Topic" || def.Args[0].Default != "lights/default" {
		t.Fatalf("definition = %+v", def)
	}

	err := m.Dispatch(context.Background(), consequence.Command{
		Module: "desk", Name: model.CommandName(),
		Args: map[string]any{ArgModel: model.ShortName(), ArgTopic: "lights/stage"},
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if got := client.last().topic; got != "lights/stage" {
		t.Errorf("topic = %q, want lights/stage", got)
	}
}

func TestMQTTDriver_Publish(t *testing.T) {
	m, _, client := startedMQTTModule(t)
	ctx := context.Background()

	err := m.Dispatch(ctx, consequence.Command{Module: "desk", Name: CommandPublish,
		Args: map[string]any{ArgTopic: "raw/topic", ArgPayload: "GO", ArgRetain: true}})
	if err != nil {
		t.Fatalf("Dispatch(publish): %v", err)
	}
	got := client.last()
	if got.topic != "raw/topic" || string(got.payload) != "GO" || !got.retain {
		t.Errorf("published = %+v", got)
	}

	tests := []struct {
		name string
		cmd  consequence.Command
		want error
	}{
		{"publish without topic", consequence.Command{Module: "desk", Name: CommandPublish}, ErrInvalidArgument},
		{"unknown command", consequence.Command{Module: "desk", Name: "explode"}, ErrUnknownCommand},
		{"unknown model", consequence.Command{Module: "desk", Name: "x",
			Args: map[string]any{ArgModel: "ghost"}}, ErrUnknownCommand},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := m.Dispatch(ctx, tt.cmd); !errors.Is(err, tt.want) {
				t.Errorf("Dispatch() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestMQTTDriver_NoTransport(t *testing.T) {
	m := NewManager(NewFactory(Deps{}), nil)
	desk, _ := m.AddModule(TypeMQTT, "Desk")
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start without broker: %v", err)
	}
	if !desk.Running() {
		t.Error("module should run without a broker")
	}
	err := m.Dispatch(context.Background(), consequence.Command{Module: "desk", Name: CommandPublish,
		Args: map[string]any{ArgTopic: "t"}})
	if !errors.Is(err, ErrNoTransport) {
		t.Errorf("Dispatch() error = %v, want ErrNoTransport", err)
	}
}

func TestMQTTDriver_PublishError(t *testing.T) {
	m, _, client := startedMQTTModule(t)
	client.publishErr = errors.New("broker gone")

	err := m.Dispatch(context.Background(), consequence.Command{Module: "desk", Name: CommandPublish,
		Args: map[string]any{ArgTopic: "t"}})
	if err == nil {
		t.Error("expected publish error")
	}
}

// ─── Command Models ─────────────────────────────────────────────────────────

func TestCommandModel_Renumber(t *testing.T) {
	model := NewCommandModel()
	a, _ := model.AddArgument(container.KindString)
	b, _ := model.AddArgument(container.KindBool)
	c, _ := model.AddArgument(container.KindFloat)
	c.SetNiceName("Level")

	if b.NiceName() != "#2" {
		t.Fatalf("second argument = %q, want #2", b.NiceName())
	}
	model.Arguments().RemoveItem(a)

	if b.NiceName() != "#1" {
		t.Errorf("after removal = %q, want #1", b.NiceName())
	}
	if c.NiceName() != "Level" {
		t.Errorf("named argument renamed to %q", c.NiceName())
	}
	if _, err := model.AddArgument(container.KindEnum); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("AddArgument(enum) error = %v, want ErrInvalidArgument", err)
	}
}

func TestCommandModel_DefinitionFollowsRename(t *testing.T) {
	m, _ := newTestManager(t)
	desk, _ := m.AddModule(TypeMQTT, "Desk")
	first, _ := desk.Commands().AddItem(nil)
	second, _ := desk.Commands().AddItem(nil)

	if first.CommandName() == second.CommandName() {
		t.Fatalf("models share command name %q", first.CommandName())
	}
	first.SetNiceName("Blackout")
	if _, ok := m.LookupDefinition("desk", "Blackout"); !ok {
		t.Error("renamed model not found under new name")
	}
	if _, ok := m.LookupDefinition("desk", "New Model"); ok {
		t.Error("old name still resolves")
	}

	desk.Commands().RemoveItem(first)
	if _, ok := m.LookupDefinition("desk", "Blackout"); ok {
		t.Error("removed model still resolves")
	}
}
