package module

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/nerrad567/cuelogic-core/internal/consequence"
	"github.com/nerrad567/cuelogic-core/internal/container"
	"github.com/nerrad567/cuelogic-core/internal/item"
)

// Keys a model command adds to its arguments.
const (
	// ArgModel carries the short name of the command model (fixed).
	ArgModel = "model"

	// ArgTopic overrides the model topic when the model is editable.
	ArgTopic = "topic"
)

// ArgumentKinds lists the kinds a model argument can have.
func ArgumentKinds() []container.Kind {
	return []container.Kind{container.KindString, container.KindFloat, container.KindInt, container.KindBool}
}

// Argument is one positional argument of a command model.
type Argument struct {
	*item.Base

	kind     container.Kind
	value    *container.Parameter
	editable *container.Parameter
}

// NewArgument creates an argument of the given kind named niceName.
func NewArgument(kind container.Kind, niceName string) (*Argument, error) {
	if !slices.Contains(ArgumentKinds(), kind) {
		return nil, fmt.Errorf("%w: argument kind %q", ErrInvalidArgument, kind)
	}

	a := &Argument{Base: item.NewBase(niceName), kind: kind}
	desc := fmt.Sprintf("value of %s, type %s", niceName, kind)
	switch kind {
	case container.KindFloat:
		a.value = a.AddFloatParameter("Value", desc, 0, 0, 1)
	case container.KindInt:
		a.value = a.AddIntParameter("Value", desc, 0, -1000, 1000)
	case container.KindBool:
		a.value = a.AddBoolParameter("Value", desc, false)
	default:
		a.value = a.AddStringParameter("Value", desc, "")
	}
	a.editable = a.AddBoolParameter("Editable",
		"unchecked arguments always send their value and are hidden from consequences", true)
	return a, nil
}

// TypeName implements item.Typed.
func (a *Argument) TypeName() string { return string(a.kind) }

// Kind returns the argument kind.
func (a *Argument) Kind() container.Kind { return a.kind }

// Value returns the default (or fixed) value parameter.
func (a *Argument) Value() *container.Parameter { return a.value }

// Editable returns the parameter deciding whether consequences may change the value.
func (a *Argument) Editable() *container.Parameter { return a.editable }

// key is the argument name used in command arguments.
func (a *Argument) key() string { return container.ToShortName(a.NiceName()) }

// CommandModel is a user-defined command: a topic plus ordered arguments.
//
// The model contributes one definition to its module. The definition's
// command name is the model's nice name and follows renames.
type CommandModel struct {
	*item.Base

	topic     *container.Parameter
	editable  *container.Parameter
	arguments *item.Manager[*Argument]

	mu      sync.RWMutex
	command string
}

// NewCommandModel creates a model with no arguments.
func NewCommandModel() *CommandModel {
	m := &CommandModel{Base: item.NewBase("New Model")}
	m.command = m.NiceName()
	m.topic = m.AddStringParameter("Topic", "topic the command is published to, empty for the module default", "")
	m.editable = m.AddBoolParameter("Editable", "if checked, each consequence can override the topic", false)

	m.arguments = item.NewManager[*Argument]("Arguments", m.newArgument)
	m.arguments.OnItemRemoved(func(*Argument) { m.renumber() })
	m.AddChild(m.arguments.Container)

	m.OnStructureChange(func(ev container.StructureEvent) {
		if ev.Kind == container.NameChanged && ev.Source == m.Container {
			m.syncCommand()
		}
	})
	return m
}

// syncCommand takes over the current nice name as command name. Attaching
// may rename the model without a NameChanged event, so the owner calls it
// after adding the model too.
func (m *CommandModel) syncCommand() {
	m.mu.Lock()
	m.command = m.NiceName()
	m.mu.Unlock()
}

func (m *CommandModel) newArgument(init *container.Snapshot) (*Argument, error) {
	kind := container.KindString
	if init != nil && init.Type != "" {
		kind = container.Kind(init.Type)
	}
	return NewArgument(kind, "#"+strconv.Itoa(m.arguments.Len()+1))
}

// renumber restores "#1", "#2"... on arguments that still carry a
// positional name.
func (m *CommandModel) renumber() {
	if m.IsRemoved() {
		return
	}
	for i, a := range m.arguments.Items() {
		if strings.HasPrefix(a.NiceName(), "#") {
			a.SetNiceName("#" + strconv.Itoa(i+1))
		}
	}
}

// Topic returns the configured topic (may be empty).
func (m *CommandModel) Topic() string { return m.topic.String() }

// TopicParameter returns the topic parameter.
func (m *CommandModel) TopicParameter() *container.Parameter { return m.topic }

// EditableParameter returns the parameter that makes the topic overridable.
func (m *CommandModel) EditableParameter() *container.Parameter { return m.editable }

// Arguments returns the argument manager.
func (m *CommandModel) Arguments() *item.Manager[*Argument] { return m.arguments }

// AddArgument appends an argument of the given kind.
func (m *CommandModel) AddArgument(kind container.Kind) (*Argument, error) {
	return m.arguments.AddItem(&container.Snapshot{Type: string(kind)})
}

// CommandName returns the command name the model is published under.
func (m *CommandModel) CommandName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.command
}

// Definition describes the command for module. Editable arguments become
// consequence arguments; the others are sent with their current value.
func (m *CommandModel) Definition(module string) consequence.Definition {
	def := consequence.Definition{
		Module:      module,
		Command:     m.CommandName(),
		Description: "user command " + m.ShortName(),
		Fixed:       map[string]any{ArgModel: m.ShortName()},
	}
	if m.editable.Bool() {
		def.Args = append(def.Args, consequence.ArgSpec{
			Name:    "Topic",
			Kind:    container.KindString,
			Default: m.Topic(),
		})
	}
	for _, a := range m.arguments.Items() {
		if !a.editable.Bool() {
			def.Fixed[a.key()] = a.value.Value()
			continue
		}
		def.Args = append(def.Args, consequence.ArgSpec{
			Name:    a.NiceName(),
			Kind:    a.kind,
			Default: a.value.Value(),
		})
	}
	return def
}

// Values returns the argument values of cmd in model order, falling back to
// each argument's own value.
func (m *CommandModel) Values(args map[string]any) []any {
	items := m.arguments.Items()
	out := make([]any, 0, len(items))
	for _, a := range items {
		if v, ok := args[a.key()]; ok {
			out = append(out, v)
			continue
		}
		out = append(out, a.value.Value())
	}
	return out
}
