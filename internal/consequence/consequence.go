package consequence

import (
	"context"
	"fmt"
	"maps"

	"github.com/google/uuid"

	"github.com/nerrad567/cuelogic-core/internal/container"
	"github.com/nerrad567/cuelogic-core/internal/item"
)

// Command is a single instruction for a module.
type Command struct {
	ID     string         `json:"id"`
	Module string         `json:"module"`
	Name   string         `json:"command"`
	Args   map[string]any `json:"args,omitempty"`
	Source string         `json:"source,omitempty"`
}

// Dispatcher delivers commands to modules.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd Command) error
}

// ArgSpec describes one argument of a command.
type ArgSpec struct {
	Name    string         `json:"name"`
	Kind    container.Kind `json:"kind"`
	Default any            `json:"default,omitempty"`
	Options []string       `json:"options,omitempty"`
}

// Definition describes a command a module accepts.
type Definition struct {
	Module      string    `json:"module"`
	Command     string    `json:"command"`
	Description string    `json:"description,omitempty"`
	Args        []ArgSpec `json:"args,omitempty"`

	// Fixed arguments are added to every dispatch and are not editable.
	Fixed map[string]any `json:"fixed,omitempty"`
}

// DefinitionLookup finds command definitions.
type DefinitionLookup interface {
	LookupDefinition(module, command string) (Definition, bool)
}

// Consequence sends one command when triggered.
type Consequence struct {
	*item.Base

	module    *container.Parameter
	command   *container.Parameter
	arguments *container.Container

	dispatcher  Dispatcher
	definitions DefinitionLookup
}

// New creates a consequence with no command.
func New(dispatcher Dispatcher, definitions DefinitionLookup) *Consequence {
	c := &Consequence{
		Base:        item.NewBase("Consequence"),
		dispatcher:  dispatcher,
		definitions: definitions,
	}
	c.module = c.AddStringParameter("Module", "target module short name", "")
	c.command = c.AddStringParameter("Command", "command name", "")
	c.arguments = container.New("Arguments")
	c.arguments.SetPersister(argumentPersister{c.arguments})
	c.AddChild(c.arguments)

	c.module.OnChange(func(*container.Parameter) { c.syncArguments() })
	c.command.OnChange(func(*container.Parameter) { c.syncArguments() })
	return c
}

// Module returns the target module parameter.
func (c *Consequence) Module() *container.Parameter { return c.module }

// Command returns the command name parameter.
func (c *Consequence) Command() *container.Parameter { return c.command }

// Arguments returns the container of bound argument values.
func (c *Consequence) Arguments() *container.Container { return c.arguments }

// SetCommand points the consequence at def and lays out its arguments.
func (c *Consequence) SetCommand(def Definition) error {
	if err := c.module.Set(def.Module); err != nil {
		return err
	}
	return c.command.Set(def.Command)
}

// Trigger dispatches the command. A panic in the dispatcher is returned as
// an error wrapping ErrPanic.
func (c *Consequence) Trigger(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	module, command := c.module.String(), c.command.String()
	if module == "" || command == "" {
		return ErrNoCommand
	}
	if c.dispatcher == nil {
		return ErrNoDispatcher
	}

	args := make(map[string]any)
	for _, p := range c.arguments.Parameters() {
		if p.Kind() != container.KindTrigger {
			args[p.ShortName()] = p.Value()
		}
	}
	if c.definitions != nil {
		if def, ok := c.definitions.LookupDefinition(module, command); ok {
			maps.Copy(args, def.Fixed)
		}
	}

	cmd := Command{
		ID:     uuid.NewString(),
		Module: module,
		Name:   command,
		Args:   args,
		Source: c.Address(),
	}
	if err := c.dispatcher.Dispatch(ctx, cmd); err != nil {
		return fmt.Errorf("%s/%s: %w", module, command, err)
	}
	return nil
}

// syncArguments makes the arguments container match the current
// definition. Without a definition the arguments are left alone so that
// values loaded before their module exists are kept.
func (c *Consequence) syncArguments() {
	if c.definitions == nil || c.IsRemoved() {
		return
	}
	def, ok := c.definitions.LookupDefinition(c.module.String(), c.command.String())
	if !ok {
		return
	}

	wanted := make(map[string]bool, len(def.Args))
	for _, spec := range def.Args {
		name := container.ToShortName(spec.Name)
		wanted[name] = true
		if p, ok := c.arguments.ParameterByName(name); ok && p.Kind() == spec.Kind {
			continue
		} else if ok {
			c.arguments.RemoveParameter(p)
		}
		c.arguments.AddParameter(newArgParameter(spec))
	}
	for _, p := range c.arguments.Parameters() {
		if !wanted[p.ShortName()] {
			c.arguments.RemoveParameter(p)
		}
	}
}

func newArgParameter(spec ArgSpec) *container.Parameter {
	p := container.NewParameter(spec.Kind, spec.Name, "", spec.Default)
	if spec.Kind == container.KindEnum && len(spec.Options) > 0 {
		p.SetOptions(spec.Options)
		if spec.Default == nil {
			_ = p.Set(spec.Options[0]) //nolint:errcheck // first option is valid
		}
	}
	return p
}

// argumentPersister recreates argument parameters from a snapshot when no
// definition is available yet.
type argumentPersister struct {
	args *container.Container
}

func (argumentPersister) SaveState(*container.Snapshot) {}

func (a argumentPersister) LoadState(s *container.Snapshot) error {
	for name, v := range s.Parameters {
		a.args.EnsureParameter(name, v)
	}
	return nil
}
