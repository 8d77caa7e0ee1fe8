package module

import (
	"context"
	"fmt"

	"github.com/nerrad567/cuelogic-core/internal/consequence"
	"github.com/nerrad567/cuelogic-core/internal/container"
)

// Virtual module commands and their argument keys.
const (
	CommandSet    = "set"
	CommandToggle = "toggle"

	ArgName  = "name"
	ArgValue = "value"
)

// VirtualDriver keeps values in memory. Its commands write the module's
// own values, so consequences can drive conditions of other actions.
type VirtualDriver struct{}

// NewVirtualDriver creates a virtual driver.
func NewVirtualDriver(Deps) Driver { return VirtualDriver{} }

// Start implements Driver.
func (VirtualDriver) Start(context.Context, *Module) error { return nil }

// Stop implements Driver.
func (VirtualDriver) Stop() error { return nil }

// Commands implements Driver.
func (VirtualDriver) Commands() []consequence.Definition {
	return []consequence.Definition{
		{
			Command:     CommandSet,
			Description: "set a value, creating it on first use",
			Args: []consequence.ArgSpec{
				{Name: "Name", Kind: container.KindString},
				{Name: "Value", Kind: container.KindString},
			},
		},
		{
			Command:     CommandToggle,
			Description: "invert a bool value",
			Args: []consequence.ArgSpec{
				{Name: "Name", Kind: container.KindString},
			},
		},
	}
}

// Execute implements Driver.
func (VirtualDriver) Execute(_ context.Context, m *Module, cmd consequence.Command) error {
	name, _ := cmd.Args[ArgName].(string)
	if name == "" {
		return fmt.Errorf("%w: %s needs a name", ErrInvalidArgument, cmd.Name)
	}

	switch cmd.Name {
	case CommandSet:
		v := cmd.Args[ArgValue]
		if s, ok := v.(string); ok {
			v = parseScalar(s)
		}
		_, err := m.SetValue(name, v)
		return err
	case CommandToggle:
		p, ok := m.Value(name)
		if !ok {
			_, err := m.SetValue(name, true)
			return err
		}
		if p.Kind() != container.KindBool {
			return fmt.Errorf("%w: %s is %s, not bool", ErrInvalidArgument, p.Address(), p.Kind())
		}
		return p.Set(!p.Bool())
	}
	return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Name)
}
