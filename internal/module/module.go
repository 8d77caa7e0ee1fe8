package module

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/cuelogic-core/internal/consequence"
	"github.com/nerrad567/cuelogic-core/internal/container"
	"github.com/nerrad567/cuelogic-core/internal/item"
)

// Logger defines the logging interface used by modules and drivers.
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

// Driver connects a module to its external system.
type Driver interface {
	// Start begins feeding m's values. It is called once the module is
	// attached, so m's address is final.
	Start(ctx context.Context, m *Module) error

	// Stop releases everything Start acquired. It must be safe to call
	// without a prior Start.
	Stop() error

	// Execute sends cmd. Model commands carry ArgModel in cmd.Args.
	Execute(ctx context.Context, m *Module, cmd consequence.Command) error

	// Commands lists the built-in commands. Module is filled in by the caller.
	Commands() []consequence.Definition
}

// Module is one external system: live values plus commands.
//
// Thread Safety: all methods are safe for concurrent use.
type Module struct {
	*item.Base

	typeName string
	driver   Driver
	logger   Logger

	enabled  *container.Parameter
	values   *container.Container
	commands *item.Manager[*CommandModel]

	mu      sync.Mutex
	running bool
}

// New creates a module of typeName driven by driver. Most callers go
// through Factory.Create.
func New(typeName string, driver Driver, logger Logger) *Module {
	if logger == nil {
		logger = noopLogger{}
	}
	m := &Module{
		Base:     item.NewBase(typeName),
		typeName: typeName,
		driver:   driver,
		logger:   logger,
	}
	m.enabled = m.AddBoolParameter("Enabled", "disabled modules ignore values and reject commands", true)

	m.values = container.New("Values")
	m.values.SetPersister(valuePersister{m.values})
	m.AddChild(m.values)

	m.commands = item.NewManager[*CommandModel]("Commands", func(*container.Snapshot) (*CommandModel, error) {
		return NewCommandModel(), nil
	})
	m.commands.SetLogger(logger)
	m.commands.OnItemAdded(func(cm *CommandModel) { cm.syncCommand() })
	m.AddChild(m.commands.Container)
	return m
}

// TypeName implements item.Typed.
func (m *Module) TypeName() string { return m.typeName }

// Driver returns the module's driver.
func (m *Module) Driver() Driver { return m.driver }

// Enabled reports whether the module is enabled.
func (m *Module) Enabled() bool { return m.enabled.Bool() }

// SetEnabled enables or disables the module.
func (m *Module) SetEnabled(v bool) {
	_ = m.enabled.Set(v) //nolint:errcheck // bool always coerces
}

// Values returns the container of live values.
func (m *Module) Values() *container.Container { return m.values }

// Commands returns the manager of user command models.
func (m *Module) Commands() *item.Manager[*CommandModel] { return m.commands }

// Value returns the value parameter named name.
func (m *Module) Value(name string) (*container.Parameter, bool) {
	return m.values.ParameterByName(container.ToShortName(name))
}

// SetValue writes v to the value named name, creating the parameter on
// first use with a kind inferred from v.
func (m *Module) SetValue(name string, v any) (*container.Parameter, error) {
	key := container.ToShortName(name)
	if key == "" {
		return nil, fmt.Errorf("%w: empty value name", ErrInvalidArgument)
	}
	p := m.values.EnsureParameter(key, v)
	if err := p.Set(v); err != nil {
		return p, fmt.Errorf("%s: %w", p.Address(), err)
	}
	return p, nil
}

// Definitions returns the built-in and model commands of the module.
func (m *Module) Definitions() []consequence.Definition {
	name := m.ShortName()
	var defs []consequence.Definition
	if m.driver != nil {
		for _, d := range m.driver.Commands() {
			d.Module = name
			defs = append(defs, d)
		}
	}
	for _, cm := range m.commands.Items() {
		defs = append(defs, cm.Definition(name))
	}
	return defs
}

// Definition returns the definition of command.
func (m *Module) Definition(command string) (consequence.Definition, bool) {
	for _, d := range m.Definitions() {
		if d.Command == command {
			return d, true
		}
	}
	return consequence.Definition{}, false
}

// Execute sends cmd through the driver.
func (m *Module) Execute(ctx context.Context, cmd consequence.Command) error {
	if !m.Enabled() {
		return fmt.Errorf("%w: %s", ErrModuleDisabled, m.ShortName())
	}
	if m.driver == nil {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Name)
	}
	return m.driver.Execute(ctx, m, cmd)
}

// Start starts the driver once.
func (m *Module) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running || m.driver == nil {
		return nil
	}
	if err := m.driver.Start(ctx, m); err != nil {
		return fmt.Errorf("starting module %s: %w", m.ShortName(), err)
	}
	m.running = true
	return nil
}

// Stop stops the driver if it runs.
func (m *Module) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.running = false
	if err := m.driver.Stop(); err != nil {
		m.logger.Warn("module stop failed", "module", m.ShortName(), "error", err)
	}
}

// Running reports whether the driver is started.
func (m *Module) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Clear implements item.Clearer.
func (m *Module) Clear() {
	m.Stop()
	m.commands.Clear()
}

// valuePersister recreates value parameters before their values are applied.
type valuePersister struct {
	values *container.Container
}

func (valuePersister) SaveState(*container.Snapshot) {}

func (v valuePersister) LoadState(s *container.Snapshot) error {
	for name, value := range s.Parameters {
		v.values.EnsureParameter(name, value)
	}
	return nil
}
