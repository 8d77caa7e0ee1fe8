package module

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/nerrad567/cuelogic-core/internal/consequence"
	"github.com/nerrad567/cuelogic-core/internal/container"
	"github.com/nerrad567/cuelogic-core/internal/item"
)

// Manager owns the modules of a project and routes commands to them.
type Manager struct {
	*item.Manager[*Module]

	factory *Factory
	logger  Logger

	mu      sync.Mutex
	ctx     context.Context
	running bool
}

// NewManager creates an empty module manager creating modules with factory.
func NewManager(factory *Factory, logger Logger) *Manager {
	if logger == nil {
		logger = noopLogger{}
	}
	m := &Manager{factory: factory, logger: logger}
	m.Manager = item.NewManager[*Module]("Modules", func(init *container.Snapshot) (*Module, error) {
		if init == nil || init.Type == "" {
			return nil, fmt.Errorf("%w: no type given", ErrUnknownType)
		}
		return factory.Create(init.Type)
	})
	m.Manager.SetLogger(logger)
	m.OnItemAdded(m.startIfRunning)
	return m
}

// Factory returns the factory modules are created with.
func (m *Manager) Factory() *Factory { return m.factory }

// AddModule creates a module of typ named niceName.
func (m *Manager) AddModule(typ, niceName string) (*Module, error) {
	return m.AddItem(&container.Snapshot{Type: typ, NiceName: niceName})
}

// ModuleByName returns the module with the given short name.
func (m *Manager) ModuleByName(name string) (*Module, error) {
	mod, ok := m.ItemByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrModuleNotFound, name)
	}
	return mod, nil
}

// Start starts every module. Modules added later start on arrival until Stop.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	m.ctx = ctx
	m.running = true
	m.mu.Unlock()

	var errs []error
	for _, mod := range m.Items() {
		if err := mod.Start(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stop stops every module.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()

	for _, mod := range m.Items() {
		mod.Stop()
	}
}

func (m *Manager) startIfRunning(mod *Module) {
	m.mu.Lock()
	ctx, running := m.ctx, m.running
	m.mu.Unlock()
	if !running {
		return
	}
	if err := mod.Start(ctx); err != nil {
		m.logger.Error("module failed to start", "module", mod.ShortName(), "error", err)
	}
}

// Dispatch implements consequence.Dispatcher.
func (m *Manager) Dispatch(ctx context.Context, cmd consequence.Command) error {
	mod, err := m.ModuleByName(cmd.Module)
	if err != nil {
		return err
	}
	if err := mod.Execute(ctx, cmd); err != nil {
		return err
	}
	m.logger.Debug("command dispatched",
		"module", cmd.Module,
		"command", cmd.Name,
		"source", cmd.Source,
	)
	return nil
}

// LookupDefinition implements consequence.DefinitionLookup.
func (m *Manager) LookupDefinition(module, command string) (consequence.Definition, bool) {
	mod, ok := m.ItemByName(module)
	if !ok {
		return consequence.Definition{}, false
	}
	return mod.Definition(command)
}

// Definitions returns the commands of every module.
func (m *Manager) Definitions() []consequence.Definition {
	var defs []consequence.Definition
	for _, mod := range m.Items() {
		defs = append(defs, mod.Definitions()...)
	}
	return defs
}

// ResolveParameter implements condition.Resolver. Addresses may be
// relative to the manager ("desk/values/fader1") or absolute
// ("/modules/desk/values/fader1").
func (m *Manager) ResolveParameter(address string) (*container.Parameter, bool) {
	if prefix := m.Address() + "/"; prefix != "//" && strings.HasPrefix(address, prefix) {
		address = strings.TrimPrefix(address, prefix)
	}
	return m.Container.ResolveParameter(address)
}
