package project

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/cuelogic-core/internal/action"
	"github.com/nerrad567/cuelogic-core/internal/container"
	"github.com/nerrad567/cuelogic-core/internal/module"
)

// Logger defines the logging interface used by the project.
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

// Options configure a new project.
type Options struct {
	// Name is the key the project is stored under. Defaults to "default".
	Name string

	// Factory creates modules. Defaults to a factory without MQTT client.
	Factory *module.Factory

	// Clock drives validation windows. Defaults to action.RealClock.
	Clock action.Clock

	// Recorder receives every action execution.
	Recorder action.Recorder

	// DefaultValidationTime is the validation time of new actions.
	DefaultValidationTime time.Duration

	Logger Logger
}

// Project is the root of the item tree.
type Project struct {
	*container.Container

	name    string
	modules *module.Manager
	actions *action.Manager
	logger  Logger
}

// New creates an empty project.
func New(opts Options) *Project {
	if opts.Name == "" {
		opts.Name = "default"
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.Factory == nil {
		opts.Factory = module.NewFactory(module.Deps{Logger: opts.Logger})
	}

	p := &Project{
		Container: container.New("Project"),
		name:      opts.Name,
		logger:    opts.Logger,
	}
	p.modules = module.NewManager(opts.Factory, opts.Logger)
	p.actions = action.NewManager(action.Deps{
		Resolver:              p.Container,
		Dispatcher:            p.modules,
		Definitions:           p.modules,
		Clock:                 opts.Clock,
		Logger:                opts.Logger,
		Recorder:              opts.Recorder,
		DefaultValidationTime: opts.DefaultValidationTime,
	})
	p.AddChild(p.modules.Container)
	p.AddChild(p.actions.Container)

	p.modules.OnStructureChange(func(container.StructureEvent) {
		p.actions.RebindAll()
	})
	return p
}

// Name returns the key the project is stored under.
func (p *Project) Name() string { return p.name }

// Modules returns the module manager.
func (p *Project) Modules() *module.Manager { return p.modules }

// Actions returns the action manager.
func (p *Project) Actions() *action.Manager { return p.actions }

// Snapshot exports the whole project.
func (p *Project) Snapshot() *container.Snapshot {
	return p.Export()
}

// Restore replaces the project content with s. Problems with single
// items or values are logged and returned together; everything else is
// still applied. Restored actions are not evaluated; call
// Actions().CheckAll once the modules are running.
func (p *Project) Restore(s *container.Snapshot) error {
	err := p.Import(s)
	if err != nil {
		p.logger.Warn("project restored with errors", "project", p.name, "error", err)
	}
	p.actions.RebindAll()
	p.logger.Info("project restored",
		"project", p.name,
		"modules", p.modules.Len(),
		"actions", p.actions.Len(),
	)
	return err
}

// Clear removes every action and module. Actions go first so that no
// consequence fires into a module being removed.
func (p *Project) Clear() {
	p.actions.Clear()
	p.modules.Clear()
}

// Save writes the project to store.
func (p *Project) Save(ctx context.Context, store Store) error {
	if err := store.Save(ctx, p.name, p.Snapshot()); err != nil {
		return fmt.Errorf("saving project %q: %w", p.name, err)
	}
	p.logger.Debug("project saved", "project", p.name)
	return nil
}

// Load reads the project from store. A missing project returns an error
// wrapping ErrProjectNotFound and leaves the project untouched.
func (p *Project) Load(ctx context.Context, store Store) error {
	s, err := store.Load(ctx, p.name)
	if err != nil {
		return fmt.Errorf("loading project %q: %w", p.name, err)
	}
	return p.Restore(s)
}
