package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/cuelogic-core/internal/action"
	"github.com/nerrad567/cuelogic-core/internal/infrastructure/config"
	"github.com/nerrad567/cuelogic-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/cuelogic-core/internal/infrastructure/metrics"
	"github.com/nerrad567/cuelogic-core/internal/module"
	"github.com/nerrad567/cuelogic-core/internal/project"
)

// Logger defines the logging interface used by the engine.
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

// WSHub is the interface for broadcasting WebSocket events.
type WSHub interface {
	// Broadcast sends an event to all clients subscribed to the given channel.
	Broadcast(channel string, payload any)
}

// Deps holds the collaborators of the engine.
type Deps struct {
	Config config.EngineConfig

	// Store is required.
	Store project.Store

	// Executions keeps the execution history. Optional.
	Executions project.ExecutionLog

	// MQTT feeds MQTT modules and receives action events. Optional; pass
	// a nil interface, not a nil *mqtt.Client.
	MQTT module.MQTTClient
	QoS  byte

	Influx  *influxdb.Client
	Metrics *metrics.Metrics
	Hub     WSHub

	// Clock defaults to action.RealClock.
	Clock  action.Clock
	Logger Logger
}

// Engine runs one project.
//
// Thread Safety: all methods are safe for concurrent use.
type Engine struct {
	store      project.Store
	executions project.ExecutionLog
	mqtt       module.MQTTClient
	qos        byte
	influx     *influxdb.Client
	metrics    *metrics.Metrics
	hub        WSHub
	logger     Logger

	project  *project.Project
	autosave time.Duration

	watchMu sync.Mutex
	watches map[*module.Module]func()

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates an engine around an empty project. Call Start to load the
// stored project.
func New(deps Deps) (*Engine, error) {
	if deps.Store == nil {
		return nil, ErrStoreRequired
	}
	if deps.Logger == nil {
		deps.Logger = noopLogger{}
	}

	e := &Engine{
		store:      deps.Store,
		executions: deps.Executions,
		mqtt:       deps.MQTT,
		qos:        deps.QoS,
		influx:     deps.Influx,
		metrics:    deps.Metrics,
		hub:        deps.Hub,
		logger:     deps.Logger,
		autosave:   time.Duration(deps.Config.AutosaveInterval) * time.Second,
		watches:    make(map[*module.Module]func()),
	}

	factory := module.NewFactory(module.Deps{
		MQTT:   deps.MQTT,
		QoS:    deps.QoS,
		Logger: deps.Logger,
	})
	e.project = project.New(project.Options{
		Name:                  deps.Config.Project,
		Factory:               factory,
		Clock:                 deps.Clock,
		Recorder:              e,
		DefaultValidationTime: time.Duration(deps.Config.DefaultValidationTime) * time.Millisecond,
		Logger:                deps.Logger,
	})
	e.wire()
	return e, nil
}

// Project returns the running project.
func (e *Engine) Project() *project.Project { return e.project }

// Running reports whether Start has been called without Stop.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Start loads the stored project, starts the modules, evaluates the
// actions and starts the autosave loop.
// A missing project is not an error; the engine then starts empty.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return ErrAlreadyRunning
	}

	switch err := e.project.Load(ctx, e.store); {
	case errors.Is(err, project.ErrProjectNotFound):
		e.logger.Info("no stored project, starting empty", "project", e.project.Name())
	case err != nil:
		e.logger.Warn("project loaded with errors", "project", e.project.Name(), "error", err)
	}

	if err := e.project.Modules().Start(ctx); err != nil {
		e.logger.Warn("some modules failed to start", "error", err)
	}
	e.project.Actions().CheckAll()

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.cancel = cancel
	e.done = make(chan struct{})
	go e.autosaveLoop(loopCtx, e.done)

	e.running = true
	e.logger.Info("engine started",
		"project", e.project.Name(),
		"modules", e.project.Modules().Len(),
		"actions", e.project.Actions().Len(),
	)
	return nil
}

// Stop saves the project, stops the modules and clears the project.
// The save error, if any, is returned after everything is stopped.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return nil
	}
	e.running = false

	e.cancel()
	<-e.done

	saveErr := e.project.Save(ctx, e.store)
	if saveErr != nil {
		e.logger.Error("saving project on stop failed", "error", saveErr)
	}
	e.project.Modules().Stop()
	e.project.Clear()
	e.influx.Flush()

	e.logger.Info("engine stopped", "project", e.project.Name())
	return saveErr
}

// Save writes the project to the store.
func (e *Engine) Save(ctx context.Context) error {
	return e.project.Save(ctx, e.store)
}

// Executions returns the execution history of actionAddr (all actions
// when empty), newest first.
func (e *Engine) Executions(ctx context.Context, actionAddr string, limit int) ([]project.ExecutionRecord, error) {
	if e.executions == nil {
		return nil, ErrNoExecutionLog
	}
	recs, err := e.executions.Executions(ctx, e.project.Name(), actionAddr, limit)
	if err != nil {
		return nil, fmt.Errorf("reading executions: %w", err)
	}
	return recs, nil
}

// autosaveLoop saves the project every autosave period until ctx ends.
func (e *Engine) autosaveLoop(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	if e.autosave <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(e.autosave)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.Save(ctx); err != nil {
				e.logger.Warn("autosave failed", "error", err)
			}
		}
	}
}
