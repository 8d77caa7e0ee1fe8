package module

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/cuelogic-core/internal/consequence"
	"github.com/nerrad567/cuelogic-core/internal/container"
	"github.com/nerrad567/cuelogic-core/internal/process"
)

// TypeLauncher starts and stops external programs.
const TypeLauncher = "Launcher"

// Launcher commands, argument keys and values.
const (
	CommandLaunch = "launch"
	CommandKill   = "kill"

	ArgProgram   = "program"
	ArgArguments = "arguments"
	ArgKeepAlive = "keepAlive"

	ValueRunning   = "running"
	ValuePID       = "pid"
	ValueRestarts  = "restarts"
	ValueLastError = "lastError"
)

const launcherRestartDelay = time.Second

// LauncherDriver runs one program at a time through a process supervisor.
// Launching again replaces the running program.
type LauncherDriver struct {
	logger Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	sup    *process.Supervisor
}

// NewLauncherDriver creates a launcher driver.
func NewLauncherDriver(deps Deps) Driver {
	return &LauncherDriver{logger: deps.Logger}
}

// Start implements Driver. Values restored from a project are stale, so
// they are reset.
func (d *LauncherDriver) Start(ctx context.Context, m *Module) error {
	d.mu.Lock()
	d.ctx, d.cancel = context.WithCancel(context.WithoutCancel(ctx))
	d.mu.Unlock()

	for name, v := range map[string]any{ValueRunning: false, ValuePID: 0, ValueRestarts: 0, ValueLastError: ""} {
		if _, err := m.SetValue(name, v); err != nil {
			return err
		}
	}
	return nil
}

// Stop implements Driver.
func (d *LauncherDriver) Stop() error {
	d.mu.Lock()
	sup, cancel := d.sup, d.cancel
	d.sup, d.cancel, d.ctx = nil, nil, nil
	d.mu.Unlock()

	var err error
	if sup != nil {
		err = sup.Stop()
	}
	if cancel != nil {
		cancel()
	}
	return err
}

// Commands implements Driver.
func (*LauncherDriver) Commands() []consequence.Definition {
	return []consequence.Definition{
		{
			Command:     CommandLaunch,
			Description: "start a program, replacing the running one",
			Args: []consequence.ArgSpec{
				{Name: "Program", Kind: container.KindString},
				{Name: "Arguments", Kind: container.KindString},
				{Name: "Keep Alive", Kind: container.KindBool, Default: false},
			},
		},
		{
			Command:     CommandKill,
			Description: "stop the running program",
		},
	}
}

// Execute implements Driver.
func (d *LauncherDriver) Execute(_ context.Context, m *Module, cmd consequence.Command) error {
	switch cmd.Name {
	case CommandLaunch:
		return d.launch(m, cmd.Args)
	case CommandKill:
		d.mu.Lock()
		sup := d.sup
		d.sup = nil
		d.mu.Unlock()
		if sup == nil {
			return nil
		}
		return sup.Stop()
	}
	return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Name)
}

func (d *LauncherDriver) launch(m *Module, args map[string]any) error {
	program, _ := args[ArgProgram].(string)
	program = strings.TrimSpace(program)
	if program == "" {
		return fmt.Errorf("%w: launch needs a program", ErrInvalidArgument)
	}
	argLine, _ := args[ArgArguments].(string)
	keepAlive, err := boolArg(args[ArgKeepAlive])
	if err != nil {
		return fmt.Errorf("%w: keep alive: %v", ErrInvalidArgument, err)
	}

	d.mu.Lock()
	ctx, prev := d.ctx, d.sup
	d.sup = nil
	d.mu.Unlock()
	if ctx == nil {
		return fmt.Errorf("%w: %s is not started", ErrModuleDisabled, m.ShortName())
	}
	if prev != nil {
		if err := prev.Stop(); err != nil {
			d.logger.Warn("stopping previous program failed", "module", m.ShortName(), "error", err)
		}
	}

	var sup *process.Supervisor
	sup = process.NewSupervisor(process.Config{
		Name:             m.ShortName(),
		Binary:           program,
		Args:             strings.Fields(argLine),
		RestartOnFailure: keepAlive,
		RestartDelay:     launcherRestartDelay,
		OnStart: func(pid int) {
			setLiveValues(m, map[string]any{ValueRunning: true, ValuePID: pid})
		},
		OnExit: func(err error) {
			msg := ""
			if err != nil {
				msg = err.Error()
			}
			setLiveValues(m, map[string]any{
				ValueRunning:   false,
				ValueRestarts:  sup.Restarts(),
				ValueLastError: msg,
			})
		},
	})
	sup.SetLogger(d.logger)

	if err := sup.Start(ctx); err != nil {
		setLiveValues(m, map[string]any{ValueRunning: false, ValueLastError: err.Error()})
		return fmt.Errorf("launching %s: %w", program, err)
	}
	d.mu.Lock()
	d.sup = sup
	d.mu.Unlock()
	d.logger.Info("program launched", "module", m.ShortName(), "program", program, "keep_alive", keepAlive)
	return nil
}

// Stats returns the supervisor state of the current program.
func (d *LauncherDriver) Stats() (process.Stats, bool) {
	d.mu.Lock()
	sup := d.sup
	d.mu.Unlock()
	if sup == nil {
		return process.Stats{}, false
	}
	return sup.Stats(), true
}

// setLiveValues writes values from supervisor callbacks, which may run
// after the module was removed.
func setLiveValues(m *Module, values map[string]any) {
	if m.IsRemoved() {
		return
	}
	for name, v := range values {
		if _, err := m.SetValue(name, v); err != nil {
			m.logger.Warn("launcher value update failed", "module", m.ShortName(), "value", name, "error", err)
		}
	}
}

func boolArg(v any) (bool, error) {
	switch b := v.(type) {
	case nil:
		return false, nil
	case bool:
		return b, nil
	case string:
		if b == "" {
			return false, nil
		}
		return strconv.ParseBool(b)
	case float64:
		return b != 0, nil
	case int:
		return b != 0, nil
	}
	return false, fmt.Errorf("unsupported type %T", v)
}
