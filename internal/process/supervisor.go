package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Status is the state of a supervised process.
type Status string

// Process states.
const (
	StatusStopped Status = "stopped"
	StatusRunning Status = "running"
	StatusFailed  Status = "failed"
)

// Defaults applied by NewSupervisor.
const (
	defaultRestartDelay    = 2 * time.Second
	defaultGracefulTimeout = 5 * time.Second
)

// ErrAlreadyRunning is returned by Start while the process runs.
var ErrAlreadyRunning = errors.New("process: already running")

// Config describes the program to supervise.
type Config struct {
	// Name identifies the process in logs.
	Name string

	Binary string
	Args   []string

	// Env is appended to the parent environment.
	Env []string

	// WorkDir defaults to the parent's working directory.
	WorkDir string

	// RestartOnFailure restarts the program when it exits on its own.
	RestartOnFailure bool

	// RestartDelay is waited before each restart.
	RestartDelay time.Duration

	// MaxRestarts stops restarting after that many attempts. 0 is unlimited.
	MaxRestarts int

	// GracefulTimeout is how long Stop waits after SIGTERM before SIGKILL.
	GracefulTimeout time.Duration

	// OnStart is called with the pid after every (re)start.
	OnStart func(pid int)

	// OnExit is called after every exit. err is nil after Stop.
	OnExit func(err error)
}

// Logger defines the logging interface for the supervisor.
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

// Supervisor runs and restarts one program.
//
// Thread Safety: all methods are safe for concurrent use.
type Supervisor struct {
	cfg    Config
	logger Logger

	mu            sync.RWMutex
	cmd           *exec.Cmd
	status        Status
	restarts      int
	lastErr       error
	startedAt     time.Time
	stopRequested bool
	done          chan struct{}
}

// NewSupervisor creates a stopped supervisor for cfg.
func NewSupervisor(cfg Config) *Supervisor {
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = defaultRestartDelay
	}
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = defaultGracefulTimeout
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Binary
	}
	return &Supervisor{cfg: cfg, logger: noopLogger{}, status: StatusStopped}
}

// SetLogger sets the logger.
func (s *Supervisor) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	s.logger = logger
}

// Start launches the program and watches it until Stop or ctx ends.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.status == StatusRunning || s.watching() {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, s.cfg.Name)
	}
	s.stopRequested = false
	s.restarts = 0
	s.lastErr = nil
	s.mu.Unlock()

	cmd, err := s.spawn(ctx)
	if err != nil {
		s.mu.Lock()
		s.status = StatusFailed
		s.lastErr = err
		s.mu.Unlock()
		return err
	}

	done := make(chan struct{})
	s.mu.Lock()
	s.done = done
	s.mu.Unlock()
	go s.watch(ctx, cmd, done)
	return nil
}

// watching reports whether a watcher goroutine is still active, for
// example while it waits to restart. s.mu must be held.
func (s *Supervisor) watching() bool {
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// spawn starts one instance of the program.
func (s *Supervisor) spawn(ctx context.Context) (*exec.Cmd, error) {
	cmd := exec.CommandContext(ctx, s.cfg.Binary, s.cfg.Args...) //nolint:gosec // Program is chosen by the project author
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if s.cfg.Env != nil {
		cmd.Env = append(os.Environ(), s.cfg.Env...)
	}
	cmd.Dir = s.cfg.WorkDir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", s.cfg.Name, err)
	}

	s.mu.Lock()
	s.cmd = cmd
	s.status = StatusRunning
	s.startedAt = time.Now()
	s.mu.Unlock()

	go s.capture("stdout", stdout)
	go s.capture("stderr", stderr)

	pid := cmd.Process.Pid
	s.logger.Info("process started", "name", s.cfg.Name, "pid", pid)
	if s.cfg.OnStart != nil {
		s.cfg.OnStart(pid)
	}
	return cmd, nil
}

// capture logs the program output line by line.
func (s *Supervisor) capture(stream string, r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		s.logger.Debug("process output", "name", s.cfg.Name, "stream", stream, "line", sc.Text())
	}
}

// watch waits for each exit and restarts while allowed.
func (s *Supervisor) watch(ctx context.Context, cmd *exec.Cmd, done chan struct{}) {
	defer close(done)

	for {
		err := cmd.Wait()

		s.mu.Lock()
		stopped := s.stopRequested
		if stopped {
			s.status = StatusStopped
		} else {
			s.status = StatusFailed
			s.lastErr = exitError(err)
		}
		s.mu.Unlock()

		if stopped {
			s.logger.Info("process stopped", "name", s.cfg.Name)
			s.exited(nil)
			return
		}

		s.logger.Warn("process exited", "name", s.cfg.Name, "error", exitError(err))
		s.exited(exitError(err))

		next, ok := s.restart(ctx)
		if !ok {
			return
		}
		cmd = next
	}
}

// restart waits RestartDelay and spawns again. It reports false when the
// supervisor should give up.
func (s *Supervisor) restart(ctx context.Context) (*exec.Cmd, bool) {
	for {
		if !s.cfg.RestartOnFailure {
			return nil, false
		}

		s.mu.Lock()
		s.restarts++
		attempt := s.restarts
		s.mu.Unlock()
		if s.cfg.MaxRestarts > 0 && attempt > s.cfg.MaxRestarts {
			s.logger.Error("max restarts reached", "name", s.cfg.Name, "restarts", s.cfg.MaxRestarts)
			return nil, false
		}

		s.logger.Info("restarting process", "name", s.cfg.Name, "attempt", attempt, "delay", s.cfg.RestartDelay)
		select {
		case <-ctx.Done():
			return nil, false
		case <-time.After(s.cfg.RestartDelay):
		}

		s.mu.RLock()
		stopped := s.stopRequested
		s.mu.RUnlock()
		if stopped {
			return nil, false
		}

		cmd, err := s.spawn(ctx)
		if err == nil {
			return cmd, true
		}
		s.logger.Error("restart failed", "name", s.cfg.Name, "error", err)
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
	}
}

func (s *Supervisor) exited(err error) {
	if s.cfg.OnExit != nil {
		s.cfg.OnExit(err)
	}
}

// exitError turns a clean exit into an error too: a supervised program
// is not expected to end on its own.
func exitError(err error) error {
	if err == nil {
		return errors.New("exited with status 0")
	}
	return err
}

// Stop sends SIGTERM to the process group, then SIGKILL after
// GracefulTimeout, and waits for the watcher to finish. Stopping a
// stopped supervisor is a no-op.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	s.stopRequested = true
	cmd, done, status := s.cmd, s.done, s.status
	s.mu.Unlock()

	if done == nil {
		return nil
	}
	if status != StatusRunning || cmd == nil || cmd.Process == nil {
		<-done
		return nil
	}

	pid := cmd.Process.Pid
	s.logger.Info("stopping process", "name", s.cfg.Name, "pid", pid)
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		s.logger.Warn("SIGTERM failed", "name", s.cfg.Name, "error", err)
	}

	select {
	case <-done:
		return nil
	case <-time.After(s.cfg.GracefulTimeout):
		s.logger.Warn("graceful stop timed out, sending SIGKILL", "name", s.cfg.Name, "timeout", s.cfg.GracefulTimeout)
	}
	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("killing %s: %w", s.cfg.Name, err)
	}
	<-done
	return nil
}

// Status returns the current state.
func (s *Supervisor) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Running reports whether the program runs.
func (s *Supervisor) Running() bool { return s.Status() == StatusRunning }

// PID returns the pid of the current or last instance, 0 before Start.
func (s *Supervisor) PID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cmd == nil || s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

// Restarts returns the restart attempts since the last Start.
func (s *Supervisor) Restarts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.restarts
}

// LastError returns why the program last exited on its own.
func (s *Supervisor) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Stats is a snapshot of the supervisor state.
type Stats struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	PID       int           `json:"pid,omitempty"`
	Uptime    time.Duration `json:"uptime,omitempty"`
	Restarts  int           `json:"restarts"`
	LastError string        `json:"last_error,omitempty"`
}

// Stats returns the current state.
func (s *Supervisor) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{Name: s.cfg.Name, Status: s.status, Restarts: s.restarts}
	if s.cmd != nil && s.cmd.Process != nil {
		st.PID = s.cmd.Process.Pid
	}
	if s.status == StatusRunning {
		st.Uptime = time.Since(s.startedAt)
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}
