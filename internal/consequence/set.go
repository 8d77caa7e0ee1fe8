package consequence

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/cuelogic-core/internal/container"
	"github.com/nerrad567/cuelogic-core/internal/item"
)

// Logger defines the logging interface used by consequence sets.
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

// Failure records one consequence that did not execute.
type Failure struct {
	Consequence string `json:"consequence"`
	Error       string `json:"error"`
	err         error
}

// Err returns the underlying error.
func (f Failure) Err() error { return f.err }

// Result summarises one Trigger call.
type Result struct {
	Total    int           `json:"total"`
	Failed   int           `json:"failed"`
	Failures []Failure     `json:"failures,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Set runs its consequences in order.
type Set struct {
	*item.Manager[*Consequence]

	triggerAll *container.Parameter

	dispatcher  Dispatcher
	definitions DefinitionLookup

	mu     sync.Mutex
	logger Logger
}

// NewSet creates an empty set.
func NewSet(niceName string, dispatcher Dispatcher, definitions DefinitionLookup) *Set {
	s := &Set{
		dispatcher:  dispatcher,
		definitions: definitions,
		logger:      noopLogger{},
	}
	s.Manager = item.NewManager[*Consequence](niceName, func(*container.Snapshot) (*Consequence, error) {
		return New(s.dispatcher, s.definitions), nil
	})
	s.triggerAll = s.AddTrigger("Trigger All", "run every consequence now")
	s.triggerAll.OnChange(func(*container.Parameter) { s.Trigger(context.Background()) })
	return s
}

// SetLogger sets the logger for the set.
func (s *Set) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	s.mu.Lock()
	s.logger = logger
	s.mu.Unlock()
	s.Manager.SetLogger(logger)
}

// TriggerAll returns the trigger parameter that runs the set.
func (s *Set) TriggerAll() *container.Parameter { return s.triggerAll }

// AddConsequence creates a consequence bound to def.
func (s *Set) AddConsequence(def Definition) (*Consequence, error) {
	c, err := s.AddItem(nil)
	if err != nil {
		return nil, err
	}
	if err := c.SetCommand(def); err != nil {
		return c, err
	}
	return c, nil
}

// Trigger runs every consequence in insertion order. Failures are logged
// and recorded; they never stop the remaining consequences.
func (s *Set) Trigger(ctx context.Context) Result {
	start := time.Now()
	items := s.Items()

	s.mu.Lock()
	logger := s.logger
	s.mu.Unlock()

	res := Result{Total: len(items)}
	for _, c := range items {
		if err := c.Trigger(ctx); err != nil {
			res.Failed++
			res.Failures = append(res.Failures, Failure{
				Consequence: c.Address(),
				Error:       err.Error(),
				err:         err,
			})
			logger.Warn("consequence failed",
				"consequence", c.Address(),
				"error", err,
			)
		}
	}
	res.Duration = time.Since(start)

	logger.Debug("consequences triggered",
		"set", s.Address(),
		"total", res.Total,
		"failed", res.Failed,
		"duration", res.Duration,
	)
	return res
}
