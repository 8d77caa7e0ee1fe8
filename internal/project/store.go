package project

import (
	"context"
	"time"

	"github.com/nerrad567/cuelogic-core/internal/action"
	"github.com/nerrad567/cuelogic-core/internal/consequence"
	"github.com/nerrad567/cuelogic-core/internal/container"
)

// Store persists project snapshots by name.
type Store interface {
	// Save creates or replaces the snapshot stored under name.
	Save(ctx context.Context, name string, s *container.Snapshot) error

	// Load returns the snapshot stored under name, or an error wrapping
	// ErrProjectNotFound.
	Load(ctx context.Context, name string) (*container.Snapshot, error)

	// List returns the stored project names, sorted.
	List(ctx context.Context) ([]string, error)

	// Delete removes name. Deleting a missing project is not an error.
	Delete(ctx context.Context, name string) error

	Close() error
}

// ExecutionLog keeps the history of fired consequence sets.
type ExecutionLog interface {
	// AppendExecution stores rec.
	AppendExecution(ctx context.Context, rec ExecutionRecord) error

	// Executions returns the most recent records of project, newest first.
	// An empty actionAddr returns records of every action.
	Executions(ctx context.Context, project, actionAddr string, limit int) ([]ExecutionRecord, error)
}

// ExecutionRecord is the stored form of an action.Execution.
type ExecutionRecord struct {
	ID        string                `json:"id"`
	Project   string                `json:"project"`
	Action    string                `json:"action"`
	Valid     bool                  `json:"valid"`
	Trigger   string                `json:"trigger"`
	StartedAt time.Time             `json:"started_at"`
	Duration  time.Duration         `json:"duration"`
	Total     int                   `json:"consequences_total"`
	Failed    int                   `json:"consequences_failed"`
	Failures  []consequence.Failure `json:"failures,omitempty"`
}

// NewExecutionRecord converts exec for storage under project.
func NewExecutionRecord(project string, exec action.Execution) ExecutionRecord {
	return ExecutionRecord{
		ID:        exec.ID,
		Project:   project,
		Action:    exec.Action,
		Valid:     exec.Valid,
		Trigger:   exec.Trigger,
		StartedAt: exec.StartedAt.UTC(),
		Duration:  exec.Consequences.Duration,
		Total:     exec.Consequences.Total,
		Failed:    exec.Consequences.Failed,
		Failures:  exec.Consequences.Failures,
	}
}

// defaultExecutionLimit applies when Executions is called with limit <= 0.
const defaultExecutionLimit = 100
