package project

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/cuelogic-core/internal/container"
	"github.com/nerrad567/cuelogic-core/internal/infrastructure/database"
	"github.com/nerrad567/cuelogic-core/migrations"
)

// timeLayout keeps stored timestamps sortable as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore keeps snapshots and the execution log in SQLite.
type SQLiteStore struct {
	db *database.DB
}

// NewSQLiteStore migrates db and returns a store on it. The store does not
// own db: Close is a no-op.
func NewSQLiteStore(ctx context.Context, db *database.DB) (*SQLiteStore, error) {
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		return nil, fmt.Errorf("migrating project store: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, name string, snap *container.Snapshot) error {
	if name == "" {
		return ErrInvalidName
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshalling snapshot: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO projects (name, snapshot, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			snapshot = excluded.snapshot,
			updated_at = excluded.updated_at
	`, name, string(data), now, now)
	if err != nil {
		return fmt.Errorf("saving project: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, name string) (*container.Snapshot, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT snapshot FROM projects WHERE name = ?", name,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrProjectNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("querying project: %w", err)
	}

	var snap container.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("unmarshalling snapshot: %w", err)
	}
	return &snap, nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM projects ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning project row: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating projects: %w", err)
	}
	return names, nil
}

// Delete implements Store. The execution log of the project is removed too.
func (s *SQLiteStore) Delete(ctx context.Context, name string) error {
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM action_executions WHERE project = ?", name); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM projects WHERE name = ?", name)
		return err
	})
	if err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error { return nil }

// AppendExecution implements ExecutionLog.
func (s *SQLiteStore) AppendExecution(ctx context.Context, rec ExecutionRecord) error {
	var failures sql.NullString
	if len(rec.Failures) > 0 {
		data, err := json.Marshal(rec.Failures)
		if err != nil {
			return fmt.Errorf("marshalling failures: %w", err)
		}
		failures = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO action_executions (
			id, project, action, valid, trigger_source, started_at,
			duration_ms, consequences_total, consequences_failed, failures
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID, rec.Project, rec.Action, rec.Valid, rec.Trigger,
		rec.StartedAt.UTC().Format(timeLayout),
		rec.Duration.Milliseconds(), rec.Total, rec.Failed, failures,
	)
	if err != nil {
		return fmt.Errorf("recording execution: %w", err)
	}
	return nil
}

// Executions implements ExecutionLog.
func (s *SQLiteStore) Executions(ctx context.Context, project, actionAddr string, limit int) ([]ExecutionRecord, error) {
	if limit <= 0 {
		limit = defaultExecutionLimit
	}

	query := `
		SELECT id, project, action, valid, trigger_source, started_at,
			duration_ms, consequences_total, consequences_failed, failures
		FROM action_executions
		WHERE project = ?`
	args := []any{project}
	if actionAddr != "" {
		query += " AND action = ?"
		args = append(args, actionAddr)
	}
	query += " ORDER BY started_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying executions: %w", err)
	}
	defer rows.Close()

	var records []ExecutionRecord
	for rows.Next() {
		rec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating executions: %w", err)
	}
	return records, nil
}

func scanExecution(rows *sql.Rows) (ExecutionRecord, error) {
	var (
		rec        ExecutionRecord
		startedAt  string
		durationMS int64
		failures   sql.NullString
	)
	if err := rows.Scan(
		&rec.ID, &rec.Project, &rec.Action, &rec.Valid, &rec.Trigger, &startedAt,
		&durationMS, &rec.Total, &rec.Failed, &failures,
	); err != nil {
		return rec, fmt.Errorf("scanning execution row: %w", err)
	}

	rec.StartedAt, _ = time.Parse(timeLayout, startedAt) //nolint:errcheck // Format is controlled
	rec.Duration = time.Duration(durationMS) * time.Millisecond
	if failures.Valid {
		if err := json.Unmarshal([]byte(failures.String), &rec.Failures); err != nil {
			return rec, fmt.Errorf("unmarshalling failures: %w", err)
		}
	}
	return rec, nil
}
