package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"regexp"
	"slices"
	"strings"
	"time"
)

// migrationFile matches 20261019_090000_projects.up.sql: version, name and
// direction.
var migrationFile = regexp.MustCompile(`^(\d{8}_\d{6})_([a-z0-9_]+)\.(up|down)\.sql$`)

// Migration is one schema step read from a migration source.
type Migration struct {
	Version string
	Name    string
	Up      string
	Down    string
}

// MigrationState pairs a migration with its applied time. AppliedAt is zero
// while the migration is pending.
type MigrationState struct {
	Migration
	AppliedAt time.Time
}

// Applied reports whether the migration has run.
func (s MigrationState) Applied() bool { return !s.AppliedAt.IsZero() }

const createMigrationsTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`

// Migrate runs the pending migrations of src in version order, each in its
// own transaction. It stops at the first failure; earlier steps stay
// applied. A nil src is a no-op.
func (db *DB) Migrate(ctx context.Context, src fs.FS) error {
	states, err := db.MigrationStatus(ctx, src)
	if err != nil {
		return err
	}
	for _, st := range states {
		if st.Applied() {
			continue
		}
		m := st.Migration
		err := db.InTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.Up); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
				m.Version, time.Now().UTC().Format(time.RFC3339))
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %s_%s: %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// Rollback reverts the newest applied migration using its down file.
// Without applied migrations it does nothing.
func (db *DB) Rollback(ctx context.Context, src fs.FS) (*Migration, error) {
	states, err := db.MigrationStatus(ctx, src)
	if err != nil {
		return nil, err
	}
	var last *MigrationState
	for i := len(states) - 1; i >= 0; i-- {
		if states[i].Applied() {
			last = &states[i]
			break
		}
	}
	if last == nil {
		return nil, nil
	}
	m := last.Migration
	if m.Down == "" {
		return nil, fmt.Errorf("migration %s_%s cannot be rolled back: no down file", m.Version, m.Name)
	}

	err = db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, m.Down); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = ?", m.Version)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("rolling back %s_%s: %w", m.Version, m.Name, err)
	}
	return &m, nil
}

// MigrationStatus lists every migration known to src or to the database,
// in version order. A version recorded in the database but missing from src
// is returned with only Version and AppliedAt set.
func (db *DB) MigrationStatus(ctx context.Context, src fs.FS) ([]MigrationState, error) {
	if _, err := db.ExecContext(ctx, createMigrationsTable); err != nil {
		return nil, fmt.Errorf("creating schema_migrations: %w", err)
	}
	applied, err := db.appliedVersions(ctx)
	if err != nil {
		return nil, err
	}
	known, err := readMigrations(src)
	if err != nil {
		return nil, err
	}

	states := make([]MigrationState, 0, len(known))
	for _, m := range known {
		states = append(states, MigrationState{Migration: m, AppliedAt: applied[m.Version]})
		delete(applied, m.Version)
	}
	for version, at := range applied {
		states = append(states, MigrationState{Migration: Migration{Version: version}, AppliedAt: at})
	}
	slices.SortFunc(states, func(a, b MigrationState) int { return strings.Compare(a.Version, b.Version) })
	return states, nil
}

func (db *DB) appliedVersions(ctx context.Context) (map[string]time.Time, error) {
	rows, err := db.QueryContext(ctx, "SELECT version, applied_at FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("reading schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]time.Time)
	for rows.Next() {
		var version, at string
		if err := rows.Scan(&version, &at); err != nil {
			return nil, fmt.Errorf("scanning schema_migrations: %w", err)
		}
		t, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return nil, fmt.Errorf("migration %s: bad applied_at %q", version, at)
		}
		applied[version] = t
	}
	return applied, rows.Err()
}

// readMigrations loads the migration files at the root of src. Other files
// are ignored. An up file is required for every version.
func readMigrations(src fs.FS) ([]Migration, error) {
	if src == nil {
		return nil, nil
	}
	entries, err := fs.ReadDir(src, ".")
	if err != nil {
		return nil, fmt.Errorf("listing migrations: %w", err)
	}

	byVersion := make(map[string]*Migration)
	for _, e := range entries {
		match := migrationFile.FindStringSubmatch(e.Name())
		if e.IsDir() || match == nil {
			continue
		}
		version, name, direction := match[1], match[2], match[3]

		body, err := fs.ReadFile(src, e.Name())
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}
		m, ok := byVersion[version]
		if !ok {
			m = &Migration{Version: version, Name: name}
			byVersion[version] = m
		}
		if direction == "up" {
			m.Up = string(body)
		} else {
			m.Down = string(body)
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" {
			return nil, fmt.Errorf("migration %s_%s has no up file", m.Version, m.Name)
		}
		out = append(out, *m)
	}
	slices.SortFunc(out, func(a, b Migration) int { return strings.Compare(a.Version, b.Version) })
	return out, nil
}
