package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/cuelogic-core/internal/infrastructure/config"
	"github.com/nerrad567/cuelogic-core/internal/infrastructure/database"
	"github.com/nerrad567/cuelogic-core/migrations"
)

var errNotSQLite = errors.New("schema commands require the sqlite store")

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Inspect and manage the SQLite schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "List schema migrations and whether they are applied",
			Args:  cobra.NoArgs,
			RunE:  runDBStatus,
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply pending schema migrations",
			Args:  cobra.NoArgs,
			RunE:  runDBMigrate,
		},
		&cobra.Command{
			Use:   "rollback",
			Short: "Revert the newest schema migration",
			Args:  cobra.NoArgs,
			RunE:  runDBRollback,
		},
	)
	return cmd
}

// openDatabase opens the configured SQLite file without migrating it.
func openDatabase(cmd *cobra.Command) (*database.DB, error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if cfg.Store.Backend != config.StoreSQLite {
		return nil, errNotSQLite
	}
	return database.Open(cmd.Context(), database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
}

func runDBStatus(cmd *cobra.Command, _ []string) error {
	db, err := openDatabase(cmd)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // Read-only use

	states, err := db.MigrationStatus(cmd.Context(), migrations.FS)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED")
	for _, s := range states {
		applied := "pending"
		if s.Applied() {
			applied = s.AppliedAt.Format(time.RFC3339)
		}
		name := s.Name
		if name == "" {
			name = "(unknown)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.Version, name, applied)
	}
	return w.Flush()
}

func runDBMigrate(cmd *cobra.Command, _ []string) error {
	db, err := openDatabase(cmd)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // Writes are committed

	if err := db.Migrate(cmd.Context(), migrations.FS); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema of %s is up to date\n", db.Path())
	return nil
}

func runDBRollback(cmd *cobra.Command, _ []string) error {
	db, err := openDatabase(cmd)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // Writes are committed

	m, err := db.Rollback(cmd.Context(), migrations.FS)
	if err != nil {
		return err
	}
	if m == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "no migration to roll back")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "rolled back %s_%s\n", m.Version, m.Name)
	return nil
}
