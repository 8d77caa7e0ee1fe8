package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/cuelogic-core/internal/project"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print the stored project as JSON or YAML",
		Long:  `Reads the configured project from the store and writes it to stdout without starting the engine.`,
		Args:  cobra.NoArgs,
		RunE:  runExport,
	}
	cmd.Flags().String("format", project.FormatJSON, "output format: json or yaml")
	cmd.Flags().String("project", "", "project name (default engine.project)")
	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")
	name, _ := cmd.Flags().GetString("project")
	if name == "" {
		name = cfg.Engine.Project
	}

	st, err := openStorage(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer st.close() //nolint:errcheck // Read-only use

	snap, err := st.store.Load(cmd.Context(), name)
	if err != nil {
		return fmt.Errorf("loading project %q: %w", name, err)
	}
	data, err := project.EncodeSnapshot(snap, format)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
