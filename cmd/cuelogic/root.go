package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nerrad567/cuelogic-core/internal/infrastructure/config"
)

// defaultConfigPath is used when neither --config nor CUELOGIC_CONFIG is set.
const defaultConfigPath = "configs/config.yaml"

// configEnv names the environment variable holding the config path.
const configEnv = "CUELOGIC_CONFIG"

// newRootCmd builds the command tree. serve runs when no subcommand is given.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cuelogic",
		Short:         "Cue Logic Core show control engine",
		Long:          `Cue Logic Core evaluates actions against live module values and fires their consequences.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.PersistentFlags().String("config", "", "path to the YAML configuration (default $"+configEnv+" or "+defaultConfigPath+")")

	root.AddCommand(newServeCmd(), newExportCmd(), newCheckConfigCmd(), newUserCmd(), newDBCmd())
	return root
}

// configPath returns the --config flag, then CUELOGIC_CONFIG, then the default.
func configPath(cmd *cobra.Command) string {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path
	}
	if path := os.Getenv(configEnv); path != "" {
		return path
	}
	return defaultConfigPath
}

func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	path := configPath(cmd)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, fmt.Errorf("loading config: %w", err)
	}
	return cfg, path, nil
}
