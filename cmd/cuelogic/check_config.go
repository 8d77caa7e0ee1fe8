package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Validate the configuration and print a summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "configuration %s is valid\n", path)
			fmt.Fprintf(out, "  project:  %s\n", cfg.Engine.Project)
			fmt.Fprintf(out, "  store:    %s\n", cfg.Store.Backend)
			fmt.Fprintf(out, "  api:      %s:%d\n", cfg.API.Host, cfg.API.Port)
			fmt.Fprintf(out, "  auth:     %v\n", cfg.API.Auth.Enabled)
			fmt.Fprintf(out, "  mqtt:     %v\n", cfg.MQTT.Enabled)
			fmt.Fprintf(out, "  influxdb: %v\n", cfg.InfluxDB.Enabled)
			fmt.Fprintf(out, "  metrics:  %v\n", cfg.Metrics.Enabled)
			return nil
		},
	}
}
