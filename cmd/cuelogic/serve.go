package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/cuelogic-core/internal/api"
	"github.com/nerrad567/cuelogic-core/internal/auth"
	"github.com/nerrad567/cuelogic-core/internal/engine"
	"github.com/nerrad567/cuelogic-core/internal/infrastructure/config"
	"github.com/nerrad567/cuelogic-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/cuelogic-core/internal/infrastructure/logging"
	"github.com/nerrad567/cuelogic-core/internal/infrastructure/metrics"
	"github.com/nerrad567/cuelogic-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/cuelogic-core/internal/module"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the engine and the API until interrupted",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, path, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logging.New(cfg.Logging, version)
	log.Info("starting Cue Logic Core",
		"version", version,
		"commit", commit,
		"build_date", date,
		"config", path,
	)
	return run(cmd.Context(), cfg, log)
}

// run wires every component from cfg and blocks until ctx is cancelled.
// Deferred cleanup runs in reverse order of startup.
func run(ctx context.Context, cfg *config.Config, log *logging.Logger) error {
	st, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing project store")
		if closeErr := st.close(); closeErr != nil {
			log.Error("error closing project store", "error", closeErr)
		}
	}()
	log.Info("project store ready", "backend", cfg.Store.Backend)

	var prom *metrics.Metrics
	if cfg.Metrics.Enabled {
		prom = metrics.New()
	}

	// A nil *mqtt.Client must not reach the engine as a non-nil interface.
	var mqttClient module.MQTTClient
	if cfg.MQTT.Enabled {
		mqttLog := log.Component("mqtt")
		client, connErr := mqtt.Connect(ctx, cfg.MQTT,
			mqtt.WithLogger(mqttLog),
			mqtt.WithIdentity(cfg.Engine.Project, cfg.Site.ID),
			mqtt.OnConnect(func() { prom.SetMQTTConnected(true) }),
			mqtt.OnConnectionLost(func(error) { prom.SetMQTTConnected(false) }),
		)
		if connErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", connErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := client.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		prom.SetMQTTConnected(true)
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
		mqttClient = client
	} else {
		log.Info("MQTT disabled")
	}

	influxClient, err := connectInflux(ctx, cfg, log)
	if err != nil {
		return err
	}
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
	}

	hub := api.NewHub(cfg.WebSocket, log)
	eng, err := engine.New(engine.Deps{
		Config:     cfg.Engine,
		Store:      st.store,
		Executions: st.store,
		MQTT:       mqttClient,
		QoS:        byte(cfg.MQTT.QoS), // #nosec G115 -- validated 0..2
		Influx:     influxClient,
		Metrics:    prom,
		Hub:        hub,
		Logger:     log.Component("engine"),
	})
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("starting engine: %w", err)
	}
	defer func() {
		log.Info("stopping engine")
		if stopErr := eng.Stop(context.WithoutCancel(ctx)); stopErr != nil {
			log.Error("error stopping engine", "error", stopErr)
		}
	}()

	var authSvc *auth.Service
	if cfg.API.Auth.Enabled {
		if authSvc, err = newAuthService(ctx, cfg, st, log.Component("auth")); err != nil {
			return err
		}
		log.Info("API authentication enabled", "token_ttl", cfg.TokenTTL())
	}

	srv, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Metrics:    cfg.Metrics,
		Logger:     log.Component("api"),
		Engine:     eng,
		Prometheus: prom,
		Hub:        hub,
		Audit:      st.audit,
		Auth:       authSvc,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal",
		"project", cfg.Engine.Project,
		"modules", eng.Project().Modules().Len(),
		"actions", eng.Project().Actions().Len(),
	)
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")
	return nil
}

// connectInflux returns nil when InfluxDB is disabled.
func connectInflux(ctx context.Context, cfg *config.Config, log *logging.Logger) (*influxdb.Client, error) {
	client, err := influxdb.Connect(ctx, cfg.InfluxDB,
		influxdb.WithLogger(log.Component("influxdb")),
		influxdb.WithTags(map[string]string{"site": cfg.Site.ID, "project": cfg.Engine.Project}),
	)
	if errors.Is(err, influxdb.ErrDisabled) {
		log.Info("InfluxDB disabled")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "org", cfg.InfluxDB.Org, "bucket", cfg.InfluxDB.Bucket)
	return client, nil
}
