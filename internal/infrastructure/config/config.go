package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

const minAuthSecretLength = 32

// Config is the root configuration structure for Cue Logic Core.
// Values come from defaults, then the YAML file, then CUELOGIC_* environment
// variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Engine    EngineConfig    `yaml:"engine"`
	Store     StoreConfig     `yaml:"store"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SiteConfig identifies the installation.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// EngineConfig contains runtime settings of the action engine.
type EngineConfig struct {
	// Project is the name the project snapshot is stored under.
	Project string `yaml:"project"`

	// DefaultValidationTime is the validation window of new actions, in
	// milliseconds.
	DefaultValidationTime int `yaml:"default_validation_time"`

	// AutosaveInterval saves the project periodically, in seconds. 0 disables it.
	AutosaveInterval int `yaml:"autosave_interval"`
}

// StoreConfig selects where project snapshots live.
type StoreConfig struct {
	Backend string `yaml:"backend"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// RedisConfig contains Redis connection settings for the redis store.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection delays in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
	Console  ConsoleConfig    `yaml:"console"`
	Auth     AuthConfig       `yaml:"auth"`
}

// AuthConfig controls operator authentication. Accounts live in the
// SQLite database, so auth requires the sqlite store.
type AuthConfig struct {
	Enabled bool `yaml:"enabled"`

	// Secret signs access tokens (HS256), at least 32 bytes.
	Secret string `yaml:"secret"`

	// TokenTTL is the access token lifetime in minutes.
	TokenTTL int `yaml:"token_ttl"`

	// AdminUsername and AdminPassword seed the first admin account. An
	// empty password is generated and logged once.
	AdminUsername string `yaml:"admin_username"`
	AdminPassword string `yaml:"admin_password"`
}

// ConsoleConfig controls the operator console served under /console/.
type ConsoleConfig struct {
	Enabled bool `yaml:"enabled"`
	// Dir serves the console from disk instead of the embedded copy.
	Dir string `yaml:"dir"`
}

// APITimeoutConfig contains HTTP timeouts in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The loading order is:
//  1. Default values
//  2. YAML file values
//  3. Environment variables (CUELOGIC_SECTION_KEY)
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with every default applied.
func Default() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site-001",
			Name: "Cue Logic",
		},
		Engine: EngineConfig{
			Project:               "default",
			DefaultValidationTime: 0,
			AutosaveInterval:      0,
		},
		Store: StoreConfig{
			Backend: StoreSQLite,
		},
		Database: DatabaseConfig{
			Path:        "./data/cuelogic.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Redis: RedisConfig{
			Address: "localhost:6379",
			Prefix:  "cuelogic:project:",
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "cuelogic-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			Console: ConsoleConfig{
				Enabled: true,
			},
			Auth: AuthConfig{
				TokenTTL:      720,
				AdminUsername: "admin",
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			Bucket:        "cuelogic",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies CUELOGIC_* environment variables.
func applyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setString("CUELOGIC_ENGINE_PROJECT", &cfg.Engine.Project)
	setString("CUELOGIC_STORE_BACKEND", &cfg.Store.Backend)
	setString("CUELOGIC_DATABASE_PATH", &cfg.Database.Path)

	setString("CUELOGIC_REDIS_ADDRESS", &cfg.Redis.Address)
	setString("CUELOGIC_REDIS_PASSWORD", &cfg.Redis.Password)

	setString("CUELOGIC_MQTT_HOST", &cfg.MQTT.Broker.Host)
	setInt("CUELOGIC_MQTT_PORT", &cfg.MQTT.Broker.Port)
	setString("CUELOGIC_MQTT_USERNAME", &cfg.MQTT.Auth.Username)
	setString("CUELOGIC_MQTT_PASSWORD", &cfg.MQTT.Auth.Password)

	setString("CUELOGIC_API_HOST", &cfg.API.Host)
	setInt("CUELOGIC_API_PORT", &cfg.API.Port)
	setString("CUELOGIC_API_AUTH_SECRET", &cfg.API.Auth.Secret)
	setString("CUELOGIC_API_AUTH_ADMIN_PASSWORD", &cfg.API.Auth.AdminPassword)

	setString("CUELOGIC_INFLUXDB_URL", &cfg.InfluxDB.URL)
	setString("CUELOGIC_INFLUXDB_TOKEN", &cfg.InfluxDB.Token)

	setString("CUELOGIC_LOG_LEVEL", &cfg.Logging.Level)
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}
	if c.Engine.Project == "" {
		errs = append(errs, "engine.project is required")
	}
	if c.Engine.DefaultValidationTime < 0 {
		errs = append(errs, "engine.default_validation_time must not be negative")
	}
	if c.Engine.AutosaveInterval < 0 {
		errs = append(errs, "engine.autosave_interval must not be negative")
	}

	switch c.Store.Backend {
	case StoreSQLite:
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required for the sqlite store")
		}
	case StoreRedis:
		if c.Redis.Address == "" {
			errs = append(errs, "redis.address is required for the redis store")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.backend must be %q or %q", StoreSQLite, StoreRedis))
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.Auth.Enabled {
		if len(c.API.Auth.Secret) < minAuthSecretLength {
			errs = append(errs, "api.auth.secret must be at least 32 characters")
		}
		if c.Store.Backend != StoreSQLite {
			errs = append(errs, "api.auth requires the sqlite store")
		}
		if c.API.Auth.TokenTTL < 0 {
			errs = append(errs, "api.auth.token_ttl must not be negative")
		}
	}
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// TokenTTL returns the access token lifetime, 0 for the default.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.API.Auth.TokenTTL) * time.Minute
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// ValidationTime returns the default validation window of new actions.
func (c *Config) ValidationTime() time.Duration {
	return time.Duration(c.Engine.DefaultValidationTime) * time.Millisecond
}

// AutosaveEvery returns the autosave period, 0 when disabled.
func (c *Config) AutosaveEvery() time.Duration {
	return time.Duration(c.Engine.AutosaveInterval) * time.Second
}
