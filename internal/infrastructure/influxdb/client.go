package influxdb

import (
	"context"
	"fmt"
	"maps"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/cuelogic-core/internal/infrastructure/config"
)

const (
	pingTimeout          = 5 * time.Second
	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second
)

// Logger is the logging interface used by the client.
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

// Option configures Connect.
type Option func(*Client)

// WithLogger reports asynchronous write failures to l.
func WithLogger(l Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTags adds tags to every point, typically the site and project name.
// Empty values are skipped.
func WithTags(tags map[string]string) Option {
	return func(c *Client) {
		for k, v := range tags {
			if v != "" {
				c.tags[k] = v
			}
		}
	}
}

// Client writes show history to one InfluxDB v2 bucket.
//
// Writes are batched and never block the engine. A nil or closed client
// accepts writes and drops them.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	logger   Logger
	tags     map[string]string

	closed      atomic.Bool
	writeErrors atomic.Uint64
}

// Connect pings the server and opens a batched writer on cfg.Bucket.
func Connect(ctx context.Context, cfg config.InfluxDBConfig, opts ...Option) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	c := &Client{logger: noopLogger{}, tags: make(map[string]string)}
	for _, opt := range opts {
		opt(c)
	}

	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	// #nosec G115 -- both values are positive
	options := influxdb2.DefaultOptions().
		SetBatchSize(uint(batch)).
		SetFlushInterval(uint(flushInterval(cfg).Milliseconds()))
	for k, v := range c.tags {
		options.AddDefaultTag(k, v)
	}
	c.client = influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, options)

	if err := c.ping(ctx); err != nil {
		c.client.Close()
		return nil, err
	}

	c.writeAPI = c.client.WriteAPI(cfg.Org, cfg.Bucket)
	go c.drainErrors(c.writeAPI.Errors())
	return c, nil
}

func flushInterval(cfg config.InfluxDBConfig) time.Duration {
	if cfg.FlushInterval <= 0 {
		return defaultFlushInterval
	}
	return time.Duration(cfg.FlushInterval) * time.Second
}

func (c *Client) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	healthy, err := c.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	if !healthy {
		return fmt.Errorf("%w: not ready", ErrUnreachable)
	}
	return nil
}

// drainErrors logs failed batches until the write API shuts down.
func (c *Client) drainErrors(errs <-chan error) {
	for err := range errs {
		n := c.writeErrors.Add(1)
		c.logger.Error("influxdb write failed", "error", err, "failures", n)
	}
}

// Tags returns the tags added to every point.
func (c *Client) Tags() map[string]string {
	if c == nil {
		return nil
	}
	return maps.Clone(c.tags)
}

// WriteErrors returns how many batches failed since Connect.
func (c *Client) WriteErrors() uint64 {
	if c == nil {
		return 0
	}
	return c.writeErrors.Load()
}

// IsConnected reports whether writes are accepted.
func (c *Client) IsConnected() bool {
	return c != nil && c.writeAPI != nil && !c.closed.Load()
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrClosed
	}
	return c.ping(ctx)
}

// Flush writes buffered points now.
func (c *Client) Flush() {
	if c.IsConnected() {
		c.writeAPI.Flush()
	}
}

// Close flushes and releases the client. Later writes are dropped.
func (c *Client) Close() error {
	if c == nil || c.client == nil || !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.writeAPI.Flush()
	c.client.Close()
	c.logger.Debug("influxdb client closed", "write_errors", c.writeErrors.Load())
	return nil
}
