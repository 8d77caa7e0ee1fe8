package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/cuelogic-core/internal/infrastructure/config"
)

// Logger is the logging surface the client uses.
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

// MessageHandler receives one message on a paho goroutine. A returned error
// is logged and counted.
type MessageHandler func(topic string, payload []byte) error

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Client carries module values and action events between the engine and a
// broker. Subscriptions are replayed after every reconnect and the engine's
// presence is kept on the retained system status topic.
//
// All methods are safe for concurrent use.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig
	logger Logger

	project string
	site    string

	onConnect func()
	onLost    func(error)

	up            atomic.Bool
	handlerErrors atomic.Uint64

	subMu         sync.RWMutex
	subscriptions map[string]subscription
}

func newClient(cfg config.MQTTConfig, opts ...Option) *Client {
	c := &Client{
		cfg:           cfg,
		logger:        noopLogger{},
		subscriptions: make(map[string]subscription),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the broker described by cfg and waits for the first
// CONNACK, ctx or the connect timeout, whichever comes first.
func Connect(ctx context.Context, cfg config.MQTTConfig, opts ...Option) (*Client, error) {
	c := newClient(cfg, opts...)
	c.client = pahomqtt.NewClient(c.pahoOptions())

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	token := c.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		c.client.Disconnect(0)
		return nil, fmt.Errorf("%w to %s: %w", ErrConnect, brokerURL(cfg.Broker), ctx.Err())
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w to %s: %w", ErrConnect, brokerURL(cfg.Broker), err)
	}

	// The on-connect handler may still be queued.
	c.up.Store(true)
	return c, nil
}

func (c *Client) connected() {
	c.up.Store(true)

	c.subMu.RLock()
	for topic, sub := range c.subscriptions {
		c.client.Subscribe(topic, sub.qos, c.wrapHandler(sub.handler))
	}
	n := len(c.subscriptions)
	c.subMu.RUnlock()

	c.client.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true, c.presence(PresenceOnline, ""))
	c.logger.Info("mqtt connected", "broker", brokerURL(c.cfg.Broker), "subscriptions", n)

	if c.onConnect != nil {
		c.onConnect()
	}
}

func (c *Client) lost(err error) {
	c.up.Store(false)
	c.logger.Warn("mqtt connection lost", "broker", brokerURL(c.cfg.Broker), "error", err)
	if c.onLost != nil {
		c.onLost(err)
	}
}

// Close marks the engine offline and disconnects. A nil client is a no-op.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	if c.IsConnected() {
		c.client.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true, c.presence(PresenceOffline, "shutdown")).
			WaitTimeout(tokenTimeout)
	}
	c.client.Disconnect(quiesceMillis)
	c.up.Store(false)
	return nil
}

// HealthCheck fails with ErrNotConnected while the link is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports whether the broker link is up.
func (c *Client) IsConnected() bool {
	if c == nil || c.client == nil {
		return false
	}
	return c.up.Load() && c.client.IsConnected()
}

// HandlerErrors returns how many messages a handler failed on.
func (c *Client) HandlerErrors() uint64 { return c.handlerErrors.Load() }

func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.handlerErrors.Add(1)
				c.logger.Error("mqtt handler panicked", "topic", msg.Topic(), "panic", r)
			}
		}()
		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.handlerErrors.Add(1)
			c.logger.Warn("mqtt message rejected", "topic", msg.Topic(), "error", err)
		}
	}
}
