package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"net"
	"strconv"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/cuelogic-core/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	tokenTimeout   = 5 * time.Second
	keepAlive      = 30 * time.Second
	quiesceMillis  = 500

	maxQoS = 2
)

// Presence states published on the system status topic.
const (
	PresenceOnline  = "online"
	PresenceOffline = "offline"
)

// Presence is the retained body of the system status topic. Consoles and
// show peers watch it to know whether the engine is running.
type Presence struct {
	State    string `json:"state"`
	ClientID string `json:"client_id"`
	Project  string `json:"project,omitempty"`
	Site     string `json:"site,omitempty"`
	Reason   string `json:"reason,omitempty"`
	At       string `json:"at"`
}

// Option configures a Client.
type Option func(*Client)

// WithLogger routes connection and handler reports to l.
func WithLogger(l Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithIdentity names the project and site in presence messages.
func WithIdentity(project, site string) Option {
	return func(c *Client) {
		c.project = project
		c.site = site
	}
}

// OnConnect registers fn to run after every successful (re)connect.
func OnConnect(fn func()) Option {
	return func(c *Client) { c.onConnect = fn }
}

// OnConnectionLost registers fn to run when the broker link drops.
func OnConnectionLost(fn func(error)) Option {
	return func(c *Client) { c.onLost = fn }
}

func brokerURL(b config.MQTTBrokerConfig) string {
	scheme := "tcp"
	if b.TLS {
		scheme = "ssl"
	}
	return scheme + "://" + net.JoinHostPort(b.Host, strconv.Itoa(b.Port))
}

// pahoOptions translates the mqtt config section. Sessions are clean:
// subscriptions are replayed by the client itself on reconnect.
func (c *Client) pahoOptions() *pahomqtt.ClientOptions {
	cfg := c.cfg
	opts := pahomqtt.NewClientOptions().
		AddBroker(brokerURL(cfg.Broker)).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second).
		SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second).
		SetConnectTimeout(connectTimeout).
		SetKeepAlive(keepAlive).
		SetOnConnectHandler(func(pahomqtt.Client) { c.connected() }).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.lost(err) })

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}
	// The broker announces us offline if the link dies without a Close.
	opts.SetWill(Topics{}.SystemStatus(), string(c.presence(PresenceOffline, "connection lost")), 1, true)
	return opts
}

func (c *Client) presence(state, reason string) []byte {
	data, _ := json.Marshal(Presence{ //nolint:errcheck // Strings only
		State:    state,
		ClientID: c.cfg.Broker.ClientID,
		Project:  c.project,
		Site:     c.site,
		Reason:   reason,
		At:       time.Now().UTC().Format(time.RFC3339),
	})
	return data
}
