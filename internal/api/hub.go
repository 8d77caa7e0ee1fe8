package api

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/cuelogic-core/internal/infrastructure/config"
	"github.com/nerrad567/cuelogic-core/internal/infrastructure/logging"
	"github.com/nerrad567/cuelogic-core/internal/infrastructure/metrics"
)

// Hub fans engine events out to the connected consoles. It satisfies
// engine.WSHub.
//
// Every client numbers the events it is offered. An event dropped because
// the client's buffer is full still consumes a sequence number, so a console
// seeing a gap knows it must reload state over HTTP.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	metrics *metrics.Metrics

	mu      sync.RWMutex
	clients map[*wsClient]struct{}

	dropped atomic.Uint64
}

// NewHub creates a hub. Clients are attached by the /ws handler.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
}

// SetMetrics reports client counts and drops to m.
func (h *Hub) SetMetrics(m *metrics.Metrics) {
	h.mu.Lock()
	h.metrics = m
	h.mu.Unlock()
}

// Run blocks until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Broadcast offers payload to every client whose subscriptions match
// channel.
func (h *Hub) Broadcast(channel string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("encoding websocket event failed", "channel", channel, "error", err)
		return
	}

	delivered, dropped := 0, 0
	for _, c := range h.snapshot() {
		if !c.wants(channel) {
			continue
		}
		if c.deliver(channel, raw) {
			delivered++
		} else {
			dropped++
		}
	}
	if dropped > 0 {
		h.dropped.Add(uint64(dropped))
		h.metrics.AddWSDropped(dropped)
		h.logger.Warn("websocket event dropped for slow clients", "channel", channel, "clients", dropped)
	}
	if delivered > 0 {
		h.logger.Debug("websocket event sent", "channel", channel, "clients", delivered)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many events were dropped since start.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

func (h *Hub) add(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	m := h.metrics
	h.mu.Unlock()

	m.SetWSClients(n)
	h.logger.Debug("websocket client connected", "user", c.username(), "clients", n)
}

// remove detaches c and closes its send queue. Safe to call twice.
func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	m := h.metrics
	h.mu.Unlock()

	c.shutdown()
	m.SetWSClients(n)
	h.logger.Debug("websocket client disconnected", "user", c.username(), "clients", n)
}

func (h *Hub) snapshot() []*wsClient {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	return out
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*wsClient]struct{})
	m := h.metrics
	h.mu.Unlock()

	for c := range clients {
		c.shutdown()
		if c.conn != nil {
			c.conn.Close()
		}
	}
	m.SetWSClients(0)
}
