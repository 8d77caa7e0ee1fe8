package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/cuelogic-core/internal/action"
	"github.com/nerrad567/cuelogic-core/internal/audit"
	"github.com/nerrad567/cuelogic-core/internal/auth"
	"github.com/nerrad567/cuelogic-core/internal/engine"
)

// Message types. Clients send subscribe, unsubscribe, ping, trigger and
// role; the server sends welcome, event, response, pong and error.
const (
	WSTypeWelcome     = "welcome"
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeTrigger     = "trigger"
	WSTypeRole        = "role"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	// WSChannelAll subscribes to every channel. Other patterns use
	// path.Match syntax, e.g. "action.*".
	WSChannelAll = "*"

	wsSendBufferSize = 256
)

// WSMessage is one frame on the socket.
type WSMessage struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Channel string `json:"channel,omitempty"`
	Seq     uint64 `json:"seq,omitempty"`
	Time    string `json:"time,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload of subscribe and unsubscribe.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// WSTriggerPayload fires an action like POST /actions/{name}/trigger.
// Valid defaults to true.
type WSTriggerPayload struct {
	Action string `json:"action"`
	Valid  *bool  `json:"valid,omitempty"`
}

// WSRolePayload fires every action tagged with a role.
type WSRolePayload struct {
	Role string `json:"role"`
}

// WSWelcome is sent once after the upgrade.
type WSWelcome struct {
	Version  string    `json:"version"`
	Project  string    `json:"project"`
	Channels []string  `json:"channels"`
	User     string    `json:"user,omitempty"`
	Role     auth.Role `json:"role,omitempty"`
}

// wsRequest is an inbound frame with its payload left encoded.
type wsRequest struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

var errWSForbidden = errors.New("role does not allow this command")

// wsClient is one connected console.
type wsClient struct {
	hub    *Hub
	conn   *websocket.Conn
	claims *auth.Claims

	mu       sync.Mutex
	send     chan []byte
	closed   bool
	seq      uint64
	patterns map[string]struct{}
}

func (c *wsClient) username() string {
	if c.claims == nil {
		return ""
	}
	return c.claims.Username
}

// wants reports whether any subscription pattern matches channel.
func (c *wsClient) wants(channel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for p := range c.patterns {
		if p == WSChannelAll || p == channel {
			return true
		}
		if ok, _ := path.Match(p, channel); ok { //nolint:errcheck // patterns are validated on subscribe
			return true
		}
	}
	return false
}

// deliver numbers and queues an event. It reports false when the client
// is gone or its queue is full.
func (c *wsClient) deliver(channel string, payload json.RawMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.seq++
	data, err := json.Marshal(WSMessage{
		Type:    WSTypeEvent,
		Channel: channel,
		Seq:     c.seq,
		Time:    time.Now().UTC().Format(time.RFC3339Nano),
		Payload: payload,
	})
	if err != nil {
		return false
	}
	return c.enqueueLocked(data)
}

// reply queues a non-event frame.
func (c *wsClient) reply(msg WSMessage) {
	msg.Time = time.Now().UTC().Format(time.RFC3339Nano)
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.enqueueLocked(data)
	}
}

func (c *wsClient) replyError(id, message string) {
	c.reply(WSMessage{Type: WSTypeError, ID: id, Payload: map[string]string{"message": message}})
}

func (c *wsClient) enqueueLocked(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// shutdown closes the send queue once, ending writePump.
func (c *wsClient) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// keepalive returns the ping interval and the read deadline extension.
func (s *Server) keepalive() (ping, wait time.Duration) {
	ping = time.Duration(s.wsCfg.PingInterval) * time.Second
	wait = ping + time.Duration(s.wsCfg.PongTimeout)*time.Second
	return ping, wait
}

func (s *Server) wsUpgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.isAllowedOrigin(origin)
		},
	}
}

// handleWebSocket upgrades the connection. The client receives a welcome
// frame, then nothing until it subscribes.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.wsUpgrader().Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &wsClient{
		hub:      s.hub,
		conn:     conn,
		claims:   claimsFrom(r),
		send:     make(chan []byte, wsSendBufferSize),
		patterns: make(map[string]struct{}),
	}
	welcome := WSWelcome{
		Version:  s.version,
		Project:  s.engine.Project().Name(),
		Channels: engine.Channels(),
	}
	if c.claims != nil {
		welcome.User = c.claims.Username
		welcome.Role = c.claims.Role
	}

	s.hub.add(c)
	c.reply(WSMessage{Type: WSTypeWelcome, Payload: welcome})

	go s.writePump(c)
	go s.readPump(c)
}

func (s *Server) readPump(c *wsClient) {
	defer func() {
		s.hub.remove(c)
		c.conn.Close()
	}()

	_, wait := s.keepalive()
	c.conn.SetReadLimit(int64(s.wsCfg.MaxMessageSize))
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(wait)) }
	extend() //nolint:errcheck // Read below reports a broken connection
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read failed", "user", c.username(), "error", err)
			}
			return
		}
		// Browsers may not answer protocol pings; any frame counts.
		extend() //nolint:errcheck // Next read reports a broken connection
		s.handleWSMessage(c, data)
	}
}

func (s *Server) writePump(c *wsClient) {
	ping, wait := s.keepalive()
	ticker := time.NewTicker(ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wait)) //nolint:errcheck // Write below fails instead
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil) //nolint:errcheck // Closing anyway
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wait)) //nolint:errcheck // Write below fails instead
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleWSMessage dispatches one inbound frame.
func (s *Server) handleWSMessage(c *wsClient, data []byte) {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.replyError("", "invalid JSON message")
		return
	}

	switch req.Type {
	case WSTypePing:
		c.reply(WSMessage{Type: WSTypePong, ID: req.ID})
	case WSTypeSubscribe, WSTypeUnsubscribe:
		s.wsSubscribe(c, req)
	case WSTypeTrigger:
		s.wsTrigger(c, req)
	case WSTypeRole:
		s.wsRole(c, req)
	default:
		c.replyError(req.ID, "unknown message type: "+req.Type)
	}
}

func (s *Server) wsSubscribe(c *wsClient, req wsRequest) {
	var sub WSSubscribePayload
	if err := json.Unmarshal(req.Payload, &sub); err != nil {
		c.replyError(req.ID, "invalid "+req.Type+" payload")
		return
	}
	for _, p := range sub.Channels {
		if _, err := path.Match(p, ""); err != nil {
			c.replyError(req.ID, fmt.Sprintf("invalid channel pattern %q", p))
			return
		}
	}

	c.mu.Lock()
	for _, p := range sub.Channels {
		if req.Type == WSTypeSubscribe {
			c.patterns[p] = struct{}{}
		} else {
			delete(c.patterns, p)
		}
	}
	c.mu.Unlock()

	key := "subscribed"
	if req.Type == WSTypeUnsubscribe {
		key = "unsubscribed"
	}
	c.reply(WSMessage{Type: WSTypeResponse, ID: req.ID, Payload: map[string]any{key: sub.Channels}})
}

// authorize checks that the client may run actions. It always passes when
// auth is off.
func (s *Server) authorize(c *wsClient) error {
	if s.auth == nil {
		return nil
	}
	if c.claims == nil || !auth.HasPermission(c.claims.Role, auth.PermActionRun) {
		return errWSForbidden
	}
	if exp := c.claims.ExpiresAt; exp != nil && time.Now().After(exp.Time) {
		return auth.ErrTokenInvalid
	}
	return nil
}

func (s *Server) wsTrigger(c *wsClient, req wsRequest) {
	if err := s.authorize(c); err != nil {
		c.replyError(req.ID, err.Error())
		return
	}
	var p WSTriggerPayload
	if err := json.Unmarshal(req.Payload, &p); err != nil || p.Action == "" {
		c.replyError(req.ID, "trigger needs an action name")
		return
	}
	a, err := s.engine.Project().Actions().ActionByName(p.Action)
	if err != nil {
		c.replyError(req.ID, fmt.Sprintf("action %q not found", p.Action))
		return
	}
	valid := p.Valid == nil || *p.Valid

	a.Fire(valid)
	s.writeAudit(&audit.Entry{
		Action:     audit.ActionTrigger,
		EntityType: audit.EntityAction,
		EntityID:   a.Address(),
		Source:     audit.SourceWebSocket,
		Actor:      c.username(),
		Details:    map[string]any{"valid": valid},
	})
	c.reply(WSMessage{Type: WSTypeResponse, ID: req.ID, Payload: map[string]any{
		"action": a.Address(),
		"valid":  valid,
	}})
}

func (s *Server) wsRole(c *wsClient, req wsRequest) {
	if err := s.authorize(c); err != nil {
		c.replyError(req.ID, err.Error())
		return
	}
	var p WSRolePayload
	if err := json.Unmarshal(req.Payload, &p); err != nil {
		c.replyError(req.ID, "invalid role payload")
		return
	}
	role, err := action.ParseRole(p.Role)
	if err != nil {
		c.replyError(req.ID, err.Error())
		return
	}

	n := s.engine.Project().Actions().TriggerRole(role)
	s.writeAudit(&audit.Entry{
		Action:     audit.ActionTrigger,
		EntityType: audit.EntityRole,
		EntityID:   string(role),
		Source:     audit.SourceWebSocket,
		Actor:      c.username(),
		Details:    map[string]any{"triggered": n},
	})
	c.reply(WSMessage{Type: WSTypeResponse, ID: req.ID, Payload: map[string]any{
		"role":      role,
		"triggered": n,
	}})
}
