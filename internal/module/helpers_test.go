package module

import (
	"strings"
	"sync"

	mqttinfra "github.com/nerrad567/cuelogic-core/internal/infrastructure/mqtt"
)

// ─── Mock MQTT Client ───────────────────────────────────────────────────────

type published struct {
	topic   string
	payload []byte
	retain  bool
}

type mockMQTT struct {
	mu         sync.Mutex
	published  []published
	handlers   map[string]mqttinfra.MessageHandler
	publishErr error
}

func newMockMQTT() *mockMQTT {
	return &mockMQTT{handlers: make(map[string]mqttinfra.MessageHandler)}
}

func (m *mockMQTT) Publish(topic string, payload []byte, _ byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, published{topic: topic, payload: payload, retain: retained})
	return nil
}

func (m *mockMQTT) Subscribe(topic string, _ byte, handler mqttinfra.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	return nil
}

func (m *mockMQTT) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, topic)
	return nil
}

// deliver routes a message to the handler whose single-level wildcard
// subscription matches topic.
func (m *mockMQTT) deliver(topic string, payload string) error {
	m.mu.Lock()
	var handler mqttinfra.MessageHandler
	for pattern, h := range m.handlers {
		if strings.HasSuffix(pattern, "/+") && strings.HasPrefix(topic, strings.TrimSuffix(pattern, "+")) {
			handler = h
		}
	}
	m.mu.Unlock()
	if handler == nil {
		return nil
	}
	return handler(topic, []byte(payload))
}

func (m *mockMQTT) subscribed(topic string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.handlers[topic]
	return ok
}

func (m *mockMQTT) last() published {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.published) == 0 {
		return published{}
	}
	return m.published[len(m.published)-1]
}
