package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/cuelogic-core/internal/container"
	"github.com/nerrad567/cuelogic-core/internal/infrastructure/config"
	"github.com/nerrad567/cuelogic-core/internal/infrastructure/metrics"
	mqttinfra "github.com/nerrad567/cuelogic-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/cuelogic-core/internal/project"
)

// memStore is an in-memory project store and execution log.
type memStore struct {
	mu        sync.Mutex
	snapshots map[string]*container.Snapshot
	execs     []project.ExecutionRecord
	saves     int
	saveErr   error
}

func newMemStore() *memStore {
	return &memStore{snapshots: make(map[string]*container.Snapshot)}
}

func (s *memStore) Save(_ context.Context, name string, snap *container.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.snapshots[name] = snap
	s.saves++
	return nil
}

func (s *memStore) Load(_ context.Context, name string) (*container.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", project.ErrProjectNotFound, name)
	}
	return snap, nil
}

func (s *memStore) List(context.Context) ([]string, error) { return nil, nil }
func (s *memStore) Delete(context.Context, string) error   { return nil }
func (s *memStore) Close() error                           { return nil }

func (s *memStore) AppendExecution(_ context.Context, rec project.ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.execs = append(s.execs, rec)
	return nil
}

func (s *memStore) Executions(_ context.Context, proj, actionAddr string, _ int) ([]project.ExecutionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []project.ExecutionRecord
	for i := len(s.execs) - 1; i >= 0; i-- {
		rec := s.execs[i]
		if rec.Project == proj && (actionAddr == "" || rec.Action == actionAddr) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *memStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *memStore) execCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.execs)
}

// recordingHub records broadcasts.
type recordingHub struct {
	mu     sync.Mutex
	events []hubEvent
}

type hubEvent struct {
	channel string
	payload any
}

func (h *recordingHub) Broadcast(channel string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, hubEvent{channel, payload})
}

func (h *recordingHub) on(channel string) []any {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []any
	for _, ev := range h.events {
		if ev.channel == channel {
			out = append(out, ev.payload)
		}
	}
	return out
}

// mockMQTT records published messages.
type mockMQTT struct {
	mu        sync.Mutex
	published []string
}

func (m *mockMQTT) Publish(topic string, _ []byte, _ byte, _ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, topic)
	return nil
}

func (m *mockMQTT) Subscribe(string, byte, mqttinfra.MessageHandler) error { return nil }
func (m *mockMQTT) Unsubscribe(string) error                               { return nil }

func (m *mockMQTT) topics() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.published...)
}

type fixture struct {
	store   *memStore
	hub     *recordingHub
	mqtt    *mockMQTT
	metrics *metrics.Metrics
	engine  *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   newMemStore(),
		hub:     &recordingHub{},
		mqtt:    &mockMQTT{},
		metrics: metrics.New(),
	}
	eng, err := New(Deps{
		Config:     config.EngineConfig{Project: "show"},
		Store:      f.store,
		Executions: f.store,
		MQTT:       f.mqtt,
		Metrics:    f.metrics,
		Hub:        f.hub,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.engine = eng
	return f
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
