package action

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/cuelogic-core/internal/condition"
	"github.com/nerrad567/cuelogic-core/internal/consequence"
	"github.com/nerrad567/cuelogic-core/internal/container"
)

// ─── Fake Clock ─────────────────────────────────────────────────────────────

// fakeClock only moves when Advance is called. Due callbacks run on the
// calling goroutine, earliest first.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 20, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.fired = true
		c.now = next.at
		c.mu.Unlock()
		next.fn()
	}
}

// ─── Mock Dependencies ──────────────────────────────────────────────────────

// recordingDispatcher counts dispatched commands by name.
type recordingDispatcher struct {
	mu     sync.Mutex
	counts map[string]int
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{counts: make(map[string]int)}
}

func (d *recordingDispatcher) Dispatch(_ context.Context, cmd consequence.Command) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.counts[cmd.Name]++
	return nil
}

func (d *recordingDispatcher) count(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counts[name]
}

// recordingRecorder keeps every execution.
type recordingRecorder struct {
	mu    sync.Mutex
	execs []Execution
}

func (r *recordingRecorder) RecordExecution(_ context.Context, exec Execution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.execs = append(r.execs, exec)
}

func (r *recordingRecorder) all() []Execution {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Execution(nil), r.execs...)
}

// ─── Fixture ────────────────────────────────────────────────────────────────

type fixture struct {
	root    *container.Container
	flag    *container.Parameter
	clock   *fakeClock
	disp    *recordingDispatcher
	rec     *recordingRecorder
	actions *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	root := container.New("Project")
	values := container.New("Values")
	root.AddChild(values)

	f := &fixture{
		root:  root,
		flag:  values.AddBoolParameter("Flag", "", false),
		clock: newFakeClock(),
		disp:  newRecordingDispatcher(),
		rec:   &recordingRecorder{},
	}
	f.actions = NewManager(Deps{
		Resolver:   root,
		Dispatcher: f.disp,
		Clock:      f.clock,
		Recorder:   f.rec,
	})
	root.AddChild(f.actions.Container)
	return f
}

// newAction adds a disabled action watching /values/flag == true, with an
// "on" consequence in onTrue and an "off" consequence in onFalse.
func (f *fixture) newAction(t *testing.T, delay time.Duration) *Action {
	t.Helper()

	a, err := f.actions.AddItem(nil)
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	a.SetEnabled(false)
	if err := a.SetValidationTime(delay); err != nil {
		t.Fatalf("SetValidationTime: %v", err)
	}

	c, err := a.Conditions().AddCondition(condition.TypeStandard)
	if err != nil {
		t.Fatalf("AddCondition: %v", err)
	}
	std := c.(*condition.Standard)
	_ = std.Reference().Set("true")
	_ = std.Source().Set("/values/flag")

	if _, err := a.OnTrue().AddConsequence(consequence.Definition{Module: "desk", Command: "on"}); err != nil {
		t.Fatalf("AddConsequence: %v", err)
	}
	if _, err := a.OnFalse().AddConsequence(consequence.Definition{Module: "desk", Command: "off"}); err != nil {
		t.Fatalf("AddConsequence: %v", err)
	}
	return a
}

// drain waits until the action's worker has run every queued set.
func drain(t *testing.T, a *Action) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !a.worker.idle() {
		if time.Now().After(deadline) {
			t.Fatal("worker did not drain")
		}
		time.Sleep(time.Millisecond)
	}
}
