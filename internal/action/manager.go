package action

import (
	"fmt"
	"sync"

	"github.com/nerrad567/cuelogic-core/internal/container"
	"github.com/nerrad567/cuelogic-core/internal/item"
	"github.com/nerrad567/cuelogic-core/internal/notify"
)

// Manager owns every action of a project.
type Manager struct {
	*item.Manager[*Action]

	deps Deps

	mu     sync.Mutex
	unsubs map[*Action]func()
	events notify.List[Event]
}

// NewManager creates an empty action manager. Every action it creates
// receives deps.
func NewManager(deps Deps) *Manager {
	deps = deps.withDefaults()
	m := &Manager{
		deps:   deps,
		unsubs: make(map[*Action]func()),
	}
	m.Manager = item.NewManager[*Action]("Actions", func(init *container.Snapshot) (*Action, error) {
		a := New(m.deps)
		if init != nil {
			a.beginLoad()
		}
		return a, nil
	})
	m.Manager.SetLogger(deps.Logger)
	m.OnItemAdded(m.watch)
	m.OnItemRemoved(m.unwatch)
	return m
}

// ActionByName returns the action with the given short name.
func (m *Manager) ActionByName(name string) (*Action, error) {
	a, ok := m.ItemByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrActionNotFound, name)
	}
	return a, nil
}

// OnEvent registers fn for events of every owned action.
func (m *Manager) OnEvent(fn func(Event)) func() {
	return m.events.Add(fn)
}

// TriggerRole fires the actions taking part in role: onTrue of activate
// actions, onFalse of deactivate actions (both counts for either).
// Disabled actions are skipped. It returns the number of actions fired.
func (m *Manager) TriggerRole(role Role) int {
	var valid bool
	switch role {
	case RoleActivate:
		valid = true
	case RoleDeactivate:
		valid = false
	default:
		return 0
	}

	fired := 0
	for _, a := range m.Items() {
		if a.Enabled() && a.HasRole(role) {
			a.fireRole(valid)
			fired++
		}
	}
	m.deps.Logger.Info("role triggered", "role", role, "actions", fired)
	return fired
}

// CheckAll evaluates every action. Loaded actions stay quiet until it runs,
// so call it once the modules are started.
func (m *Manager) CheckAll() {
	for _, a := range m.Items() {
		a.Check()
	}
}

// RebindAll re-resolves every condition source. Call it after the module
// tree changed.
func (m *Manager) RebindAll() {
	for _, a := range m.Items() {
		a.Conditions().Rebind()
	}
}

// watch runs after the item manager imported a's snapshot.
func (m *Manager) watch(a *Action) {
	a.finishLoad()
	unsub := a.OnEvent(m.events.Emit)
	m.mu.Lock()
	m.unsubs[a] = unsub
	m.mu.Unlock()
}

func (m *Manager) unwatch(a *Action) {
	m.mu.Lock()
	unsub := m.unsubs[a]
	delete(m.unsubs, a)
	m.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}
