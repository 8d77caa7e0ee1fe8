package item

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/nerrad567/cuelogic-core/internal/container"
	"github.com/nerrad567/cuelogic-core/internal/notify"
)

// Logger defines the logging interface used by managers.
// This allows the package to be used with any logger implementation.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Factory builds a default item. init is the snapshot the item will be
// loaded from, or nil; polymorphic managers switch on init.Type.
type Factory[T Item] func(init *container.Snapshot) (T, error)

// Manager owns an ordered collection of items of one kind.
//
// Every owned item is also a child container of the manager and the other
// way round. Only the manager inserts into or erases from the collection:
// an item asking for its own removal goes through RemoveItem.
//
// Thread Safety: AddItem, RemoveItem and Clear may be called from any
// goroutine. Item order and child container order always agree. Listeners
// run without the manager locks, so they may call back into the manager;
// child structure listeners of the manager's own container must not.
type Manager[T Item] struct {
	*container.Container

	factory Factory[T]

	// structMu serialises changes to items together with the matching
	// child container change.
	structMu sync.Mutex

	mu     sync.Mutex
	items  []T
	unsubs map[*Base]func()

	added   notify.List[T]
	removed notify.List[T]

	logger Logger
}

// NewManager creates an empty manager. The manager persists its items as
// the Items list of its own snapshot.
func NewManager[T Item](niceName string, factory Factory[T]) *Manager[T] {
	m := &Manager[T]{
		Container: container.New(niceName),
		factory:   factory,
		unsubs:    make(map[*Base]func()),
		logger:    noopLogger{},
	}
	m.SetPersister(m)
	return m
}

// SetLogger sets the logger for the manager.
func (m *Manager[T]) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	m.mu.Lock()
	m.logger = logger
	m.mu.Unlock()
}

func (m *Manager[T]) log() Logger {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.logger
}

// AddItem creates a default item, appends it and attaches it as a child
// container. When init is non-nil its state is applied before ItemAdded
// listeners run. Problems in init are logged; they never fail the add.
func (m *Manager[T]) AddItem(init *container.Snapshot) (T, error) {
	it, err := m.factory(init)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %w", ErrCreateFailed, err)
	}

	b := it.ItemBase()
	if init != nil {
		if init.NiceName != "" {
			b.SetNiceName(init.NiceName)
		}
		if init.ShortName != "" {
			b.RestoreShortName(init.ShortName)
		}
	}
	b.SetSaveInParent(false)

	remove := func(*Base) { m.RemoveItem(it) }

	m.structMu.Lock()
	m.mu.Lock()
	m.items = append(m.items, it)
	m.unsubs[b] = b.OnRemovalRequested(remove)
	m.mu.Unlock()
	m.AddChild(b.Container)
	m.structMu.Unlock()

	if init != nil {
		if err := b.Import(init); err != nil {
			m.log().Warn("item loaded with errors",
				"item", b.Address(),
				"error", err,
			)
		}
	}

	m.added.Emit(it)
	return it, nil
}

// RemoveItem detaches and destroys it.
//
// ItemRemoved listeners run before the item's Clear hook and before it is
// marked destroyed, so they can still read its final state. Removing an item
// this manager does not own is a programming error and panics.
func (m *Manager[T]) RemoveItem(it T) {
	if !m.remove(it) {
		panic(fmt.Sprintf("item: remove of unowned item %q from %q",
			it.ItemBase().ShortName(), m.ShortName()))
	}
}

// TryRemoveItem is RemoveItem for callers racing other removals, such as
// request handlers. It reports false when it is no longer owned.
func (m *Manager[T]) TryRemoveItem(it T) bool {
	return m.remove(it)
}

func (m *Manager[T]) remove(it T) bool {
	b := it.ItemBase()

	m.structMu.Lock()
	m.mu.Lock()
	idx := slices.IndexFunc(m.items, func(x T) bool { return x.ItemBase() == b })
	if idx < 0 {
		m.mu.Unlock()
		m.structMu.Unlock()
		return false
	}
	m.items = slices.Delete(m.items, idx, idx+1)
	unsub := m.unsubs[b]
	delete(m.unsubs, b)
	m.mu.Unlock()
	m.RemoveChild(b.Container)
	m.structMu.Unlock()

	if unsub != nil {
		unsub()
	}

	m.removed.Emit(it)

	if c, ok := any(it).(Clearer); ok {
		c.Clear()
	}
	b.destroy()
	return true
}

// Clear removes every item, front first. Removals triggered as a side
// effect of another removal are tolerated.
func (m *Manager[T]) Clear() {
	for {
		m.mu.Lock()
		if len(m.items) == 0 {
			m.mu.Unlock()
			return
		}
		first := m.items[0]
		m.mu.Unlock()
		m.remove(first)
	}
}

// Items returns the owned items in order.
func (m *Manager[T]) Items() []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.items)
}

// Len returns the number of owned items.
func (m *Manager[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Owns reports whether it is currently owned by m.
func (m *Manager[T]) Owns(it T) bool {
	b := it.ItemBase()
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.ContainsFunc(m.items, func(x T) bool { return x.ItemBase() == b })
}

// ItemByName returns the item with the given short name.
func (m *Manager[T]) ItemByName(shortName string) (T, bool) {
	for _, it := range m.Items() {
		if it.ItemBase().ShortName() == shortName {
			return it, true
		}
	}
	var zero T
	return zero, false
}

// OnItemAdded registers fn for added items.
func (m *Manager[T]) OnItemAdded(fn func(T)) func() {
	return m.added.Add(fn)
}

// OnItemRemoved registers fn for removed items. fn runs before the item is
// destroyed.
func (m *Manager[T]) OnItemRemoved(fn func(T)) func() {
	return m.removed.Add(fn)
}

// SaveState implements container.Persister.
func (m *Manager[T]) SaveState(s *container.Snapshot) {
	items := m.Items()
	if len(items) == 0 {
		return
	}
	s.Items = make([]*container.Snapshot, 0, len(items))
	for _, it := range items {
		is := it.ItemBase().Export()
		if typed, ok := any(it).(Typed); ok {
			is.Type = typed.TypeName()
		}
		s.Items = append(s.Items, is)
	}
}

// LoadState implements container.Persister. It replaces every item with the
// ones in s. Items that cannot be created are skipped.
func (m *Manager[T]) LoadState(s *container.Snapshot) error {
	m.Clear()

	var errs []error
	for i, is := range s.Items {
		if is == nil {
			continue
		}
		if _, err := m.AddItem(is); err != nil {
			m.log().Warn("skipping item",
				"manager", m.Address(),
				"index", i,
				"type", is.Type,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("%s[%d]: %w", m.ShortName(), i, err))
		}
	}
	return errors.Join(errs...)
}
