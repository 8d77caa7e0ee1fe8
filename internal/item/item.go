package item

import (
	"sync"

	"github.com/nerrad567/cuelogic-core/internal/container"
	"github.com/nerrad567/cuelogic-core/internal/notify"
)

// Item is anything a Manager can own.
type Item interface {
	ItemBase() *Base
}

// Clearer is implemented by items that hold resources outside the
// container tree (timers, goroutines, subscriptions). The owning manager
// calls Clear after ItemRemoved listeners have run and before the item is
// marked destroyed.
type Clearer interface {
	Clear()
}

// Typed is implemented by polymorphic items. The type name is written to
// the item's snapshot so the manager factory can recreate the right kind.
type Typed interface {
	TypeName() string
}

// Base is the container every item embeds, plus the removal protocol.
type Base struct {
	*container.Container

	mu        sync.Mutex
	destroyed bool
	removal   notify.List[*Base]
}

// NewBase creates a detached item container.
func NewBase(niceName string) *Base {
	return &Base{Container: container.New(niceName)}
}

// ItemBase implements Item.
func (b *Base) ItemBase() *Base { return b }

// RequestRemoval asks the owning manager to remove the item.
// It destroys nothing itself; with no listening manager it does nothing.
func (b *Base) RequestRemoval() {
	if b.IsDestroyed() {
		return
	}
	b.removal.Emit(b)
}

// OnRemovalRequested registers fn for RequestRemoval calls.
func (b *Base) OnRemovalRequested(fn func(*Base)) func() {
	return b.removal.Add(fn)
}

// IsDestroyed reports whether the owning manager has removed the item.
func (b *Base) IsDestroyed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.destroyed
}

func (b *Base) destroy() {
	b.mu.Lock()
	b.destroyed = true
	b.mu.Unlock()
	b.removal.Reset()
	b.MarkRemoved()
}
