package condition

import (
	"sync"

	"github.com/nerrad567/cuelogic-core/internal/container"
	"github.com/nerrad567/cuelogic-core/internal/item"
	"github.com/nerrad567/cuelogic-core/internal/notify"
)

// Condition types, as written to snapshots.
const (
	TypeStandard   = "standard"
	TypeExpression = "expression"
)

// Resolver looks up a parameter by address.
// *container.Container satisfies it, so the project root is the usual resolver.
type Resolver interface {
	ResolveParameter(address string) (*container.Parameter, bool)
}

// Logger defines the logging interface used by conditions.
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

// Condition is a predicate over a bound source value.
type Condition interface {
	item.Item
	item.Typed

	// Evaluate recomputes the result from the current source value.
	Evaluate() bool

	// Rebind resolves the source address again. Call it after the tree
	// the address points into has changed.
	Rebind()

	// OnChange registers fn for anything that may change the result:
	// a source value change, a rebind or an edit of the condition itself.
	OnChange(fn func()) func()
}

// base holds the source binding shared by every condition kind.
type base struct {
	*item.Base

	kind     string
	resolver Resolver
	logger   Logger
	source   *container.Parameter

	// follow subscribes notify to whatever the condition reads besides
	// its own parameters. Nil follows the bound parameter alone.
	follow func(target *container.Parameter, notify func()) func()

	mu     sync.Mutex
	bound  *container.Parameter
	unbind func()

	changed notify.List[struct{}]
}

func newBase(niceName, kind string, resolver Resolver, logger Logger) *base {
	if logger == nil {
		logger = noopLogger{}
	}
	b := &base{
		Base:     item.NewBase(niceName),
		kind:     kind,
		resolver: resolver,
		logger:   logger,
	}
	b.source = b.AddStringParameter("Source", "address of the watched value", "")
	b.source.OnChange(func(*container.Parameter) { b.Rebind() })
	return b
}

// TypeName implements item.Typed.
func (b *base) TypeName() string { return b.kind }

// Source returns the parameter holding the source address.
func (b *base) Source() *container.Parameter { return b.source }

// Bound returns the currently bound source parameter, or nil.
func (b *base) Bound() *container.Parameter {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bound
}

// Rebind implements Condition.
func (b *base) Rebind() {
	var target *container.Parameter
	if addr := b.source.String(); addr != "" && b.resolver != nil {
		target, _ = b.resolver.ResolveParameter(addr)
	}

	b.mu.Lock()
	if target == b.bound {
		b.mu.Unlock()
		return
	}
	if b.unbind != nil {
		b.unbind()
		b.unbind = nil
	}
	b.bound = target
	switch {
	case target == nil:
	case b.follow != nil:
		b.unbind = b.follow(target, b.notify)
	default:
		b.unbind = target.OnChange(func(*container.Parameter) { b.notify() })
	}
	b.mu.Unlock()

	if target == nil && b.source.String() != "" {
		b.logger.Debug("condition source unresolved",
			"condition", b.Address(),
			"source", b.source.String(),
		)
	}
	b.notify()
}

// OnChange implements Condition.
func (b *base) OnChange(fn func()) func() {
	return b.changed.Add(func(struct{}) { fn() })
}

// Clear releases the source subscription.
func (b *base) Clear() {
	b.mu.Lock()
	if b.unbind != nil {
		b.unbind()
		b.unbind = nil
	}
	b.bound = nil
	b.mu.Unlock()
	b.changed.Reset()
}

func (b *base) notify() {
	b.changed.Emit(struct{}{})
}

// watch makes every parameter in params notify the condition on change.
func (b *base) watch(params ...*container.Parameter) {
	for _, p := range params {
		p.OnChange(func(*container.Parameter) { b.notify() })
	}
}

// sourceValue returns the bound value and kind.
func (b *base) sourceValue() (any, container.Kind, bool) {
	p := b.Bound()
	if p == nil {
		return nil, "", false
	}
	return p.Value(), p.Kind(), true
}
