package condition

import (
	"fmt"
	"sync"

	"github.com/nerrad567/cuelogic-core/internal/container"
	"github.com/nerrad567/cuelogic-core/internal/item"
	"github.com/nerrad567/cuelogic-core/internal/notify"
)

// Operators combining member results.
const (
	OperatorAnd = "and"
	OperatorOr  = "or"
)

// Set owns an ordered list of conditions and combines their results.
type Set struct {
	*item.Manager[Condition]

	operator *container.Parameter
	isValid  *container.Parameter

	resolver Resolver

	mu     sync.Mutex
	logger Logger
	subs   map[*item.Base]func()

	changed notify.List[bool]
}

// NewSet creates an empty set. Conditions it creates bind through resolver.
func NewSet(resolver Resolver) *Set {
	s := &Set{
		resolver: resolver,
		logger:   noopLogger{},
		subs:     make(map[*item.Base]func()),
	}
	s.Manager = item.NewManager[Condition]("Conditions", s.create)
	s.operator = s.AddEnumParameter("Operator", "how member results combine",
		[]string{OperatorAnd, OperatorOr}, OperatorAnd)
	s.isValid = s.AddBoolParameter("Is Valid", "combined result", true).SetPersistent(false)

	s.operator.OnChange(func(*container.Parameter) { s.update() })
	s.OnItemAdded(s.watchItem)
	s.OnItemRemoved(s.unwatchItem)
	return s
}

// SetLogger sets the logger for the set and the conditions it creates.
func (s *Set) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	s.mu.Lock()
	s.logger = logger
	s.mu.Unlock()
	s.Manager.SetLogger(logger)
}

// Operator returns the operator parameter.
func (s *Set) Operator() *container.Parameter { return s.operator }

// IsValid returns the transient parameter mirroring the combined result.
func (s *Set) IsValid() *container.Parameter { return s.isValid }

// AddCondition creates a condition of the given type.
func (s *Set) AddCondition(kind string) (Condition, error) {
	return s.AddItem(&container.Snapshot{Type: kind})
}

// Evaluate combines every member's result. An empty set is true.
func (s *Set) Evaluate() bool {
	items := s.Items()
	if len(items) == 0 {
		return true
	}
	if s.operator.String() == OperatorOr {
		for _, c := range items {
			if c.Evaluate() {
				return true
			}
		}
		return false
	}
	for _, c := range items {
		if !c.Evaluate() {
			return false
		}
	}
	return true
}

// OnChange registers fn for re-evaluations. fn receives the combined result
// each time a member may have changed or the member list changed; it is not
// deduplicated.
func (s *Set) OnChange(fn func(bool)) func() {
	return s.changed.Add(fn)
}

// Rebind re-resolves the source of every condition.
func (s *Set) Rebind() {
	for _, c := range s.Items() {
		c.Rebind()
	}
}

func (s *Set) create(init *container.Snapshot) (Condition, error) {
	kind := TypeStandard
	if init != nil && init.Type != "" {
		kind = init.Type
	}

	s.mu.Lock()
	logger := s.logger
	s.mu.Unlock()

	switch kind {
	case TypeStandard:
		return NewStandard(s.resolver, logger), nil
	case TypeExpression:
		return NewExpression(s.resolver, logger), nil
	}
	return nil, fmt.Errorf("%w: condition %q", item.ErrUnknownType, kind)
}

func (s *Set) watchItem(c Condition) {
	unsub := c.OnChange(s.update)
	s.mu.Lock()
	s.subs[c.ItemBase()] = unsub
	s.mu.Unlock()
	s.update()
}

func (s *Set) unwatchItem(c Condition) {
	s.mu.Lock()
	unsub := s.subs[c.ItemBase()]
	delete(s.subs, c.ItemBase())
	s.mu.Unlock()
	if unsub != nil {
		unsub()
	}
	s.update()
}

func (s *Set) update() {
	if s.IsRemoved() {
		return
	}
	v := s.Evaluate()
	_ = s.isValid.Set(v) //nolint:errcheck // bool into a bool parameter
	s.changed.Emit(v)
}
