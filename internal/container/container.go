package container

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/nerrad567/cuelogic-core/internal/notify"
)

// EventKind identifies a structural change.
type EventKind int

const (
	// ChildAdded fires when a child container is attached.
	ChildAdded EventKind = iota
	// ChildRemoved fires when a child container is detached.
	ChildRemoved
	// NameChanged fires when a container's nice name changes.
	NameChanged
	// ParameterAdded fires when a parameter is attached.
	ParameterAdded
	// ParameterRemoved fires when a parameter is detached.
	ParameterRemoved
)

func (k EventKind) String() string {
	switch k {
	case ChildAdded:
		return "child_added"
	case ChildRemoved:
		return "child_removed"
	case NameChanged:
		return "name_changed"
	case ParameterAdded:
		return "parameter_added"
	case ParameterRemoved:
		return "parameter_removed"
	}
	return "unknown"
}

// StructureEvent describes a change somewhere in a container subtree.
// Events bubble: listeners on a container see changes of all descendants.
type StructureEvent struct {
	Kind EventKind

	// Source is the container whose child list, parameter list or name changed.
	Source *Container

	// Child is the added/removed child (ChildAdded, ChildRemoved).
	Child *Container

	// Parameter is the added/removed parameter (ParameterAdded, ParameterRemoved).
	Parameter *Parameter
}

// Persister lets the owner of a container extend Export and Import.
// Managers use it to write their items as an ordered list.
type Persister interface {
	SaveState(s *Snapshot)
	LoadState(s *Snapshot) error
}

// Container is a node of the named hierarchy.
//
// The short name is the JSON key and becomes immutable once the container is
// attached to a parent. The nice name is the display name and is kept unique
// among siblings by suffixing a counter.
//
// Thread Safety: all methods are safe for concurrent use. Lock order is
// parent before child; listeners run without any container lock held.
type Container struct {
	mu sync.RWMutex

	shortName  string
	niceName   string
	nameLocked bool

	parent   *Container
	children []*Container
	params   []*Parameter

	// saveInParent is false for children that another persister writes
	// (manager items).
	saveInParent bool
	removed      bool
	persister    Persister

	structure notify.List[StructureEvent]
}

// New creates a detached container.
func New(niceName string) *Container {
	if strings.TrimSpace(niceName) == "" {
		niceName = "Container"
	}
	return &Container{
		shortName:    ToShortName(niceName),
		niceName:     niceName,
		saveInParent: true,
	}
}

// ShortName returns the immutable key of the container.
func (c *Container) ShortName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.shortName
}

// NiceName returns the display name.
func (c *Container) NiceName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.niceName
}

// Parent returns the parent container, or nil for a root or detached container.
func (c *Container) Parent() *Container {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.parent
}

// Children returns the child containers in insertion order.
func (c *Container) Children() []*Container {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.children)
}

// Parameters returns the parameters in insertion order.
func (c *Container) Parameters() []*Parameter {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.params)
}

// IsRemoved reports whether the container was destroyed by its owner.
func (c *Container) IsRemoved() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.removed
}

// Address returns the slash-joined short names from the root (exclusive).
// A root container's address is "/".
func (c *Container) Address() string {
	var parts []string
	for cur := c; cur != nil; cur = cur.Parent() {
		if cur.Parent() == nil {
			break
		}
		parts = append(parts, cur.ShortName())
	}
	slices.Reverse(parts)
	return "/" + strings.Join(parts, "/")
}

// IsDescendantOf reports whether c sits below (or is) ancestor.
func (c *Container) IsDescendantOf(ancestor *Container) bool {
	for cur := c; cur != nil; cur = cur.Parent() {
		if cur == ancestor {
			return true
		}
	}
	return false
}

// RestoreShortName sets the short name of a detached container, typically
// from a snapshot, before it is attached. It panics once the name is locked.
func (c *Container) RestoreShortName(name string) {
	name = ToShortName(name)
	if name == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.nameLocked {
		panic(fmt.Sprintf("container: short name of %q is immutable", c.shortName))
	}
	c.shortName = name
}

// SetSaveInParent controls whether the parent's Export includes this container.
func (c *Container) SetSaveInParent(v bool) {
	c.mu.Lock()
	c.saveInParent = v
	c.mu.Unlock()
}

// SetPersister installs the Export/Import extension for this container.
func (c *Container) SetPersister(p Persister) {
	c.mu.Lock()
	c.persister = p
	c.mu.Unlock()
}

// SetNiceName renames the container, resolving collisions among siblings.
// It returns the name actually applied.
func (c *Container) SetNiceName(name string) string {
	c.mustBeAlive()
	name = strings.TrimSpace(name)
	if name == "" {
		return c.NiceName()
	}

	parent := c.Parent()
	if parent != nil {
		parent.mu.RLock()
		name = parent.uniqueNiceNameLocked(name, c)
		parent.mu.RUnlock()
	}

	c.mu.Lock()
	if c.niceName == name {
		c.mu.Unlock()
		return name
	}
	c.niceName = name
	if !c.nameLocked {
		c.shortName = ToShortName(name)
	}
	c.mu.Unlock()

	c.emit(StructureEvent{Kind: NameChanged, Source: c})
	return name
}

// AddChild attaches child, giving it a collision-free nice name and short
// name among its new siblings. Attaching locks the child's short name.
func (c *Container) AddChild(child *Container) {
	c.mustBeAlive()
	if child == nil || child == c {
		panic("container: invalid child")
	}

	c.mu.Lock()
	child.mu.Lock()
	if child.parent != nil {
		child.mu.Unlock()
		c.mu.Unlock()
		panic(fmt.Sprintf("container: %q already has a parent", child.shortName))
	}
	nice := c.uniqueNiceNameLocked(child.niceName, child)
	renamed := nice != child.niceName
	child.niceName = nice
	if !child.nameLocked && renamed {
		child.shortName = ToShortName(nice)
	}
	if child.shortName == "" {
		child.shortName = "item"
	}
	child.shortName = c.uniqueShortNameLocked(child.shortName, child)
	child.nameLocked = true
	child.parent = c
	child.mu.Unlock()
	c.children = append(c.children, child)
	c.mu.Unlock()

	c.emit(StructureEvent{Kind: ChildAdded, Source: c, Child: child})
}

// RemoveChild detaches child. It returns false if child is not a child of c.
// The child's short name stays locked.
func (c *Container) RemoveChild(child *Container) bool {
	c.mu.Lock()
	idx := slices.Index(c.children, child)
	if idx < 0 {
		c.mu.Unlock()
		return false
	}
	c.children = slices.Delete(c.children, idx, idx+1)
	child.mu.Lock()
	child.parent = nil
	child.mu.Unlock()
	c.mu.Unlock()

	c.emit(StructureEvent{Kind: ChildRemoved, Source: c, Child: child})
	return true
}

// ChildByName returns the direct child with the given short name.
func (c *Container) ChildByName(shortName string) (*Container, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, child := range c.children {
		if child.ShortName() == shortName {
			return child, true
		}
	}
	return nil, false
}

// ParameterByName returns the parameter with the given short name.
func (c *Container) ParameterByName(shortName string) (*Parameter, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.params {
		if p.shortName == shortName {
			return p, true
		}
	}
	return nil, false
}

// FindContainer resolves a slash separated address relative to c.
func (c *Container) FindContainer(address string) (*Container, bool) {
	cur := c
	for _, part := range splitAddress(address) {
		next, ok := cur.ChildByName(part)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// ResolveParameter resolves "/a/b/param" relative to c.
func (c *Container) ResolveParameter(address string) (*Parameter, bool) {
	parts := splitAddress(address)
	if len(parts) == 0 {
		return nil, false
	}
	owner, ok := c.FindContainer(strings.Join(parts[:len(parts)-1], "/"))
	if !ok {
		return nil, false
	}
	return owner.ParameterByName(parts[len(parts)-1])
}

// AddParameter attaches p, making its short name unique within c.
func (c *Container) AddParameter(p *Parameter) *Parameter {
	c.mustBeAlive()

	c.mu.Lock()
	p.mu.Lock()
	p.owner = c
	base := p.shortName
	if base == "" {
		base = "param"
	}
	name := base
	for i := 2; c.hasParamLocked(name, p); i++ {
		name = fmt.Sprintf("%s%d", base, i)
	}
	p.shortName = name
	p.mu.Unlock()
	c.params = append(c.params, p)
	c.mu.Unlock()

	c.emit(StructureEvent{Kind: ParameterAdded, Source: c, Parameter: p})
	return p
}

// RemoveParameter detaches p. It returns false if p does not belong to c.
func (c *Container) RemoveParameter(p *Parameter) bool {
	c.mu.Lock()
	idx := slices.Index(c.params, p)
	if idx < 0 {
		c.mu.Unlock()
		return false
	}
	c.params = slices.Delete(c.params, idx, idx+1)
	c.mu.Unlock()

	p.mu.Lock()
	p.owner = nil
	p.mu.Unlock()

	c.emit(StructureEvent{Kind: ParameterRemoved, Source: c, Parameter: p})
	return true
}

// AddBoolParameter adds a bool parameter.
func (c *Container) AddBoolParameter(niceName, description string, def bool) *Parameter {
	return c.AddParameter(NewParameter(KindBool, niceName, description, def))
}

// AddIntParameter adds an int parameter clamped to [lo, hi].
func (c *Container) AddIntParameter(niceName, description string, def, lo, hi int) *Parameter {
	p := NewParameter(KindInt, niceName, description, def)
	p.SetRange(float64(lo), float64(hi))
	return c.AddParameter(p)
}

// AddFloatParameter adds a float parameter clamped to [lo, hi].
func (c *Container) AddFloatParameter(niceName, description string, def, lo, hi float64) *Parameter {
	p := NewParameter(KindFloat, niceName, description, def)
	p.SetRange(lo, hi)
	return c.AddParameter(p)
}

// AddStringParameter adds a string parameter.
func (c *Container) AddStringParameter(niceName, description, def string) *Parameter {
	return c.AddParameter(NewParameter(KindString, niceName, description, def))
}

// AddEnumParameter adds an enum parameter restricted to options.
func (c *Container) AddEnumParameter(niceName, description string, options []string, def string) *Parameter {
	p := NewParameter(KindEnum, niceName, description, def)
	p.SetOptions(options)
	return c.AddParameter(p)
}

// AddTrigger adds a trigger parameter.
func (c *Container) AddTrigger(niceName, description string) *Parameter {
	return c.AddParameter(NewParameter(KindTrigger, niceName, description, nil))
}

// EnsureParameter returns the parameter named shortName, creating one whose
// kind is inferred from v when it does not exist yet.
func (c *Container) EnsureParameter(shortName string, v any) *Parameter {
	if p, ok := c.ParameterByName(shortName); ok {
		return p
	}
	p := NewParameter(KindOf(v), shortName, "", nil)
	p.shortName = shortName
	return c.AddParameter(p)
}

// OnStructureChange registers fn for structural changes of c and its
// descendants.
func (c *Container) OnStructureChange(fn func(StructureEvent)) func() {
	return c.structure.Add(fn)
}

// MarkRemoved flags c and its subtree as destroyed. Later mutations panic.
func (c *Container) MarkRemoved() {
	c.mu.Lock()
	c.removed = true
	children := slices.Clone(c.children)
	c.mu.Unlock()
	for _, child := range children {
		child.MarkRemoved()
	}
}

// mustBeAlive panics when c was destroyed: mutating a removed item is a
// programming error.
func (c *Container) mustBeAlive() {
	if c.IsRemoved() {
		panic(fmt.Sprintf("container: mutation of removed container %q", c.ShortName()))
	}
}

// emit delivers ev to c and every ancestor.
func (c *Container) emit(ev StructureEvent) {
	for cur := c; cur != nil; cur = cur.Parent() {
		cur.structure.Emit(ev)
	}
}

func (c *Container) hasParamLocked(name string, except *Parameter) bool {
	for _, p := range c.params {
		if p != except && p.shortName == name {
			return true
		}
	}
	return false
}

// uniqueNiceNameLocked returns name, or name with a numeric suffix when a
// sibling other than self already uses it. Caller holds c.mu.
func (c *Container) uniqueNiceNameLocked(name string, self *Container) string {
	taken := func(candidate string) bool {
		for _, child := range c.children {
			if child != self && child.niceNameUnsafe() == candidate {
				return true
			}
		}
		return false
	}
	if !taken(name) {
		return name
	}
	base, n := splitCounter(name)
	for i := max(n+1, 2); ; i++ {
		candidate := fmt.Sprintf("%s %d", base, i)
		if !taken(candidate) {
			return candidate
		}
	}
}

// uniqueShortNameLocked mirrors uniqueNiceNameLocked for keys. Caller holds
// c.mu and self.mu.
func (c *Container) uniqueShortNameLocked(name string, self *Container) string {
	taken := func(candidate string) bool {
		for _, child := range c.children {
			if child != self && child.shortNameUnsafe() == candidate {
				return true
			}
		}
		return false
	}
	if !taken(name) {
		return name
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s%d", strings.TrimRight(name, "0123456789"), i)
		if !taken(candidate) {
			return candidate
		}
	}
}

// niceNameUnsafe reads a sibling's name while the caller holds the parent
// lock. The parent-before-child lock order makes this safe.
func (c *Container) niceNameUnsafe() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.niceName
}

func (c *Container) shortNameUnsafe() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.shortName
}

func splitAddress(address string) []string {
	var parts []string
	for _, p := range strings.Split(address, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
