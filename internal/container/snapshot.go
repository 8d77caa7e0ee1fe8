package container

import (
	"errors"
	"fmt"
)

// Snapshot is the serialisable form of a container subtree.
//
// Parameters holds persistent parameter values keyed by short name.
// Containers holds child containers keyed by short name. Items holds the
// ordered members written by a manager's Persister; each item snapshot
// carries its Type so the manager factory can recreate it.
type Snapshot struct {
	ShortName  string               `json:"shortName,omitempty" yaml:"shortName,omitempty"`
	NiceName   string               `json:"niceName,omitempty" yaml:"niceName,omitempty"`
	Type       string               `json:"type,omitempty" yaml:"type,omitempty"`
	Parameters map[string]any       `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Containers map[string]*Snapshot `json:"containers,omitempty" yaml:"containers,omitempty"`
	Items      []*Snapshot          `json:"items,omitempty" yaml:"items,omitempty"`
}

// Param returns a parameter value from the snapshot, or nil.
func (s *Snapshot) Param(name string) any {
	if s == nil {
		return nil
	}
	return s.Parameters[name]
}

// Child returns a child snapshot, or nil.
func (s *Snapshot) Child(name string) *Snapshot {
	if s == nil {
		return nil
	}
	return s.Containers[name]
}

// Export writes c's persistent parameters and children into a Snapshot.
// Triggers and transient parameters are skipped, as are children that
// opted out with SetSaveInParent(false).
func (c *Container) Export() *Snapshot {
	c.mu.RLock()
	s := &Snapshot{ShortName: c.shortName, NiceName: c.niceName}
	params := append([]*Parameter(nil), c.params...)
	children := append([]*Container(nil), c.children...)
	persister := c.persister
	c.mu.RUnlock()

	for _, p := range params {
		if !p.Persistent() {
			continue
		}
		if s.Parameters == nil {
			s.Parameters = make(map[string]any, len(params))
		}
		s.Parameters[p.ShortName()] = p.Value()
	}

	for _, child := range children {
		child.mu.RLock()
		save := child.saveInParent
		child.mu.RUnlock()
		if !save {
			continue
		}
		if s.Containers == nil {
			s.Containers = make(map[string]*Snapshot, len(children))
		}
		s.Containers[child.ShortName()] = child.Export()
	}

	if persister != nil {
		persister.SaveState(s)
	}
	return s
}

// Import applies s to c.
//
// The persister runs first so that it can create the parameters and items
// the rest of the snapshot refers to. Unknown parameter and child keys are
// ignored. Values that fail to apply are collected and returned together;
// everything else is still applied.
func (c *Container) Import(s *Snapshot) error {
	if s == nil {
		return nil
	}

	var errs []error

	c.mu.RLock()
	persister := c.persister
	c.mu.RUnlock()
	if persister != nil {
		if err := persister.LoadState(s); err != nil {
			errs = append(errs, err)
		}
	}

	if s.NiceName != "" && s.NiceName != c.NiceName() {
		c.SetNiceName(s.NiceName)
	}

	for _, p := range c.Parameters() {
		v, ok := s.Parameters[p.ShortName()]
		if !ok || !p.Persistent() {
			continue
		}
		if err := p.Set(v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Address(), err))
		}
	}

	for _, child := range c.Children() {
		cs, ok := s.Containers[child.ShortName()]
		if !ok {
			continue
		}
		if err := child.Import(cs); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
