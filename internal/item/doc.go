// Package item provides the ownership and lifecycle layer of Cue Logic.
//
// An Item is a container with a removal protocol: it can ask to be removed
// but never removes itself. A Manager[T] is the single owner of a homogeneous
// collection of items. It creates them through a Factory, attaches them to
// the container tree, and is the only code path that destroys them.
//
// # Removal order
//
//  1. the item leaves the manager's sequence and the container tree
//  2. ItemRemoved listeners run (the item is still readable)
//  3. the item's Clear hook runs, if it implements Clearer
//  4. the item is marked destroyed; further mutation panics
//
// # Usage
//
//	m := item.NewManager("Actions", func(init *container.Snapshot) (*Action, error) {
//	    return NewAction(deps), nil
//	})
//	a, err := m.AddItem(nil)
//	...
//	a.RequestRemoval() // same as m.RemoveItem(a)
package item
