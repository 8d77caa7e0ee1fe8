// Package consequence provides the output side of an Action.
//
// A Consequence names a command of a module ("desk" / "recall") and holds
// bound argument values in its arguments container. A Set runs its
// consequences in order. A consequence that fails is logged and recorded
// in the Result; the ones after it still run and Trigger never returns an
// error.
//
// Commands leave the package through a Dispatcher; argument layouts come
// from a DefinitionLookup. Both are implemented by the module layer.
package consequence
