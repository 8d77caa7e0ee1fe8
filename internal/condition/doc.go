// Package condition provides the predicates an Action watches.
//
// A Condition binds to a live parameter somewhere in the project tree by
// address (for example "/modules/desk/values/fader1") and evaluates to a
// bool. Two kinds exist:
//
//   - standard: compares the bound value against a reference with a
//     comparator (==, !=, >, >=, <, <=), optionally inverted
//   - expression: evaluates an expr-lang program with the bound value as
//     `value` and its sibling values as `values`
//
// A Set owns its conditions and combines them with "and" (default) or "or".
// An empty Set is true.
package condition
