// Package action provides the Cue Logic action state machine.
//
// An Action owns a condition.Set and two consequence.Sets (onTrue and
// onFalse). Whenever the combined condition result changes, the action
// validates it over a configurable window before firing:
//
//	        result changed / idle
//	idle ─────────────────────────▶ validating ──┐ flip: re-arm
//	                                   │  ▲      │
//	                  window completes │  └──────┘
//	                                   ▼
//	           validated_true / validated_false
//	              (fires onTrue / onFalse once)
//
// A validation time of zero confirms immediately. Timers come from an
// injected Clock; every arm bumps a generation counter so that a callback
// from a cancelled window is a no-op.
//
// The role (none, activate, deactivate, both) is not used by the action
// itself. Manager.TriggerRole consumes it: activate fires onTrue of every
// activate action, deactivate fires onFalse of every deactivate action.
//
// # Events
//
// Actions emit EventEnabledChanged, EventRoleChanged and
// EventValidationChanged. The Manager re-emits the events of every action
// it owns.
package action
