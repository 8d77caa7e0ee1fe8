// Package project holds the root of a Cue Logic project and its persistence.
//
// A Project is the root container with two managers, in this order:
//
//	/modules   module.Manager  external systems, values and commands
//	/actions   action.Manager  conditions, validation and consequences
//
// Modules come first so that loading a snapshot creates module values
// before the conditions that refer to them. Actions resolve condition
// sources against the project root and send commands through the module
// manager. Any structural change under /modules rebinds every condition.
//
// Snapshots are stored through a Store:
//   - SQLiteStore keeps them in the projects table and the execution log in
//     action_executions (see the migrations package)
//   - RedisStore keeps them as JSON strings indexed by a sorted set, and the
//     execution log as a capped list per project
//
// EncodeSnapshot and DecodeSnapshot convert snapshots to JSON or YAML for
// export and import.
package project
