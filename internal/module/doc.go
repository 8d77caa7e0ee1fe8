// Package module is the boundary between Cue Logic and the outside world.
//
// A Module is an item owning two things:
//
//   - values: live parameters fed by the external system (fader levels,
//     sensor readings, playback state). Conditions bind to them by address,
//     for example "/modules/desk/values/fader1".
//   - commands: what consequences can send. Each driver contributes
//     built-in command definitions, and users add CommandModel items that
//     describe their own commands with ordered "#N" arguments.
//
// The Manager owns every module of a project. It implements
// consequence.Dispatcher, consequence.DefinitionLookup and
// condition.Resolver, which is all the action engine needs to know about
// modules.
//
// # Drivers
//
//   - MQTT: values arrive on cuelogic/state/{module}/{value}; commands are
//     published as JSON to cuelogic/command/{module}/{command} or to the
//     topic of the command model.
//   - Virtual: in-memory values written by its own "set" and "toggle"
//     commands. Useful for show-internal flags and for tests.
//
// New module types are registered on a Factory, built once at startup and
// injected into the Manager.
package module
