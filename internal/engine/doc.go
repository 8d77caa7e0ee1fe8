// Package engine wires a project to the outside world.
//
// The engine owns the running project and fans its events out:
//
//   - action executions go to the project store's execution log, InfluxDB,
//     Prometheus and the WebSocket hub
//   - action events (enabled, role, validation) go to the hub, InfluxDB and
//     the MQTT event topics
//   - item additions and removals go to the hub and the item gauges
//   - module value changes go to InfluxDB
//
// Lifecycle:
//
//	eng, err := engine.New(deps)
//	eng.Start(ctx)     // load the stored project, start modules, autosave
//	defer eng.Stop(ctx) // save, stop modules, clear the project
//
// Every sink except the project store is optional.
package engine
