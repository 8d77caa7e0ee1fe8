// Package influxdb records show history in an InfluxDB v2 bucket.
//
// Three measurements are written, each tagged with the site and project
// passed to WithTags:
//   - action_executions: one point per fired consequence set
//   - action_validation: one point per validation state change
//   - module_values: numeric and bool module values
//
// Writes are batched by the influxdb-client-go write API and never block.
// Failed batches are logged and counted (see WriteErrors). A nil client is
// valid and drops everything, so the engine holds an optional *Client.
package influxdb
