// Package api serves the engine over HTTP and WebSocket.
//
// REST routes under /api/v1 read and edit the project, its actions and
// modules, fire triggers and roles, and manage operator accounts. /ws
// streams engine events (action.*, item.*) numbered per client and
// accepts trigger and role commands. /metrics exposes the Prometheus
// registry and /console/ the embedded operator console.
//
// With auth enabled every route except /health and /auth/login needs a
// bearer token whose role grants the route's permission. Mutations land
// in the audit trail.
//
// Routes whose backend is absent (no SQLite for audit and users, no
// execution log) answer 503.
package api
