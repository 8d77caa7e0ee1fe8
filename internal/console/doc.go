// Package console serves the operator console: a small web page that lists
// the actions of the running project, triggers them and roles, and shows
// engine events live over the WebSocket.
//
// The assets are embedded with go:embed. A directory on disk can replace
// them during development. Unknown paths fall back to index.html.
package console
