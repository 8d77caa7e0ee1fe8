// Package migrations embeds the SQLite schema: projects, executions, the
// audit trail and operator accounts.
//
// Pass FS to database.DB.Migrate; the files sit at the root of the FS.
package migrations

import "embed"

// FS holds every migration file.
//
//go:embed *.sql
var FS embed.FS
