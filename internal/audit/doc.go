// Package audit records changes made to the running project through the
// API: actions created, renamed or removed, modules added, projects
// replaced or reset, roles triggered.
//
// Entries live in the audit_logs table of the SQLite project database.
// Recording is best-effort; callers log failures and carry on.
package audit
