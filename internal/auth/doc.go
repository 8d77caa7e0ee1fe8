// Package auth provides operator accounts and API tokens for Cue Logic Core.
//
// Three roles exist:
//   - viewer reads the project, actions and executions
//   - operator additionally triggers actions and roles during a show
//   - admin edits the project and modules, resets it and reads the audit log
//
// Passwords are hashed with Argon2id in PHC string format. Logins return a
// short-lived HS256 JWT that is validated by signature only; there are no
// refresh tokens, operators log in again when it expires.
//
// On first boot SeedAdmin creates an admin account when the users table is
// empty.
package auth
