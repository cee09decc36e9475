// Package cli provides the interactive MailVault command-line client.
//
// It wires configuration, the OS keyring, the HTTP API client and an
// interactive REPL. On start it restores the session saved by an earlier
// run, so a user logs in once and keeps reading mail across restarts.
//
// Commands:
//   - login / status / logout
//   - emails [top]
//   - calendar [id] [from] [to]
//   - addcal <id> <name...> / delcal <id> / usecal <id>
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
