// Package cli provides the interactive Peny command-line client.
//
// It wires configuration, the on-disk session and the HTTP API client into a
// small REPL. The session survives restarts: a user who logged in once stays
// logged in until the refresh token is rejected or they log out.
//
// Commands:
//   - register, login, logout, refresh
//   - me: show the current profile
//   - users [page] [search]: list accounts
//   - show <id>, adduser, delete <id>
//   - photo <path>: upload a profile photo
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
