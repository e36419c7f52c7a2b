// Package cli provides the interactive QuickPage command line, which stands
// in for the browser side panel.
//
// It wires configuration, the local store, the identity provider, the chat
// backend and the extension bridge, then runs a REPL that accepts account
// commands, session commands and free-form questions about the active page.
//
// Key features:
//   - Signup with email verification, login, logout, account deletion
//   - New / list / load / delete chat sessions
//   - Questions about the page reported by the extension or opened with "open"
//   - Answers streamed word by word
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// Whenever the backend or the identity provider rejects the credential the
// user is sent back to the login prompt.
package cli
