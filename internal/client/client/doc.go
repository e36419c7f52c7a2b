// Package client bootstraps local persistence for the QuickPage coordinator.
//
// InitDatabase opens the SQLite file, applies the embedded goose migrations
// and returns the handle; NewRepositories binds the credential and
// preference key/value stores to it.
package client
