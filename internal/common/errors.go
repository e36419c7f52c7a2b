// Package common defines shared constants and sentinel errors used across
// QuickPage layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// ErrMustReauthenticate is returned whenever the credential is missing,
	// expired without a usable refresh token, rejected by a refresh, or
	// reported invalid by a backend. The credential store is already empty
	// when a caller sees it.
	ErrMustReauthenticate = errors.New("must re-authenticate")

	// Repository-level errors.
	ErrNotFound = errors.New("not found")
)
