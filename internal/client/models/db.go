// Package models defines the client-side data model of the QuickPage
// coordinator: the credential, chat sessions and their transcripts, and page
// content snapshots.
package models

import (
	"errors"
	"time"
)

// ErrCredentialWithoutExpiry is returned when a credential carries an id
// token but no expiry instant.
var ErrCredentialWithoutExpiry = errors.New("credential has id token but no expiry")

// Credential is the token triple of the logged-in identity plus its owner
// and absolute expiry. At most one is live per installation.
type Credential struct {
	IDToken      string
	AccessToken  string
	RefreshToken string
	OwnerEmail   string
	ExpiresAt    time.Time
}

// IsZero reports whether c holds no identity at all.
func (c Credential) IsZero() bool {
	return c.IDToken == "" && c.AccessToken == "" && c.RefreshToken == ""
}

// Validate enforces that an id token never exists without an expiry.
func (c Credential) Validate() error {
	if c.IDToken != "" && c.ExpiresAt.IsZero() {
		return ErrCredentialWithoutExpiry
	}
	return nil
}

// Profile holds the identity attributes shown in the panel header.
type Profile struct {
	GivenName  string
	FamilyName string
	Email      string
}

// Initials returns the avatar letters: given+family initials, else the
// email initial, else "U".
func (p Profile) Initials() string {
	var out []rune
	for _, s := range []string{p.GivenName, p.FamilyName} {
		if r := []rune(s); len(r) > 0 {
			out = append(out, r[0])
		}
	}
	if len(out) == 0 {
		if r := []rune(p.Email); len(r) > 0 {
			out = append(out, r[0])
		}
	}
	if len(out) == 0 {
		return "U"
	}
	return upper(string(out))
}

// PendingVerification keeps the signup credentials between signup (or an
// unconfirmed login) and a successful code confirmation. It is never
// persisted.
type PendingVerification struct {
	Email     string
	Password  string
	StartedAt time.Time
}
