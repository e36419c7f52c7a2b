// Package identity talks to the identity provider that issues QuickPage
// credentials. The provider is opaque to the rest of the client: it accepts
// an email and password (or a refresh token) and returns a token set with a
// lifetime.
package identity

import (
	"context"
	"time"
)

// TokenSet is what a successful authentication or refresh returns.
// RefreshToken is empty when the provider did not rotate it.
type TokenSet struct {
	IDToken      string
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

type SignUpInput struct {
	Email      string
	Password   string
	GivenName  string
	FamilyName string
}

// Provider is the set of identity operations the client uses.
type Provider interface {
	SignUp(ctx context.Context, in SignUpInput) error
	ConfirmSignUp(ctx context.Context, email, code string) error
	ResendConfirmationCode(ctx context.Context, email string) error
	Login(ctx context.Context, email, password string) (TokenSet, error)
	Refresh(ctx context.Context, refreshToken string) (TokenSet, error)
	GetUser(ctx context.Context, accessToken string) (map[string]string, error)
	DeleteUser(ctx context.Context, accessToken string) error
}
