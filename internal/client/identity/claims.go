package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the id token fields the client reads.
type Claims struct {
	Email     string
	ExpiresAt time.Time
}

// ClaimsFromIDToken decodes the id token payload without verifying its
// signature. Tokens are opaque to the client; this only recovers the email
// and expiry when the provider response lacks them.
func ClaimsFromIDToken(token string) (Claims, error) {
	var mc jwt.MapClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &mc); err != nil {
		return Claims{}, fmt.Errorf("parse id token: %w", err)
	}

	var c Claims
	if email, ok := mc["email"].(string); ok {
		c.Email = email
	}
	exp, err := mc.GetExpirationTime()
	if err != nil {
		return Claims{}, fmt.Errorf("read exp claim: %w", err)
	}
	if exp != nil {
		c.ExpiresAt = exp.Time
	}
	return c, nil
}
