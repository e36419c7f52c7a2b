// Package tokens decides whether the stored credential can be used, refreshes
// it when it is about to expire and erases it when it cannot be recovered.
//
// The in-memory copy is the authority for readers; every change is written
// through to the credential store as a full replacement. At most one refresh
// is in flight at any time: concurrent callers share its outcome.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/quickpage/internal/client/credstore"
	"github.com/dmitrijs2005/quickpage/internal/client/identity"
	"github.com/dmitrijs2005/quickpage/internal/client/models"
	"github.com/dmitrijs2005/quickpage/internal/common"
	"github.com/dmitrijs2005/quickpage/internal/logging"
	"golang.org/x/sync/singleflight"
)

// Refresher exchanges a refresh token for a new token set.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (identity.TokenSet, error)
}

// refreshTimeout bounds a refresh flight, which outlives its callers.
const refreshTimeout = 30 * time.Second

type Manager struct {
	store     credstore.Store
	refresher Refresher
	window    time.Duration
	log       logging.Logger

	mu     sync.RWMutex
	cred   models.Credential
	loaded bool
	// gen changes whenever the credential is installed or erased; a refresh
	// started under another generation must not write its result.
	gen uint64

	flight singleflight.Group
}

// NewManager returns a manager that refreshes window before expiry.
func NewManager(store credstore.Store, refresher Refresher, window time.Duration, log logging.Logger) *Manager {
	if log == nil {
		log = logging.Nop()
	}
	return &Manager{store: store, refresher: refresher, window: window, log: log}
}

// IsValid reports whether c exists and has not expired at now.
func IsValid(c models.Credential, now time.Time) bool {
	return c.IDToken != "" && !c.ExpiresAt.IsZero() && now.Before(c.ExpiresAt)
}

// Current returns the live credential, loading it from the store on first use.
func (m *Manager) Current(ctx context.Context) (models.Credential, error) {
	m.mu.RLock()
	if m.loaded {
		c := m.cred
		m.mu.RUnlock()
		return c, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loaded {
		return m.cred, nil
	}
	c, err := m.store.Load(ctx)
	if err != nil {
		return models.Credential{}, err
	}
	m.cred, m.loaded = c, true
	return c, nil
}

func (m *Manager) fresh(c models.Credential, now time.Time) bool {
	return IsValid(c, now) && now.Before(c.ExpiresAt.Add(-m.window))
}

// EnsureFresh returns an id token usable at now. A credential outside the
// refresh window is returned without any remote call. Otherwise one refresh
// is performed; if it fails, or there is nothing to refresh with, the
// credential is erased and common.ErrMustReauthenticate is returned. A caller
// whose ctx ends stops waiting, but the shared refresh carries on and an
// interrupted refresh leaves the credential in place.
func (m *Manager) EnsureFresh(ctx context.Context, now time.Time) (string, error) {
	c, err := m.Current(ctx)
	if err != nil {
		return "", err
	}
	if m.fresh(c, now) {
		return c.IDToken, nil
	}

	if c.RefreshToken == "" {
		if IsValid(c, now) {
			return c.IDToken, nil
		}
		m.log.Info(ctx, "credential expired without refresh token")
		m.erase(ctx)
		return "", common.ErrMustReauthenticate
	}

	// the flight is shared, so no single caller's cancellation may abort it
	ch := m.flight.DoChan("refresh", func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return m.refresh(fctx, now)
	})
	select {
	case r := <-ch:
		if r.Shared {
			m.log.Debug(ctx, "joined in-flight refresh")
		}
		if r.Err != nil {
			return "", r.Err
		}
		return r.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (m *Manager) generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gen
}

func (m *Manager) refresh(ctx context.Context, now time.Time) (string, error) {
	gen := m.generation()
	// a flight that finished just before this one may already have refreshed
	c, err := m.Current(ctx)
	if err != nil {
		return "", err
	}
	if m.fresh(c, now) {
		return c.IDToken, nil
	}
	if c.RefreshToken == "" {
		m.eraseIf(ctx, gen)
		return "", common.ErrMustReauthenticate
	}

	m.log.Debug(ctx, "refreshing credential", "email", c.OwnerEmail)
	ts, err := m.refresher.Refresh(ctx, c.RefreshToken)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// not a verdict on the refresh token; keep it for the next attempt
			m.log.Warn(ctx, "token refresh interrupted", "error", err)
			return "", fmt.Errorf("refresh credential: %w", err)
		}
		m.log.Warn(ctx, "token refresh failed", "error", err)
		m.eraseIf(ctx, gen)
		return "", fmt.Errorf("%w: %v", common.ErrMustReauthenticate, err)
	}

	next := credentialFrom(ts, c.OwnerEmail, now)
	if next.RefreshToken == "" {
		next.RefreshToken = c.RefreshToken
	}
	return m.commit(ctx, gen, next)
}

// Install replaces the credential after a successful login.
func (m *Manager) Install(ctx context.Context, ts identity.TokenSet, email string, now time.Time) (models.Credential, error) {
	c := credentialFrom(ts, email, now)
	if err := m.replace(ctx, c); err != nil {
		return models.Credential{}, err
	}
	m.log.Info(ctx, "logged in", "email", c.OwnerEmail)
	return c, nil
}

// AccessToken returns the stored access token or ErrMustReauthenticate.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	c, err := m.Current(ctx)
	if err != nil {
		return "", err
	}
	if c.AccessToken == "" {
		return "", common.ErrMustReauthenticate
	}
	return c.AccessToken, nil
}

// Logout erases the credential. It has no remote effect and may be called
// any number of times. A refresh in flight is not allowed to restore it.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clear(ctx)
}

// clear erases the credential and starts a new generation. m.mu must be held.
func (m *Manager) clear(ctx context.Context) error {
	m.gen++
	m.cred, m.loaded = models.Credential{}, true
	return m.store.Clear(ctx)
}

// eraseIf erases the credential unless it changed since gen.
func (m *Manager) eraseIf(ctx context.Context, gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return
	}
	if err := m.clear(ctx); err != nil {
		m.log.Error(ctx, "failed to erase credential", "error", err)
	}
}

func (m *Manager) erase(ctx context.Context) {
	if err := m.Logout(ctx); err != nil {
		m.log.Error(ctx, "failed to erase credential", "error", err)
	}
}

func (m *Manager) replace(ctx context.Context, c models.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Save(ctx, c); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	m.gen++
	m.cred, m.loaded = c, true
	return nil
}

// commit stores a refreshed credential unless a login or logout happened
// since gen, in which case the refresh result is dropped.
func (m *Manager) commit(ctx context.Context, gen uint64, c models.Credential) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		m.log.Info(ctx, "dropping refresh result, credential changed meanwhile")
		if m.cred.IDToken == "" {
			return "", common.ErrMustReauthenticate
		}
		return m.cred.IDToken, nil
	}
	if err := m.store.Save(ctx, c); err != nil {
		return "", fmt.Errorf("save credential: %w", err)
	}
	m.cred = c
	return c.IDToken, nil
}

// credentialFrom computes the absolute expiry from the token lifetime, or
// from the id token exp claim when the lifetime is missing. The email claim
// fills in an unknown owner.
func credentialFrom(ts identity.TokenSet, email string, now time.Time) models.Credential {
	c := models.Credential{
		IDToken:      ts.IDToken,
		AccessToken:  ts.AccessToken,
		RefreshToken: ts.RefreshToken,
		OwnerEmail:   email,
	}
	if ts.ExpiresIn > 0 {
		c.ExpiresAt = now.Add(ts.ExpiresIn)
	}
	if c.ExpiresAt.IsZero() || c.OwnerEmail == "" {
		if claims, err := identity.ClaimsFromIDToken(ts.IDToken); err == nil {
			if c.ExpiresAt.IsZero() {
				c.ExpiresAt = claims.ExpiresAt
			}
			if c.OwnerEmail == "" {
				c.OwnerEmail = claims.Email
			}
		}
	}
	if c.ExpiresAt.IsZero() {
		// unknown lifetime: usable now, refreshed on next use
		c.ExpiresAt = now
	}
	return c
}
