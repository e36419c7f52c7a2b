// Package credstore persists the single live credential of an installation.
//
// The five keys (authToken, accessToken, refreshToken, userEmail,
// tokenExpiry) are always written and erased together inside one
// transaction, so a reader never observes a token paired with another
// token's expiry.
package credstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/quickpage/internal/client/models"
	"github.com/dmitrijs2005/quickpage/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/quickpage/internal/common"
	"github.com/dmitrijs2005/quickpage/internal/dbx"
)

// Store is the durable holder of the credential.
type Store interface {
	Load(ctx context.Context) (models.Credential, error)
	Save(ctx context.Context, c models.Credential) error
	Clear(ctx context.Context) error
}

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Load returns a zero credential on a fresh install. Missing or unparsable
// keys are treated as absent.
func (s *SQLiteStore) Load(ctx context.Context) (models.Credential, error) {
	repo := metadata.NewSQLiteRepository(s.db, metadata.TableCredentials)
	kv, err := repo.List(ctx)
	if err != nil {
		return models.Credential{}, fmt.Errorf("load credential: %w", err)
	}

	c := models.Credential{
		IDToken:      string(kv[common.KeyAuthToken]),
		AccessToken:  string(kv[common.KeyAccessToken]),
		RefreshToken: string(kv[common.KeyRefreshToken]),
		OwnerEmail:   string(kv[common.KeyUserEmail]),
	}
	if raw := kv[common.KeyTokenExpiry]; len(raw) > 0 {
		if ms, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
			c.ExpiresAt = time.UnixMilli(ms)
		}
	}
	if c.Validate() != nil {
		// an id token without expiry cannot be trusted
		c.IDToken = ""
	}
	return c, nil
}

// Save replaces every credential key atomically. Empty fields are stored as
// deletions so a partial credential never leaves stale siblings behind.
func (s *SQLiteStore) Save(ctx context.Context, c models.Credential) error {
	if err := c.Validate(); err != nil {
		return err
	}
	values := map[string]string{
		common.KeyAuthToken:    c.IDToken,
		common.KeyAccessToken:  c.AccessToken,
		common.KeyRefreshToken: c.RefreshToken,
		common.KeyUserEmail:    c.OwnerEmail,
	}
	if !c.ExpiresAt.IsZero() {
		values[common.KeyTokenExpiry] = strconv.FormatInt(c.ExpiresAt.UnixMilli(), 10)
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx, metadata.TableCredentials)
		for _, key := range common.CredentialKeys {
			v := values[key]
			if v == "" {
				if err := repo.Delete(ctx, key); err != nil {
					return err
				}
				continue
			}
			if err := repo.Set(ctx, key, []byte(v)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Clear erases the credential. Clearing an empty store is a no-op.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx, metadata.TableCredentials)
		for _, key := range common.CredentialKeys {
			if err := repo.Delete(ctx, key); err != nil {
				return err
			}
		}
		return nil
	})
}
