// Package metadata is a small key/value store over one SQLite table. The
// credential store and the preference store are both instances of it.
package metadata

import (
	"context"
)

// Table names created by the embedded migrations.
const (
	TableCredentials = "credentials"
	TablePreferences = "preferences"
)

type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
}
