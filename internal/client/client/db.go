package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/quickpage/internal/client/migrations"
	"github.com/dmitrijs2005/quickpage/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/quickpage/internal/filex"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// Repositories bundles the two key/value stores of the local database.
type Repositories struct {
	DB          *sql.DB
	Credentials metadata.Repository
	Preferences metadata.Repository
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// InitDatabase opens the SQLite file at dsn and migrates it.
func InitDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	if filex.IsFilePath(dsn) {
		if _, err := filex.EnsureParentDir(dsn); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// one writer keeps credential replacement serialized
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		DB:          db,
		Credentials: metadata.NewSQLiteRepository(db, metadata.TableCredentials),
		Preferences: metadata.NewSQLiteRepository(db, metadata.TablePreferences),
	}
}
