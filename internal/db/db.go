package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	// Registers "libsql" for remote URLs (libsql://, https://, wss://).
	_ "github.com/tursodatabase/libsql-client-go/libsql"

	// Registers "sqlite" (pure Go) for local file: URLs.
	_ "modernc.org/sqlite"
)

// Driver names per URL scheme. Package-level so tests can break them.
var (
	localDriver  = "sqlite"
	remoteDriver = "libsql"
)

func init() {
	sqlx.BindDriver(localDriver, sqlx.QUESTION)
	sqlx.BindDriver(remoteDriver, sqlx.QUESTION)
}

// driverFor picks the driver for dbURL. Local paths without a scheme are
// treated as files.
func driverFor(dbURL string) (driver, dsn string) {
	switch {
	case strings.HasPrefix(dbURL, "file:"):
		return localDriver, strings.TrimPrefix(dbURL, "file:")
	case strings.Contains(dbURL, "://"):
		return remoteDriver, dbURL
	default:
		return localDriver, dbURL
	}
}

// Connect opens the journal database and verifies it with a ping.
//
// Supported URLs:
//
//	Local file:   "file:billtool.db" or "billtool.db"
//	In memory:    "file::memory:"
//	Remote Turso: "libsql://[db-name].turso.io?authToken=[token]"
func Connect(ctx context.Context, dbURL string) (*sqlx.DB, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("database URL must not be empty")
	}
	driver, dsn := driverFor(dbURL)

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", driver, err)
	}
	if driver == localDriver {
		// SQLite allows one writer; serialising on one connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Migrate runs each statement in order inside one transaction. Statements
// must be idempotent (CREATE ... IF NOT EXISTS).
func Migrate(ctx context.Context, db *sqlx.DB, stmts ...string) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	for i, s := range stmts {
		if _, err := tx.ExecContext(ctx, s); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}
