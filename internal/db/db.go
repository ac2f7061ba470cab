// Package db opens the SQLite databases of the note server and client.
package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/syftnotes/internal/utils"
)

const memoryPath = ":memory:"

// busy_timeout lets the cli write to a log the daemon holds open
const defaultPragma = `
PRAGMA journal_mode=WAL;
PRAGMA busy_timeout=5000;
PRAGMA foreign_keys=ON;
PRAGMA temp_store=MEMORY;
PRAGMA cache_size=8000;
PRAGMA mmap_size=268435456;
`

const schemaTable = `
CREATE TABLE IF NOT EXISTS schema_versions (
	name       TEXT PRIMARY KEY,
	applied_at TIMESTAMP NOT NULL
);`

type config struct {
	path            string
	pragmas         string
	maxOpenConns    int
	maxIdleConns    int
	connMaxLifetime time.Duration
}

type SqliteOption func(*config)

// WithPath sets the database file, ":memory:" by default.
func WithPath(path string) SqliteOption {
	return func(c *config) {
		c.path = path
	}
}

// WithPragmas replaces the default pragmas.
func WithPragmas(pragmas string) SqliteOption {
	return func(c *config) {
		c.pragmas = pragmas
	}
}

// WithMaxOpenConns limits the pool. In-memory databases need 1, every
// connection would otherwise see its own database.
func WithMaxOpenConns(n int) SqliteOption {
	return func(c *config) {
		c.maxOpenConns = n
	}
}

func WithMaxIdleConns(n int) SqliteOption {
	return func(c *config) {
		c.maxIdleConns = n
	}
}

func WithConnMaxLifetime(d time.Duration) SqliteOption {
	return func(c *config) {
		c.connMaxLifetime = d
	}
}

func NewSqliteDb(opts ...SqliteOption) (*sqlx.DB, error) {
	cfg := &config{
		path:         memoryPath,
		pragmas:      defaultPragma,
		maxIdleConns: 2,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	dsn := memoryPath
	if cfg.path != memoryPath {
		if err := utils.EnsureParent(cfg.path); err != nil {
			return nil, fmt.Errorf("ensure parent directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_txlock=immediate&mode=rwc", cfg.path)
	}

	slog.Debug("db open", "driver", driverID, "path", cfg.path)
	db, err := sqlx.Connect(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if cfg.maxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.maxOpenConns)
	}
	if cfg.maxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.maxIdleConns)
	}
	if cfg.connMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.connMaxLifetime)
	}

	if _, err := db.Exec(cfg.pragmas); err != nil {
		db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}

	return db, nil
}

// ApplySchema runs ddl once per database under name. The ddl and its
// bookkeeping row commit together, so a failed schema is retried on the
// next open.
func ApplySchema(ctx context.Context, db *sqlx.DB, name string, ddl string) error {
	if _, err := db.ExecContext(ctx, schemaTable); err != nil {
		return fmt.Errorf("schema versions: %w", err)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var applied int
	if err := tx.GetContext(ctx, &applied, `SELECT COUNT(*) FROM schema_versions WHERE name = ?`, name); err != nil {
		return fmt.Errorf("schema %s: %w", name, err)
	}
	if applied > 0 {
		return nil
	}

	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("schema %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_versions (name, applied_at) VALUES (?, ?)`, name, time.Now().UTC()); err != nil {
		return fmt.Errorf("schema %s: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Debug("db schema applied", "name", name)
	return nil
}
