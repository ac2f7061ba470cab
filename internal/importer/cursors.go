package importer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/syftnotes/internal/db"
)

const schema = `
CREATE TABLE IF NOT EXISTS import_cursors (
    name TEXT PRIMARY KEY,
    seq INTEGER NOT NULL
);
`

var _ CursorStore = (*SQLiteCursors)(nil)

// SQLiteCursors keeps cursors in SQLite.
type SQLiteCursors struct {
	db *sqlx.DB
}

func NewSQLiteCursors(sqlDB *sqlx.DB) (*SQLiteCursors, error) {
	if err := db.ApplySchema(context.Background(), sqlDB, "importer.cursors.v1", schema); err != nil {
		return nil, fmt.Errorf("failed to initialize cursor schema: %w", err)
	}
	return &SQLiteCursors{db: sqlDB}, nil
}

func (c *SQLiteCursors) Cursor(ctx context.Context, name string) (int64, error) {
	var seq int64
	err := c.db.GetContext(ctx, &seq, "SELECT seq FROM import_cursors WHERE name = ?", name)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query cursor %s: %w", name, err)
	}
	return seq, nil
}

func (c *SQLiteCursors) SetCursor(ctx context.Context, name string, seq int64) error {
	_, err := c.db.ExecContext(ctx, "INSERT OR REPLACE INTO import_cursors (name, seq) VALUES (?, ?)", name, seq)
	if err != nil {
		return fmt.Errorf("failed to save cursor %s: %w", name, err)
	}
	return nil
}

var _ CursorStore = (*MemoryCursors)(nil)

// MemoryCursors keeps cursors in memory.
type MemoryCursors struct {
	mu      sync.Mutex
	cursors map[string]int64
}

func NewMemoryCursors() *MemoryCursors {
	return &MemoryCursors{cursors: map[string]int64{}}
}

func (c *MemoryCursors) Cursor(_ context.Context, name string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursors[name], nil
}

func (c *MemoryCursors) SetCursor(_ context.Context, name string, seq int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cursors[name] = seq
	return nil
}
