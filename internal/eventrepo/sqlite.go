package eventrepo

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/syftnotes/internal/db"
	"github.com/openmined/syftnotes/internal/note"
)

const schema = `
CREATE TABLE IF NOT EXISTS pending_events (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    side TEXT NOT NULL,
    event_id TEXT NOT NULL,
    note_id TEXT NOT NULL,
    revision INTEGER NOT NULL,
    type TEXT NOT NULL,
    data BLOB NOT NULL,
    UNIQUE (side, event_id)
);

CREATE INDEX IF NOT EXISTS idx_pending_side ON pending_events(side, seq);
`

// Side names the log a repository holds events of.
type Side string

const (
	SideLocal  Side = "local"
	SideRemote Side = "remote"
)

type dbEvent struct {
	EventID  string `db:"event_id"`
	NoteID   string `db:"note_id"`
	Revision int    `db:"revision"`
	Type     string `db:"type"`
	Data     []byte `db:"data"`
}

// SQLite keeps the pending events of one side in a shared database.
type SQLite struct {
	db   *sqlx.DB
	side Side
}

// NewSQLite creates the repository table on db if needed.
func NewSQLite(sqlDB *sqlx.DB, side Side) (*SQLite, error) {
	if side != SideLocal && side != SideRemote {
		return nil, fmt.Errorf("invalid side %q", side)
	}
	if err := db.ApplySchema(context.Background(), sqlDB, "eventrepo.v1", schema); err != nil {
		return nil, fmt.Errorf("failed to initialize event repository schema: %w", err)
	}
	return &SQLite{db: sqlDB, side: side}, nil
}

func (r *SQLite) Side() Side {
	return r.side
}

func (r *SQLite) Events(ctx context.Context) ([]note.Event, error) {
	var rows []dbEvent
	err := r.db.SelectContext(ctx, &rows,
		"SELECT event_id, note_id, revision, type, data FROM pending_events WHERE side = ? ORDER BY seq", string(r.side))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s events: %w", r.side, err)
	}

	events := make([]note.Event, 0, len(rows))
	for _, row := range rows {
		p, err := note.DecodePayload(note.EventType(row.Type), row.Data)
		if err != nil {
			slog.Error("event repository", "side", r.side, "event", row.EventID, "error", err)
			return nil, fmt.Errorf("failed to decode %s event %s: %w", r.side, row.EventID, err)
		}
		events = append(events, note.Event{
			EventID:  row.EventID,
			NoteID:   row.NoteID,
			Revision: row.Revision,
			Payload:  p,
		})
	}
	return events, nil
}

// Add stores e. Adding an event id twice keeps the first copy.
func (r *SQLite) Add(ctx context.Context, e note.Event) error {
	data, err := note.EncodePayload(e.Payload)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO pending_events (side, event_id, note_id, revision, type, data) VALUES (?, ?, ?, ?, ?, ?)`,
		string(r.side), e.EventID, e.NoteID, e.Revision, string(e.Type()), data)
	if err != nil {
		return fmt.Errorf("failed to add %s event %s: %w", r.side, e.EventID, err)
	}
	return nil
}

func (r *SQLite) Remove(ctx context.Context, e note.Event) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM pending_events WHERE side = ? AND event_id = ?", string(r.side), e.EventID)
	if err != nil {
		return fmt.Errorf("failed to remove %s event %s: %w", r.side, e.EventID, err)
	}
	return nil
}

// Count returns the number of pending events.
func (r *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM pending_events WHERE side = ?", string(r.side)); err != nil {
		return 0, fmt.Errorf("failed to count %s events: %w", r.side, err)
	}
	return n, nil
}
