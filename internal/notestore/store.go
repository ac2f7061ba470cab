// Package notestore is the event log of notes on one replica, backed by
// SQLite. It executes commands and projects notes from the stored events.
package notestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jmoiron/sqlx"
	"github.com/openmined/syftnotes/internal/command"
	"github.com/openmined/syftnotes/internal/db"
	"github.com/openmined/syftnotes/internal/note"
)

const schema = `
CREATE TABLE IF NOT EXISTS note_events (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    event_id TEXT NOT NULL UNIQUE,
    note_id TEXT NOT NULL,
    revision INTEGER NOT NULL,
    type TEXT NOT NULL,
    data BLOB NOT NULL,
    created_at TEXT NOT NULL, -- RFC3339
    UNIQUE (note_id, revision)
);

CREATE INDEX IF NOT EXISTS idx_note_events_note ON note_events(note_id, revision);
`

const (
	defaultCacheSize = 1024
	defaultCacheTTL  = 10 * time.Minute
)

var ErrNoteNotFound = errors.New("note not found")

// StoredEvent is an event with its position in the log.
type StoredEvent struct {
	Seq       int64
	CreatedAt time.Time
	note.Event
}

type dbEvent struct {
	Seq       int64  `db:"seq"`
	EventID   string `db:"event_id"`
	NoteID    string `db:"note_id"`
	Revision  int    `db:"revision"`
	Type      string `db:"type"`
	Data      []byte `db:"data"`
	CreatedAt string `db:"created_at"`
}

func (row dbEvent) decode() (StoredEvent, error) {
	p, err := note.DecodePayload(note.EventType(row.Type), row.Data)
	if err != nil {
		return StoredEvent{}, fmt.Errorf("failed to decode event %s: %w", row.EventID, err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, row.CreatedAt)
	if err != nil {
		return StoredEvent{}, fmt.Errorf("failed to parse timestamp of event %s: %w", row.EventID, err)
	}
	return StoredEvent{
		Seq:       row.Seq,
		CreatedAt: createdAt,
		Event: note.Event{
			EventID:  row.EventID,
			NoteID:   row.NoteID,
			Revision: row.Revision,
			Payload:  p,
		},
	}, nil
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator replaces the event id generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) {
		s.newID = newID
	}
}

// WithCache sets the size and ttl of the projection cache.
func WithCache(size int, ttl time.Duration) Option {
	return func(s *Store) {
		s.cache = expirable.NewLRU[string, note.Note](size, nil, ttl)
	}
}

var _ command.Executor = (*Store)(nil)

// Store is a note event log.
type Store struct {
	db    *sqlx.DB
	newID func() string
	cache *expirable.LRU[string, note.Note]
	// serializes writers of this process; sqlite serializes across processes
	muWrite sync.Mutex
}

// New creates the log tables on db if needed.
func New(sqlDB *sqlx.DB, opts ...Option) (*Store, error) {
	if err := db.ApplySchema(context.Background(), sqlDB, "notestore.v1", schema); err != nil {
		return nil, fmt.Errorf("failed to initialize note store schema: %w", err)
	}
	s := &Store{
		db:    sqlDB,
		newID: uuid.NewString,
		cache: expirable.NewLRU[string, note.Note](defaultCacheSize, nil, defaultCacheTTL),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Execute applies cmd to the current state of its note and appends the
// produced event. A command that changes nothing appends nothing.
func (s *Store) Execute(ctx context.Context, cmd command.Command) (*command.Result, error) {
	s.muWrite.Lock()
	defer s.muWrite.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	noteID := command.TargetOf(cmd).NoteID
	current, err := s.project(ctx, tx, noteID, -1)
	if err != nil {
		return nil, err
	}

	next, applied, err := command.Apply(current, cmd, s.newID())
	if err != nil {
		return nil, err
	}
	if applied == nil {
		slog.Debug("note store", "op", "execute", "note", noteID, "kind", cmd.Kind(), "result", "noop")
		return &command.Result{}, nil
	}

	data, err := note.EncodePayload(applied.Payload)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO note_events (event_id, note_id, revision, type, data, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		applied.EventID, applied.NoteID, applied.Revision, string(applied.Type()), data, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("failed to append event to %s: %w", noteID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit event to %s: %w", noteID, err)
	}

	s.cache.Add(noteID, next)
	slog.Debug("note store", "op", "execute", "note", noteID, "kind", cmd.Kind(), "revision", applied.Revision)
	return &command.Result{Event: applied}, nil
}

// Note returns the current projection of a note. A note without events is
// returned at revision 0.
func (s *Store) Note(ctx context.Context, noteID string) (note.Note, error) {
	if n, ok := s.cache.Get(noteID); ok {
		// other processes may have appended to the log
		var latest int
		err := s.db.GetContext(ctx, &latest, "SELECT COALESCE(MAX(revision), 0) FROM note_events WHERE note_id = ?", noteID)
		if err != nil {
			return note.Note{}, fmt.Errorf("failed to query revision of %s: %w", noteID, err)
		}
		if latest == n.Revision {
			return n, nil
		}
	}
	n, err := s.project(ctx, s.db, noteID, -1)
	if err != nil {
		return note.Note{}, err
	}
	s.cache.Add(noteID, n)
	return n, nil
}

// Get is Note for notes that must have been created.
func (s *Store) Get(ctx context.Context, noteID string) (note.Note, error) {
	n, err := s.Note(ctx, noteID)
	if err != nil {
		return note.Note{}, err
	}
	if n.Existence() == note.NotYetCreated {
		return note.Note{}, fmt.Errorf("%w: %s", ErrNoteNotFound, noteID)
	}
	return n, nil
}

// NoteAt projects a note up to and including revision.
func (s *Store) NoteAt(ctx context.Context, noteID string, revision int) (note.Note, error) {
	if revision < 0 {
		return note.Note{}, fmt.Errorf("invalid revision %d", revision)
	}
	return s.project(ctx, s.db, noteID, revision)
}

// Notes returns the current projection of every note, sorted by id.
func (s *Store) Notes(ctx context.Context) ([]note.Note, error) {
	var ids []string
	if err := s.db.SelectContext(ctx, &ids, "SELECT DISTINCT note_id FROM note_events ORDER BY note_id"); err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	notes := make([]note.Note, 0, len(ids))
	for _, id := range ids {
		n, err := s.Note(ctx, id)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, nil
}

// Events returns the events of a note in revision order.
func (s *Store) Events(ctx context.Context, noteID string) ([]StoredEvent, error) {
	var rows []dbEvent
	err := s.db.SelectContext(ctx, &rows,
		"SELECT seq, event_id, note_id, revision, type, data, created_at FROM note_events WHERE note_id = ? ORDER BY revision", noteID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events of %s: %w", noteID, err)
	}
	return decodeAll(rows)
}

// EventsSince returns up to limit events appended after seq, oldest first.
func (s *Store) EventsSince(ctx context.Context, seq int64, limit int) ([]StoredEvent, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("invalid limit %d", limit)
	}
	var rows []dbEvent
	err := s.db.SelectContext(ctx, &rows,
		"SELECT seq, event_id, note_id, revision, type, data, created_at FROM note_events WHERE seq > ? ORDER BY seq LIMIT ?", seq, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events since %d: %w", seq, err)
	}
	return decodeAll(rows)
}

func (s *Store) project(ctx context.Context, q sqlx.QueryerContext, noteID string, revision int) (note.Note, error) {
	query := "SELECT seq, event_id, note_id, revision, type, data, created_at FROM note_events WHERE note_id = ? ORDER BY revision"
	args := []any{noteID}
	if revision >= 0 {
		query = "SELECT seq, event_id, note_id, revision, type, data, created_at FROM note_events WHERE note_id = ? AND revision <= ? ORDER BY revision"
		args = append(args, revision)
	}

	var rows []dbEvent
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return note.Note{}, fmt.Errorf("failed to query events of %s: %w", noteID, err)
	}
	stored, err := decodeAll(rows)
	if err != nil {
		return note.Note{}, err
	}

	events := make([]note.Event, len(stored))
	for i, e := range stored {
		events[i] = e.Event
	}
	n, err := note.Fold(note.Empty(noteID), events)
	if err != nil {
		return note.Note{}, fmt.Errorf("corrupt log for note %s: %w", noteID, err)
	}
	return n, nil
}

func decodeAll(rows []dbEvent) ([]StoredEvent, error) {
	out := make([]StoredEvent, 0, len(rows))
	for _, row := range rows {
		e, err := row.decode()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
