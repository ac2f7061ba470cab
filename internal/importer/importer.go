// Package importer feeds the pending event repositories from the note logs.
package importer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openmined/syftnotes/internal/note"
	"github.com/openmined/syftnotes/internal/notestore"
	"github.com/openmined/syftnotes/internal/synchronizer"
)

const defaultBatchSize = 200

// Entry is an event at a position of a log.
type Entry struct {
	Seq   int64
	Event note.Event
}

// Source reads a log in append order.
type Source interface {
	EntriesSince(ctx context.Context, seq int64, limit int) ([]Entry, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, seq int64, limit int) ([]Entry, error)

func (f SourceFunc) EntriesSince(ctx context.Context, seq int64, limit int) ([]Entry, error) {
	return f(ctx, seq, limit)
}

// StoreSource reads a local note store.
func StoreSource(store *notestore.Store) Source {
	return SourceFunc(func(ctx context.Context, seq int64, limit int) ([]Entry, error) {
		events, err := store.EventsSince(ctx, seq, limit)
		if err != nil {
			return nil, err
		}
		entries := make([]Entry, len(events))
		for i, e := range events {
			entries[i] = Entry{Seq: e.Seq, Event: e.Event}
		}
		return entries, nil
	})
}

// CursorStore remembers how far each importer has read.
type CursorStore interface {
	Cursor(ctx context.Context, name string) (int64, error)
	SetCursor(ctx context.Context, name string, seq int64) error
}

// Importer copies new log events into a repository. Every event is
// delivered at least once; the repository dedups by event id.
type Importer struct {
	name    string
	source  Source
	repo    synchronizer.EventRepository
	cursors CursorStore
	batch   int
}

func New(name string, source Source, repo synchronizer.EventRepository, cursors CursorStore) *Importer {
	return &Importer{
		name:    name,
		source:  source,
		repo:    repo,
		cursors: cursors,
		batch:   defaultBatchSize,
	}
}

// WithBatchSize returns the importer reading pages of n entries.
func (im *Importer) WithBatchSize(n int) *Importer {
	if n > 0 {
		im.batch = n
	}
	return im
}

func (im *Importer) Name() string {
	return im.name
}

// Import reads everything appended since the last call and returns the
// number of imported events.
func (im *Importer) Import(ctx context.Context) (int, error) {
	cursor, err := im.cursors.Cursor(ctx, im.name)
	if err != nil {
		return 0, fmt.Errorf("import %s: %w", im.name, err)
	}

	imported := 0
	for {
		entries, err := im.source.EntriesSince(ctx, cursor, im.batch)
		if err != nil {
			return imported, fmt.Errorf("import %s: read after %d: %w", im.name, cursor, err)
		}

		for _, entry := range entries {
			if err := im.repo.Add(ctx, entry.Event); err != nil {
				return imported, fmt.Errorf("import %s: add %s: %w", im.name, entry.Event.EventID, err)
			}
			if err := im.cursors.SetCursor(ctx, im.name, entry.Seq); err != nil {
				return imported, fmt.Errorf("import %s: %w", im.name, err)
			}
			cursor = entry.Seq
			imported++
		}

		if len(entries) < im.batch {
			break
		}
	}

	if imported > 0 {
		slog.Debug("import", "source", im.name, "events", imported, "cursor", cursor)
	}
	return imported, nil
}
