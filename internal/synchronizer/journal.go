package synchronizer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/jmoiron/sqlx"
	"github.com/openmined/syftnotes/internal/db"
)

const journalSchema = `
CREATE TABLE IF NOT EXISTS sync_revisions (
    note_id TEXT PRIMARY KEY,
    last_synchronized_local INTEGER NOT NULL DEFAULT 0,
    last_known_local INTEGER NOT NULL DEFAULT 0,
    last_known_remote INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS sync_ignored (
    side TEXT NOT NULL, -- local or remote
    event_id TEXT NOT NULL,
    PRIMARY KEY (side, event_id)
);

CREATE TABLE IF NOT EXISTS sync_meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

const journalSchemaV2 = `
ALTER TABLE sync_revisions ADD COLUMN last_synchronized_remote INTEGER NOT NULL DEFAULT 0;
`

const (
	sideLocal  = "local"
	sideRemote = "remote"

	metaGeneration = "generation"
)

type dbRevisions struct {
	NoteID                 string `db:"note_id"`
	LastSynchronizedLocal  int    `db:"last_synchronized_local"`
	LastSynchronizedRemote int    `db:"last_synchronized_remote"`
	LastKnownLocal         int    `db:"last_known_local"`
	LastKnownRemote        int    `db:"last_known_remote"`
}

type dbIgnored struct {
	Side    string `db:"side"`
	EventID string `db:"event_id"`
}

var _ StateStore = (*StateJournal)(nil)

// StateJournal persists the synchronizer state in SQLite. Every Save
// rewrites the state inside a single transaction.
type StateJournal struct {
	db *sqlx.DB
}

// NewStateJournal creates the journal tables on db if needed.
func NewStateJournal(sqlDB *sqlx.DB) (*StateJournal, error) {
	if err := db.ApplySchema(context.Background(), sqlDB, "synchronizer.journal.v1", journalSchema); err != nil {
		return nil, fmt.Errorf("failed to initialize state journal schema: %w", err)
	}
	if err := db.ApplySchema(context.Background(), sqlDB, "synchronizer.journal.v2", journalSchemaV2); err != nil {
		return nil, fmt.Errorf("failed to migrate state journal schema: %w", err)
	}
	return &StateJournal{db: sqlDB}, nil
}

func (j *StateJournal) Load(ctx context.Context) (*State, error) {
	state := NewState()

	var generation string
	err := j.db.GetContext(ctx, &generation, "SELECT value FROM sync_meta WHERE key = ?", metaGeneration)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// first run
	case err != nil:
		return nil, fmt.Errorf("failed to query generation: %w", err)
	default:
		state.Generation, err = strconv.ParseUint(generation, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse generation %q: %w", generation, err)
		}
	}

	var revisions []dbRevisions
	if err := j.db.SelectContext(ctx, &revisions, "SELECT note_id, last_synchronized_local, last_synchronized_remote, last_known_local, last_known_remote FROM sync_revisions"); err != nil {
		return nil, fmt.Errorf("failed to query revisions: %w", err)
	}
	for _, r := range revisions {
		if r.LastSynchronizedLocal > 0 {
			state.LastSynchronizedLocalRevision[r.NoteID] = r.LastSynchronizedLocal
		}
		if r.LastSynchronizedRemote > 0 {
			state.LastSynchronizedRemoteRevision[r.NoteID] = r.LastSynchronizedRemote
		}
		if r.LastKnownLocal > 0 {
			state.LastKnownLocalRevision[r.NoteID] = r.LastKnownLocal
		}
		if r.LastKnownRemote > 0 {
			state.LastKnownRemoteRevision[r.NoteID] = r.LastKnownRemote
		}
	}

	var ignored []dbIgnored
	if err := j.db.SelectContext(ctx, &ignored, "SELECT side, event_id FROM sync_ignored"); err != nil {
		return nil, fmt.Errorf("failed to query ignored events: %w", err)
	}
	for _, i := range ignored {
		switch i.Side {
		case sideLocal:
			state.LocalEventIDsToIgnore.Add(i.EventID)
		case sideRemote:
			state.RemoteEventIDsToIgnore.Add(i.EventID)
		default:
			slog.Warn("state journal", "op", "load", "unknownSide", i.Side, "eventID", i.EventID)
		}
	}

	return state, nil
}

func (j *StateJournal) Save(ctx context.Context, s *State) (err error) {
	tx, err := j.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin state transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				slog.Error("state journal rollback", "error", rbErr)
			}
		}
	}()

	for _, stmt := range []string{"DELETE FROM sync_revisions", "DELETE FROM sync_ignored"} {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to clear state: %w", err)
		}
	}

	for _, r := range revisionRows(s) {
		_, err = tx.NamedExecContext(ctx, `INSERT INTO sync_revisions (note_id, last_synchronized_local, last_synchronized_remote, last_known_local, last_known_remote)
			VALUES (:note_id, :last_synchronized_local, :last_synchronized_remote, :last_known_local, :last_known_remote)`, r)
		if err != nil {
			return fmt.Errorf("failed to save revisions of %s: %w", r.NoteID, err)
		}
	}

	if err = insertIgnored(ctx, tx, sideLocal, s.LocalEventIDsToIgnore); err != nil {
		return err
	}
	if err = insertIgnored(ctx, tx, sideRemote, s.RemoteEventIDsToIgnore); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, "INSERT OR REPLACE INTO sync_meta (key, value) VALUES (?, ?)",
		metaGeneration, strconv.FormatUint(s.Generation, 10))
	if err != nil {
		return fmt.Errorf("failed to save generation: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit state: %w", err)
	}
	slog.Debug("state journal saved", "generation", s.Generation)
	return nil
}

func insertIgnored(ctx context.Context, tx *sqlx.Tx, side string, ids mapset.Set[string]) error {
	if ids == nil {
		return nil
	}
	for _, id := range ids.ToSlice() {
		if _, err := tx.ExecContext(ctx, "INSERT INTO sync_ignored (side, event_id) VALUES (?, ?)", side, id); err != nil {
			return fmt.Errorf("failed to save ignored %s event %s: %w", side, id, err)
		}
	}
	return nil
}

func revisionRows(s *State) []dbRevisions {
	rows := map[string]*dbRevisions{}
	row := func(id string) *dbRevisions {
		r, ok := rows[id]
		if !ok {
			r = &dbRevisions{NoteID: id}
			rows[id] = r
		}
		return r
	}
	for id, rev := range s.LastSynchronizedLocalRevision {
		row(id).LastSynchronizedLocal = rev
	}
	for id, rev := range s.LastSynchronizedRemoteRevision {
		row(id).LastSynchronizedRemote = rev
	}
	for id, rev := range s.LastKnownLocalRevision {
		row(id).LastKnownLocal = rev
	}
	for id, rev := range s.LastKnownRemoteRevision {
		row(id).LastKnownRemote = rev
	}

	out := make([]dbRevisions, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r)
	}
	return out
}
