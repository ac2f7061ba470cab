package eventrepo

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/openmined/syftnotes/internal/db"
	"github.com/openmined/syftnotes/internal/note"
	"github.com/openmined/syftnotes/internal/synchronizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ synchronizer.EventRepository = (*Memory)(nil)
	_ synchronizer.EventRepository = (*SQLite)(nil)
)

func sampleEvents() []note.Event {
	return []note.Event{
		{EventID: "e1", NoteID: "n1", Revision: 1, Payload: note.Created{Path: "/", Title: "t"}},
		{EventID: "e2", NoteID: "n1", Revision: 2, Payload: note.AttachmentAdded{Name: "a", Content: []byte{1, 2}}},
		{EventID: "e3", NoteID: "n2", Revision: 4, Payload: note.Deleted{}},
	}
}

func newSQLite(t *testing.T, side Side) *SQLite {
	t.Helper()
	sqlDB, err := db.NewSqliteDb(db.WithPath(filepath.Join(t.TempDir(), "events.db")), db.WithMaxOpenConns(1))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	repo, err := NewSQLite(sqlDB, side)
	require.NoError(t, err)
	return repo
}

func TestRepositories(t *testing.T) {
	repos := map[string]func(t *testing.T) synchronizer.EventRepository{
		"memory": func(*testing.T) synchronizer.EventRepository { return NewMemory() },
		"sqlite": func(t *testing.T) synchronizer.EventRepository { return newSQLite(t, SideLocal) },
	}

	for name, factory := range repos {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := factory(t)

			for _, e := range sampleEvents() {
				require.NoError(t, repo.Add(ctx, e))
			}
			events, err := repo.Events(ctx)
			require.NoError(t, err)
			assert.Equal(t, sampleEvents(), events)

			require.NoError(t, repo.Remove(ctx, sampleEvents()[1]))
			require.NoError(t, repo.Remove(ctx, sampleEvents()[1]), "remove is idempotent")

			events, err = repo.Events(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"e1", "e3"}, note.EventIDs(events))
		})
	}
}

func TestSQLite_SidesAreIsolated(t *testing.T) {
	ctx := context.Background()
	sqlDB, err := db.NewSqliteDb(db.WithPath(filepath.Join(t.TempDir(), "events.db")))
	require.NoError(t, err)
	defer sqlDB.Close()

	local, err := NewSQLite(sqlDB, SideLocal)
	require.NoError(t, err)
	remote, err := NewSQLite(sqlDB, SideRemote)
	require.NoError(t, err)

	e := sampleEvents()[0]
	require.NoError(t, local.Add(ctx, e))
	require.NoError(t, local.Add(ctx, e))

	n, err := local.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = remote.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, remote.Remove(ctx, e))
	n, err = local.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNewSQLite_InvalidSide(t *testing.T) {
	sqlDB, err := db.NewSqliteDb()
	require.NoError(t, err)
	defer sqlDB.Close()

	_, err = NewSQLite(sqlDB, Side("middle"))
	assert.Error(t, err)
}
