package synchronizer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/openmined/syftnotes/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJournal(t *testing.T) *StateJournal {
	t.Helper()
	sqlDB, err := db.NewSqliteDb(db.WithPath(filepath.Join(t.TempDir(), "state.db")), db.WithMaxOpenConns(1))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	journal, err := NewStateJournal(sqlDB)
	require.NoError(t, err)
	return journal
}

func TestStateJournal_EmptyOnFirstRun(t *testing.T) {
	journal := newJournal(t)

	st, err := journal.Load(context.Background())
	require.NoError(t, err)
	assert.Zero(t, st.Generation)
	assert.Empty(t, st.LastKnownLocalRevision)
	assert.Zero(t, st.LocalEventIDsToIgnore.Cardinality())
}

func TestStateJournal_RoundTrip(t *testing.T) {
	ctx := context.Background()
	journal := newJournal(t)

	st := NewState()
	st.Generation = 7
	st.LastSynchronizedLocalRevision["n1"] = 2
	st.LastSynchronizedRemoteRevision["n2"] = 1
	st.LastKnownLocalRevision["n1"] = 3
	st.LastKnownRemoteRevision["n1"] = 4
	st.LastKnownRemoteRevision["n2"] = 1
	st.LocalEventIDsToIgnore.Add("l1")
	st.RemoteEventIDsToIgnore.Append("r1", "r2")
	require.NoError(t, journal.Save(ctx, st))

	loaded, err := journal.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), loaded.Generation)
	assert.Equal(t, st.LastSynchronizedLocalRevision, loaded.LastSynchronizedLocalRevision)
	assert.Equal(t, st.LastSynchronizedRemoteRevision, loaded.LastSynchronizedRemoteRevision)
	assert.Equal(t, st.LastKnownLocalRevision, loaded.LastKnownLocalRevision)
	assert.Equal(t, st.LastKnownRemoteRevision, loaded.LastKnownRemoteRevision)
	assert.True(t, st.LocalEventIDsToIgnore.Equal(loaded.LocalEventIDsToIgnore))
	assert.True(t, st.RemoteEventIDsToIgnore.Equal(loaded.RemoteEventIDsToIgnore))

	// saving replaces the previous value entirely
	next := loaded.next()
	next.RemoteEventIDsToIgnore.Remove("r1")
	delete(next.LastKnownRemoteRevision, "n2")
	require.NoError(t, journal.Save(ctx, next))

	loaded, err = journal.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), loaded.Generation)
	assert.Equal(t, []string{"r2"}, loaded.RemoteEventIDsToIgnore.ToSlice())
	assert.Equal(t, map[string]int{"n1": 4}, loaded.LastKnownRemoteRevision)
}

func TestState_CloneIsDeep(t *testing.T) {
	st := NewState()
	st.LastKnownLocalRevision["n1"] = 1
	st.LocalEventIDsToIgnore.Add("a")

	c := st.Clone()
	c.LastKnownLocalRevision["n1"] = 5
	c.LocalEventIDsToIgnore.Add("b")

	assert.Equal(t, 1, st.LastKnownLocalRevision["n1"])
	assert.False(t, st.LocalEventIDsToIgnore.Contains("b"))
	assert.Equal(t, st.Generation+1, st.next().Generation)
}
