package client

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/openmined/syftnotes/internal/client/config"
	"github.com/openmined/syftnotes/internal/command"
	"github.com/openmined/syftnotes/internal/merge"
	"github.com/openmined/syftnotes/internal/note"
	"github.com/openmined/syftnotes/internal/notesdk"
	"github.com/openmined/syftnotes/internal/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNoteServer(t *testing.T) (string, *notesdk.Client) {
	t.Helper()
	srv, err := server.New(&server.Config{
		HTTP:   server.HTTPConfig{Addr: "127.0.0.1:0"},
		DbPath: filepath.Join(t.TempDir(), "server.db"),
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	sdk, err := notesdk.New(ts.URL, notesdk.WithRetry(0, 0), notesdk.WithTimeout(5*time.Second))
	require.NoError(t, err)
	return ts.URL, sdk
}

func newTestClient(t *testing.T, serverURL string, strategy merge.Name) *Client {
	t.Helper()
	c, err := New(&config.Config{
		DataDir:       t.TempDir(),
		ServerURL:     serverURL,
		MergeStrategy: strategy,
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNew_LocksDataDir(t *testing.T) {
	dir := t.TempDir()
	cfg := func() *config.Config {
		return &config.Config{DataDir: dir, ServerURL: "http://127.0.0.1:1"}
	}

	c, err := New(cfg())
	require.NoError(t, err)

	_, err = New(cfg())
	assert.ErrorIs(t, err, ErrDataDirLocked)

	require.NoError(t, c.Close())

	c, err = New(cfg())
	require.NoError(t, err)
	assert.NoError(t, c.Close())
}

func TestNew_ManualStrategy(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1", merge.NameManual)
	assert.NotNil(t, c.Manual())

	c = newTestClient(t, "http://127.0.0.1:1", merge.NameEquality)
	assert.Nil(t, c.Manual())
}

func TestOpenStore_SharesLog(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, "http://127.0.0.1:1", merge.NameEquality)

	store, closeFn, err := OpenStore(c.Config().DataDir)
	require.NoError(t, err)
	defer closeFn()

	_, err = store.Execute(ctx, command.CreateNote{Target: command.Target{NoteID: "n1"}, Path: "/", Title: "t"})
	require.NoError(t, err)

	n, err := c.Store().Get(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, "t", n.Title)
}

func TestSyncNow_RoundTrip(t *testing.T) {
	ctx := context.Background()
	url, sdk := newNoteServer(t)
	c := newTestClient(t, url, merge.NameEquality)

	assert.Nil(t, c.LastSync())

	// local note is pushed
	_, err := c.Store().Execute(ctx, command.CreateNote{Target: command.Target{NoteID: "n1"}, Path: "/", Title: "t", Content: "c"})
	require.NoError(t, err)

	res, err := c.SyncNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ImportedLocal)
	assert.Equal(t, []string{"n1"}, res.Report.Committed)
	assert.Same(t, res, c.LastSync())

	remote, err := sdk.Note(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, "t", remote.Title)
	assert.Equal(t, "c", remote.Content)

	// the pushed event comes back from the server and is dropped
	res, err = c.SyncNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ImportedRemote)
	assert.Equal(t, 1, res.Report.Dropped)
	assert.Empty(t, res.Report.Committed)

	// remote edit is pulled
	_, err = sdk.Execute(ctx, command.ChangeTitle{Target: command.Target{NoteID: "n1", LastRevision: 1}, Title: "u"})
	require.NoError(t, err)

	res, err = c.SyncNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"n1"}, res.Report.Committed)

	local, err := c.Store().Get(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, "u", local.Title)
	assert.Equal(t, note.Exists, local.Existence())

	// then everything settles
	res, err = c.SyncNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ImportedLocal)
	assert.Equal(t, 1, res.Report.Dropped)

	pendingLocal, pendingRemote, err := c.Pending(ctx)
	require.NoError(t, err)
	assert.Zero(t, pendingLocal)
	assert.Zero(t, pendingRemote)
}

func TestSyncNow_ServerDown(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, "http://127.0.0.1:1", merge.NameEquality)

	_, err := c.Store().Execute(ctx, command.CreateNote{Target: command.Target{NoteID: "n1"}, Path: "/", Title: "t"})
	require.NoError(t, err)

	res, err := c.SyncNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"n1"}, res.Report.Failed)
	assert.ErrorIs(t, res.Report.Errors["n1"], command.ErrRemoteUnavailable)

	// nothing was consumed
	pendingLocal, _, err := c.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pendingLocal)
}
