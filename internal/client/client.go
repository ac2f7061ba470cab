package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/jmoiron/sqlx"
	"github.com/openmined/syftnotes/internal/client/config"
	"github.com/openmined/syftnotes/internal/client/handlers"
	"github.com/openmined/syftnotes/internal/db"
	"github.com/openmined/syftnotes/internal/eventrepo"
	"github.com/openmined/syftnotes/internal/importer"
	"github.com/openmined/syftnotes/internal/merge"
	"github.com/openmined/syftnotes/internal/notesdk"
	"github.com/openmined/syftnotes/internal/notestore"
	"github.com/openmined/syftnotes/internal/synchronizer"
	"github.com/openmined/syftnotes/internal/utils"
)

const (
	metadataDir = ".data"
	lockFile    = "syftnotes.lock"
	dbFile      = "notes.db"

	localSource  = "local"
	remoteSource = "remote"
)

var ErrDataDirLocked = errors.New("data directory locked by another process")

var _ handlers.Syncer = (*Client)(nil)

// Client synchronizes the note log of a data directory with a note server.
// Only one client may own a data directory at a time.
type Client struct {
	config *config.Config
	flock  *flock.Flock
	db     *sqlx.DB

	store        *notestore.Store
	sdk          *notesdk.Client
	localRepo    *eventrepo.SQLite
	remoteRepo   *eventrepo.SQLite
	localImport  *importer.Importer
	remoteImport *importer.Importer
	sync         *synchronizer.Synchronizer
	manual       *merge.Manual

	muSync sync.Mutex
	muLast sync.RWMutex
	last   *handlers.SyncResult
}

// New locks the data directory and opens everything a sync pass needs.
func New(cfg *config.Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	lock, err := lockDataDir(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	c, err := open(cfg, lock)
	if err != nil {
		lock.Unlock()
		return nil, err
	}
	return c, nil
}

func open(cfg *config.Config, lock *flock.Flock) (*Client, error) {
	sqlDB, err := openDB(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	c := &Client{config: cfg, flock: lock, db: sqlDB}
	if err := c.wire(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) wire() error {
	var err error
	if c.store, err = notestore.New(c.db); err != nil {
		return err
	}
	if c.localRepo, err = eventrepo.NewSQLite(c.db, eventrepo.SideLocal); err != nil {
		return err
	}
	if c.remoteRepo, err = eventrepo.NewSQLite(c.db, eventrepo.SideRemote); err != nil {
		return err
	}
	cursors, err := importer.NewSQLiteCursors(c.db)
	if err != nil {
		return err
	}
	journal, err := synchronizer.NewStateJournal(c.db)
	if err != nil {
		return err
	}

	if c.sdk, err = notesdk.New(c.config.ServerURL); err != nil {
		return fmt.Errorf("failed to create sdk: %w", err)
	}

	merger, err := merge.New(c.config.MergeStrategy)
	if err != nil {
		return err
	}
	c.manual, _ = merger.(*merge.Manual)

	c.localImport = importer.New(localSource, importer.StoreSource(c.store), c.localRepo, cursors)
	c.remoteImport = importer.New(remoteSource, c.sdk, c.remoteRepo, cursors)

	c.sync = synchronizer.New(
		synchronizer.Replica{Repository: c.localRepo, Executor: c.store},
		synchronizer.Replica{Repository: c.remoteRepo, Executor: c.sdk},
		synchronizer.NewChain(&synchronizer.Merging{
			Merger:        merger,
			LocalHistory:  c.store,
			RemoteHistory: c.sdk,
		}),
		journal,
	)
	return nil
}

func (c *Client) Config() *config.Config {
	return c.config
}

// Store is the local note log.
func (c *Client) Store() *notestore.Store {
	return c.store
}

// Manual returns the manual merge strategy, nil when another one is
// configured.
func (c *Client) Manual() *merge.Manual {
	return c.manual
}

// SyncNow imports both logs and runs a synchronization pass.
func (c *Client) SyncNow(ctx context.Context) (*handlers.SyncResult, error) {
	if !c.muSync.TryLock() {
		return nil, synchronizer.ErrSyncAlreadyRunning
	}
	defer c.muSync.Unlock()

	res := &handlers.SyncResult{}

	n, err := c.localImport.Import(ctx)
	res.ImportedLocal = n
	if err != nil {
		return nil, err
	}

	// the pass still runs without the server: its commands fail per note
	n, err = c.remoteImport.Import(ctx)
	res.ImportedRemote = n
	if err != nil {
		slog.Warn("sync", "op", "import", "source", remoteSource, "error", err)
	}

	report, err := c.sync.Synchronize(ctx)
	if err != nil {
		return nil, err
	}
	res.Report = report

	c.muLast.Lock()
	c.last = res
	c.muLast.Unlock()
	return res, nil
}

// LastSync returns the result of the last pass, nil before the first one.
func (c *Client) LastSync() *handlers.SyncResult {
	c.muLast.RLock()
	defer c.muLast.RUnlock()
	return c.last
}

// Pending counts the events waiting in each repository.
func (c *Client) Pending(ctx context.Context) (int, int, error) {
	local, err := c.localRepo.Count(ctx)
	if err != nil {
		return 0, 0, err
	}
	remote, err := c.remoteRepo.Count(ctx)
	if err != nil {
		return 0, 0, err
	}
	return local, remote, nil
}

// Close closes the database and releases the data directory.
func (c *Client) Close() error {
	c.sdk.Close()
	err := c.db.Close()
	if uerr := c.flock.Unlock(); uerr != nil {
		err = errors.Join(err, fmt.Errorf("failed to unlock data dir: %w", uerr))
	}
	return err
}

// OpenStore opens the local note log of a data directory without taking its
// lock, so notes can be edited while a daemon is running.
func OpenStore(dataDir string) (*notestore.Store, func() error, error) {
	sqlDB, err := openDB(dataDir)
	if err != nil {
		return nil, nil, err
	}
	store, err := notestore.New(sqlDB)
	if err != nil {
		sqlDB.Close()
		return nil, nil, err
	}
	return store, sqlDB.Close, nil
}

func openDB(dataDir string) (*sqlx.DB, error) {
	path := filepath.Join(dataDir, metadataDir, dbFile)
	sqlDB, err := db.NewSqliteDb(db.WithPath(path), db.WithMaxOpenConns(1))
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	return sqlDB, nil
}

func lockDataDir(dataDir string) (*flock.Flock, error) {
	dir := filepath.Join(dataDir, metadataDir)
	if err := utils.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	lock := flock.New(filepath.Join(dir, lockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock data dir: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrDataDirLocked, dataDir)
	}
	return lock, nil
}
