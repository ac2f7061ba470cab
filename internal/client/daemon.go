package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openmined/syftnotes/internal/client/config"
	"github.com/openmined/syftnotes/internal/synchronizer"
	"golang.org/x/sync/errgroup"
)

const daemonShutdownTimeout = 10 * time.Second

// ClientDaemon runs periodic sync passes next to the control plane.
type ClientDaemon struct {
	client   *Client
	cps      *ControlPlaneServer
	interval time.Duration
}

func NewClientDaemon(cfg *config.Config) (*ClientDaemon, error) {
	c, err := New(cfg)
	if err != nil {
		return nil, err
	}

	cps, err := NewControlPlaneServer(cfg, c, c.Manual())
	if err != nil {
		c.Close()
		return nil, err
	}

	return &ClientDaemon{
		client:   c,
		cps:      cps,
		interval: cfg.SyncInterval,
	}, nil
}

func (d *ClientDaemon) Client() *Client {
	return d.client
}

// Start blocks until ctx is cancelled or a component fails.
func (d *ClientDaemon) Start(ctx context.Context) error {
	slog.Info("client daemon start", "datadir", d.client.config.DataDir, "server", d.client.config.ServerURL,
		"strategy", d.client.config.MergeStrategy, "interval", d.interval)

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		d.syncLoop(egCtx)
		return nil
	})

	eg.Go(func() error {
		if err := d.cps.Start(egCtx); err != nil {
			return fmt.Errorf("failed to start control plane: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()
		slog.Info("stopping client daemon")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), daemonShutdownTimeout)
		defer cancel()
		return d.cps.Stop(shutdownCtx)
	})

	err := eg.Wait()
	if cerr := d.client.Close(); cerr != nil {
		slog.Error("client close", "error", cerr)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("client daemon failure", "error", err)
		return err
	}

	slog.Info("client daemon stopped")
	return nil
}

// syncLoop runs a pass, then waits a full interval before the next one.
func (d *ClientDaemon) syncLoop(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			d.syncOnce(ctx)
			timer.Reset(d.interval)
		}
	}
}

func (d *ClientDaemon) syncOnce(ctx context.Context) {
	res, err := d.client.SyncNow(ctx)
	if errors.Is(err, synchronizer.ErrSyncAlreadyRunning) {
		slog.Debug("sync skipped", "reason", err)
		return
	} else if err != nil {
		slog.Error("sync", "error", err)
		return
	}

	report := res.Report
	if !report.HasChanges() && len(report.Failed) == 0 {
		return
	}
	slog.Info("sync", "generation", report.Generation, "imported.local", res.ImportedLocal, "imported.remote", res.ImportedRemote,
		"committed", len(report.Committed), "skipped", len(report.Skipped), "failed", len(report.Failed), "took", report.Duration)
	for id, err := range report.Errors {
		slog.Warn("sync note failed", "note", id, "error", err)
	}
}
