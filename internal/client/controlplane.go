package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/openmined/syftnotes/internal/client/config"
	"github.com/openmined/syftnotes/internal/client/handlers"
	"github.com/openmined/syftnotes/internal/merge"
	"github.com/openmined/syftnotes/internal/utils"
)

// ControlPlaneServer is the local http api used by the cli to drive a
// running daemon.
type ControlPlaneServer struct {
	config *config.ControlPlaneConfig
	server *http.Server
}

func NewControlPlaneServer(cfg *config.Config, syncer handlers.Syncer, manual *merge.Manual) (*ControlPlaneServer, error) {
	routes, err := SetupRoutes(syncer, manual, &RouteConfig{
		ServerURL:     cfg.ServerURL,
		MergeStrategy: cfg.MergeStrategy,
		Token:         cfg.ControlPlane.Token,
	})
	if err != nil {
		return nil, err
	}

	httpServer := &http.Server{
		Addr:              cfg.ControlPlane.Addr,
		Handler:           routes,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
		// no WriteTimeout, /v1/conflicts/watch is long lived
	}

	return &ControlPlaneServer{
		config: &cfg.ControlPlane,
		server: httpServer,
	}, nil
}

func (s *ControlPlaneServer) Handler() http.Handler {
	return s.server.Handler
}

// Start listens on the configured address and serves until Stop.
func (s *ControlPlaneServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	return s.Serve(ln)
}

func (s *ControlPlaneServer) Serve(ln net.Listener) error {
	slog.Info("control plane start", "addr", fmt.Sprintf("http://%s", ln.Addr()), "token", utils.MaskSecret(s.config.Token))
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *ControlPlaneServer) Stop(ctx context.Context) error {
	slog.Info("control plane stop")
	return s.server.Shutdown(ctx)
}
