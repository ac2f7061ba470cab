package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/syftnotes/internal/db"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	config *Config
	db     *sqlx.DB
	svc    *Services
	server *http.Server
}

func New(config *Config) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	sqlDB, err := db.NewSqliteDb(db.WithPath(config.DbPath), db.WithMaxOpenConns(1))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	svc, err := NewServices(sqlDB)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	handler, err := SetupRoutes(config, svc)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	return &Server{
		config: config,
		db:     sqlDB,
		svc:    svc,
		server: &http.Server{
			Addr:              config.HTTP.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}, nil
}

func (s *Server) Services() *Services {
	return s.svc
}

func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	slog.Info("notes server start", "config", s.config)
	defer slog.Info("notes server stop")

	ln, err := net.Listen("tcp", s.config.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.HTTP.Addr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.serve(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.db.Close()
			return fmt.Errorf("http server: %w", err)
		}
		return s.db.Close()
	case <-ctx.Done():
	}

	slog.Info("notes server shutdown signal")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return s.Stop(shutdownCtx)
}

func (s *Server) Stop(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	return s.db.Close()
}

func (s *Server) serve(ln net.Listener) error {
	if s.config.HTTP.TLS() {
		slog.Info("server start tls", "addr", ln.Addr(), "cert", s.config.HTTP.CertFile, "key", s.config.HTTP.KeyFile)
		return s.server.ServeTLS(ln, s.config.HTTP.CertFile, s.config.HTTP.KeyFile)
	}
	slog.Info("server start http", "addr", ln.Addr())
	return s.server.Serve(ln)
}
