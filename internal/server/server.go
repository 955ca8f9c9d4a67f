// Package server implements the docstore HTTP API on top of a
// docstore.Store selected by configuration.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/alexjoedt/docstore"
	"github.com/alexjoedt/docstore/internal/config"
	"github.com/alexjoedt/docstore/internal/logging"
	"github.com/rs/zerolog"
)

// OpenStore returns the backend named by cfg.Storage.Backend.
func OpenStore(cfg *config.Config) (docstore.Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return docstore.NewMemoryStore(), nil
	case config.BackendFile:
		fs, err := docstore.NewFileStore(cfg.ResolveDataDir())
		if err != nil {
			return nil, err
		}
		return fs, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// Server owns the API listener and, when configured, the metrics listener.
type Server struct {
	cfg     *config.Config
	log     zerolog.Logger
	api     *http.Server
	metrics *http.Server // nil when metrics are disabled
}

// New wires store into a router and builds the HTTP servers described by
// cfg. Nothing listens until Serve is called.
func New(cfg *config.Config, store docstore.Store, logger zerolog.Logger) (*Server, error) {
	var metrics *Metrics
	if cfg.Metrics.Addr != "" {
		metrics = NewMetrics()
	}

	rt, err := NewRouter(Options{
		Store:        store,
		Features:     FeaturesFor(cfg.Storage.Backend),
		Logger:       logging.WithComponent(logger, "router"),
		Message:      cfg.Server.Message,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Metrics:      metrics,
	})
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg: cfg,
		log: logging.WithComponent(logger, "server"),
		api: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           Handler(rt, logger, cfg.Server.Compress),
			ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
			ReadTimeout:       cfg.Server.ReadTimeout,
			WriteTimeout:      cfg.Server.WriteTimeout,
			IdleTimeout:       cfg.Server.IdleTimeout,
		},
	}

	if metrics != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		s.metrics = &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           mux,
			ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		}
	}

	return s, nil
}

// Handler returns the API handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.api.Handler
}

// ListenAndServe listens on the configured addresses and serves until ctx
// is canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.api.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.api.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves the API on ln until ctx is canceled, then shuts down,
// giving in-flight requests up to the configured shutdown timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 2)

	s.log.Info().Str("addr", ln.Addr().String()).Msg("serving requests")
	go func() {
		if err := s.api.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	if s.metrics != nil {
		mln, err := net.Listen("tcp", s.metrics.Addr)
		if err != nil {
			s.shutdown()
			return fmt.Errorf("listen %s: %w", s.metrics.Addr, err)
		}
		s.log.Info().Str("addr", mln.Addr().String()).Msg("serving prometheus metrics")
		go func() {
			if err := s.metrics.Serve(mln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	var serveErr error
	select {
	case <-ctx.Done():
		s.log.Info().Msg("waiting for pending requests to complete")
	case serveErr = <-errCh:
		s.log.Error().Err(serveErr).Msg("server failed")
	}

	s.shutdown()
	return serveErr
}

// shutdown stops both servers concurrently, each bounded by the shutdown
// timeout.
func (s *Server) shutdown() {
	var wg sync.WaitGroup
	for _, srv := range []*http.Server{s.api, s.metrics} {
		if srv == nil {
			continue
		}
		wg.Add(1)
		go func(srv *http.Server) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				s.log.Warn().Err(err).Str("addr", srv.Addr).Msg("shutdown")
			}
		}(srv)
	}
	wg.Wait()
}
