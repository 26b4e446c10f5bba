// Package server hosts the viewer's HTTP surface: the shared middleware
// stack, CORS for local origins and a listener tied to a context.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/masskarem1/PHYS.101-Ebook/internal/logging"
)

// ShutdownTimeout bounds how long open requests and viewer sockets get to
// finish once the run context is cancelled.
const ShutdownTimeout = 10 * time.Second

// Config holds server configuration.
type Config struct {
	Port int
	// AllowAll accepts any CORS origin instead of localhost only.
	AllowAll bool
	// Version is reported by /healthz.
	Version string
}

// Server is the local HTTP server the viewer runs in.
type Server struct {
	cfg     Config
	log     zerolog.Logger
	router  chi.Router
	started time.Time
}

// New creates a server with the shared middleware stack. Feature packages
// add their routes through Router.
func New(cfg Config, log zerolog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		log:     log.With().Str("component", "server").Logger(),
		started: time.Now(),
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, logging.RequestLogger(s.log), middleware.Recoverer)
	r.Use(cors.Handler(s.corsOptions()))
	r.Get("/healthz", s.handleHealth)
	s.router = r
	return s
}

func (s *Server) corsOptions() cors.Options {
	origins := []string{"http://localhost:*", "http://127.0.0.1:*"}
	if s.cfg.AllowAll {
		origins = []string{"*"}
	}
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Flipbook-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Uptime  string `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(healthResponse{
		Status:  "ok",
		Version: s.cfg.Version,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
	})
}

// Router returns the chi router for registering feature routes.
func (s *Server) Router() chi.Router { return s.router }

// Addr is the listen address for the configured port.
func (s *Server) Addr() string { return fmt.Sprintf(":%d", s.cfg.Port) }

// Run listens on the configured port until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully. A clean shutdown returns nil.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	hs := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() { errc <- hs.Serve(ln) }()
	s.log.Info().Str("addr", ln.Addr().String()).Msg("flipbook server listening")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
