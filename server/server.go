// Package server provides HTTP server setup and routing.
package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"telemetry_search/auth"
	"telemetry_search/config"
	"telemetry_search/handlers"
	"telemetry_search/metrics"
	"telemetry_search/websocket"
)

// DefaultShutdownTimeout bounds how long Serve waits for in-flight requests.
const DefaultShutdownTimeout = 10 * time.Second

// Config holds server configuration options.
type Config struct {
	Addr            string
	DocsFS          fs.FS                     // Embedded docs filesystem
	AuthProvider    *auth.Provider            // OIDC auth provider (nil if auth disabled)
	WebSocketHub    *websocket.Hub            // WebSocket hub for live updates
	Searches        *handlers.SearchesHandler // Saved search API (nil disables it)
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:            fmt.Sprintf(":%d", config.DefaultPort),
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// Server represents the HTTP server.
type Server struct {
	config *Config
	mux    *http.ServeMux
}

// New creates a new Server with the given configuration.
func New(cfg *Config) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	s := &Server{
		config: cfg,
		mux:    http.NewServeMux(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	handlers.SetEmbeddedFS(s.config.DocsFS)

	// Auth routes (always public)
	if s.config.AuthProvider != nil {
		s.mux.HandleFunc("/login", s.config.AuthProvider.LoginHandler)
		s.mux.HandleFunc("/oidc/callback", s.config.AuthProvider.CallbackHandler)
		s.mux.HandleFunc("/logout", s.config.AuthProvider.LogoutHandler)
		s.mux.HandleFunc("/auth/status", s.config.AuthProvider.StatusHandler)
	} else {
		// When auth is disabled, provide a status endpoint that says so
		s.mux.HandleFunc("/auth/status", auth.NoAuthStatusHandler)
	}

	// Metrics are scraped without a session
	s.mux.Handle("/metrics", metrics.Handler())

	protect := func(h http.HandlerFunc) http.HandlerFunc {
		if s.config.AuthProvider != nil {
			return func(w http.ResponseWriter, r *http.Request) {
				s.config.AuthProvider.Middleware(h).ServeHTTP(w, r)
			}
		}
		return h
	}

	// protectEdit additionally requires the editor role
	protectEdit := func(h http.HandlerFunc) http.HandlerFunc {
		if s.config.AuthProvider != nil {
			return protect(auth.RequireEditor(h).ServeHTTP)
		}
		return h
	}

	s.mux.HandleFunc("/", protect(handlers.IndexHandler))
	s.mux.HandleFunc("/api/docs/query", protect(handlers.QueryDocsHandler))

	// Query endpoints (protected)
	s.mux.HandleFunc("/api/query/parse", protect(handlers.QueryParseHandler))
	s.mux.HandleFunc("/api/query/format", protect(handlers.QueryFormatHandler))
	s.mux.HandleFunc("/api/query/edit", protect(handlers.QueryEditHandler))
	s.mux.HandleFunc("/api/query/lint", protect(handlers.QueryLintHandler))

	// Saved searches: reads are protected, writes need an editor
	if h := s.config.Searches; h != nil {
		s.mux.HandleFunc("GET /api/searches", protect(h.List))
		s.mux.HandleFunc("POST /api/searches", protectEdit(h.Create))
		s.mux.HandleFunc("GET /api/searches/export", protect(h.Export))
		s.mux.HandleFunc("POST /api/searches/import", protectEdit(h.Import))
		s.mux.HandleFunc("GET /api/searches/{id}", protect(h.Get))
		s.mux.HandleFunc("PUT /api/searches/{id}", protectEdit(h.Update))
		s.mux.HandleFunc("DELETE /api/searches/{id}", protectEdit(h.Delete))
	}

	// WebSocket endpoint for live updates (protected)
	if s.config.WebSocketHub != nil {
		s.mux.HandleFunc("/ws", protect(s.config.WebSocketHub.Handler()))
	}
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe starts the HTTP server and blocks until it fails.
func (s *Server) ListenAndServe() error {
	log.Printf("Starting server on %s", s.config.Addr)
	return http.ListenAndServe(s.config.Addr, s.mux)
}

// Serve listens on the configured address and serves until ctx is cancelled,
// then shuts down gracefully. systemd is told when the server is ready and
// when it starts stopping.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	log.Printf("Server listening on %s", ln.Addr())
	notify(daemon.SdNotifyReady)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Printf("Shutting down server")
	notify(daemon.SdNotifyStopping)

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// notify sends state to systemd. It is a no-op outside a notify-type unit.
func notify(state string) {
	if _, err := daemon.SdNotify(false, state); err != nil {
		log.Printf("Warning: failed to notify systemd (%s): %v", state, err)
	}
}
