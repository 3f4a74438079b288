// Package server is the local HTTP surface the diagnostics form posts to.
// It validates nothing about the domain itself; analysis belongs to the
// backend, rendering to the UI.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hllvc/domaindoctor/internal/diag"
)

const maxCheckRequestBytes = 4 << 10

// Checker runs one domain check. *diag.Client satisfies it.
type Checker interface {
	Run(ctx context.Context, domain string) (*diag.Report, error)
}

// Server serves the local check API.
type Server struct {
	mux    *http.ServeMux
	server *http.Server
}

// Compile-time check that Server implements http.Handler
var _ http.Handler = (*Server)(nil)

// New creates a Server submitting checks through the given Checker.
func New(checks Checker) (*Server, error) {
	if checks == nil {
		return nil, fmt.Errorf("missing checker")
	}

	logger := slog.Default()

	mux := http.NewServeMux()
	mux.Handle("POST /api/checks", applyMiddlewares(checkHandler(checks),
		Logging(logger),
		Recovery,
	))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return &Server{mux: mux}, nil
}

// ServeHTTP implements http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Start starts the HTTP server in the background and returns immediately.
// Returns a channel for runtime errors and a startup error if any.
//
// Startup errors (port in use, permission denied) are returned immediately.
// Runtime errors (network failures during operation) are sent to the error
// channel. The caller is responsible for calling Shutdown() to stop the
// server.
func (s *Server) Start(ctx context.Context, address string) (<-chan error, error) {
	// Startup phase: Create listener synchronously to catch port-in-use errors immediately
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	s.server = &http.Server{
		Handler:      s,
		ReadTimeout:  30 * time.Second, // Read entire client request (DoS protection against slow clients)
		WriteTimeout: 2 * time.Minute,  // Bounded, but allows a slow backend analysis round trip
		IdleTimeout:  90 * time.Second, // Keep-alive wait for next request from client
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)

	go func() {
		err := s.server.Serve(listener)
		// Only report error if not from graceful shutdown
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh, nil
}

// Shutdown performs graceful shutdown of the HTTP server.
// Returns error if shutdown fails or times out.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	if err := s.server.Shutdown(ctx); err != nil {
		// Graceful shutdown failed - force close
		_ = s.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	return nil
}

// checkHandler forwards the submitted domain to the backend and relays the
// categorized report. Token lifecycle failures map to a dedicated message so
// the UI can distinguish them from analysis errors.
func checkHandler(checks Checker) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Domain string `json:"domain"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, maxCheckRequestBytes)).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		domain := strings.TrimSpace(payload.Domain)
		if domain == "" {
			writeError(w, http.StatusBadRequest, "a domain name is required")
			return
		}

		report, err := checks.Run(r.Context(), domain)
		switch {
		case errors.Is(err, diag.ErrSecurityUnverified):
			writeError(w, http.StatusServiceUnavailable, "cannot currently verify request security - try again")
		case err != nil:
			writeError(w, http.StatusBadGateway, "domain analysis failed")
		default:
			writeJSON(w, http.StatusOK, report)
		}
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
