// Package http implements the HTTP API server for repod.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/repod-io/repod/internal/domain/ports"
	"github.com/repod-io/repod/internal/journal"
	"github.com/repod-io/repod/internal/repo"
)

// Registrar persists repository registrations beyond the in-memory manager.
// The app layer implements it on top of the repos.yaml registry.
type Registrar interface {
	AddRepo(name, path string) (*repo.Status, error)
	RemoveRepo(id string) error
}

// Server is the HTTP API server. The WebSocket event stream is mounted on
// the same port under /ws.
type Server struct {
	manager   *repo.Manager
	registrar Registrar
	journal   *journal.Journal
	hub       ports.EventHub
	wsHandler http.Handler

	addr       string
	httpServer *http.Server
	startTime  time.Time
}

// New creates a new HTTP server. journal and wsHandler may be nil.
func New(host string, port int, manager *repo.Manager, registrar Registrar, jnl *journal.Journal, eventHub ports.EventHub, wsHandler http.Handler) *Server {
	return &Server{
		manager:   manager,
		registrar: registrar,
		journal:   jnl,
		hub:       eventHub,
		wsHandler: wsHandler,
		addr:      fmt.Sprintf("%s:%d", host, port),
		startTime: time.Now(),
	}
}

// Router builds the request router. Exposed for tests.
func (s *Server) Router() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()

	// Daemon status
	api.HandleFunc("/status", s.handleDaemonStatus).Methods("GET")

	// Repository registry
	api.HandleFunc("/repos", s.handleListRepos).Methods("GET")
	api.HandleFunc("/repos", s.handleAddRepo).Methods("POST")
	api.HandleFunc("/repos/{id}", s.handleGetRepo).Methods("GET")
	api.HandleFunc("/repos/{id}", s.handleRemoveRepo).Methods("DELETE")
	api.HandleFunc("/repos/{id}/refresh", s.handleRefreshRepo).Methods("POST")

	// Repository queries
	api.HandleFunc("/repos/{id}/status", s.handleRepoStatus).Methods("GET")
	api.HandleFunc("/repos/{id}/log", s.handleRepoLog).Methods("GET")
	api.HandleFunc("/repos/{id}/untracked", s.handleRepoUntracked).Methods("GET")

	// Repository operations
	api.HandleFunc("/repos/{id}/fetch", s.handleFetch).Methods("POST")
	api.HandleFunc("/repos/{id}/update", s.handleUpdate).Methods("POST")
	api.HandleFunc("/repos/{id}/stage", s.handleStage).Methods("POST")
	api.HandleFunc("/repos/{id}/unstage", s.handleUnstage).Methods("POST")
	api.HandleFunc("/repos/{id}/discard", s.handleDiscard).Methods("POST")
	api.HandleFunc("/repos/{id}/commit", s.handleCommit).Methods("POST")
	api.HandleFunc("/repos/{id}/checkout", s.handleCheckout).Methods("POST")

	// Operation history
	api.HandleFunc("/history", s.handleHistory).Methods("GET")

	if s.wsHandler != nil {
		router.Handle("/ws", s.wsHandler)
	}

	return corsMiddleware(router)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Info().Str("addr", s.addr).Msg("HTTP server starting")

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	log.Info().Msg("HTTP server stopping")
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"service":   "repod",
		"timestamp": time.Now().Unix(),
	})
}

// handleDaemonStatus handles GET /api/status
func (s *Server) handleDaemonStatus(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
		"repos":          s.manager.Stats(),
	})
}

// respondJSON sends a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

// respondError sends an error response.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]interface{}{
		"error": message,
	})
}

// corsMiddleware adds CORS headers.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1")) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
