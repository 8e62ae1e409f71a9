// Package web exposes the monitor state over HTTP: canonical matches, source
// health, cycle stats, stored history and a websocket event stream.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"courtwatch/internal/monitor"
	"courtwatch/internal/pkg/config"
	"courtwatch/internal/pkg/health"
	"courtwatch/internal/pkg/models"
	"courtwatch/internal/pkg/storage"
)

// Server serves the read API for the monitor.
type Server struct {
	monitor *monitor.Monitor
	health  *health.Store
	events  *storage.PostgresEventStore
	hub     *Hub
	srv     *http.Server
}

// New wires the routes. events may be nil when no database is configured;
// the history endpoint then reports 503.
func New(cfg config.WebConfig, m *monitor.Monitor, hs *health.Store, events *storage.PostgresEventStore, hub *Hub) *Server {
	s := &Server{
		monitor: m,
		health:  hs,
		events:  events,
		hub:     hub,
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/api/matches", s.handleMatches).Methods(http.MethodGet)
	r.HandleFunc("/api/sources", s.handleSources).Methods(http.MethodGet)
	r.HandleFunc("/api/sources/{name}/enable", s.handleEnableSource).Methods(http.MethodPost)
	r.HandleFunc("/api/cycle", s.handleCycle).Methods(http.MethodGet)
	r.HandleFunc("/api/events", s.handleEvents).Methods(http.MethodGet)
	r.HandleFunc("/ws", hub.handleWebsocket)

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(r)

	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
	return s
}

// Run starts the hub and the HTTP listener, then shuts down gracefully when
// ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go s.hub.Run()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
	}()

	slog.Info("HTTP server listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	degraded := s.health.Degraded()
	status, code := "ok", http.StatusOK
	if len(degraded) > 0 {
		// Probes act on the status code, not the body.
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":           status,
		"degraded_sources": degraded,
	})
}

// handleMatches returns the canonical match set. ?live=true narrows it to
// matches currently in play, tie-breaks included.
func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	matches := s.monitor.CanonicalMatches()

	if r.URL.Query().Get("live") == "true" {
		live := matches[:0]
		for _, m := range matches {
			if m.Status == models.StatusLive || m.Status == models.StatusTieBreak {
				live = append(live, m)
			}
		}
		matches = live
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(matches),
		"matches": matches,
	})
}

func (s *Server) handleSources(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.health.Statuses())
}

// handleEnableSource clears a disabled flag after an operator fixed whatever
// made the source's pages unparseable.
func (s *Server) handleEnableSource(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if !s.health.IsDisabled(name) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "already enabled", "source": name})
		return
	}
	s.health.Enable(name)
	slog.Info("Source re-enabled via API", "source", name)
	writeJSON(w, http.StatusOK, map[string]string{"status": "enabled", "source": name})
}

func (s *Server) handleCycle(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.LastCycle())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "event storage not configured"})
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be 1..1000"})
			return
		}
		limit = n
	}

	events, err := s.events.RecentEvents(r.Context(), limit)
	if err != nil {
		slog.Error("Failed to load stored events", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load events"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(events),
		"events": events,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
