// Package api is the minimum HTTP/WS surface the engine needs to function
// on its own (§0's scope decision): an inbound webhook receiver that feeds
// the Wanted Scanner an on-demand trigger, a health probe, and a WebSocket
// progress channel fed by the event bus. It is deliberately not the full
// REST catalog — job/batch/config CRUD and library browsing live outside
// this engine.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/Abrechen2/sublarr/internal/eventbus"
)

// ScanTrigger is the subset of *scanner.Scanner the webhook receiver needs.
type ScanTrigger interface {
	Run(ctx context.Context, requestedFull bool) error
}

// Server wires the chi router; Router is exported for ListenAndServe/tests.
type Server struct {
	Router *chi.Mux
}

// New builds the router. scanTrigger may be nil (health/WS still work; the
// webhook endpoint responds 503 until it's wired).
func New(bus *eventbus.Bus, scanTrigger ScanTrigger, log zerolog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", handleHealth)
	r.Post("/webhook/{source}", handleWebhook(scanTrigger, log))
	r.Get("/ws/progress", handleProgressWS(bus, log))

	return &Server{Router: r}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
