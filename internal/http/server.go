// Package http provides the JSON API surface of the recurring engine:
// definition CRUD, pause/resume, manual execution and the upcoming view.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"rata/internal/core"
	"rata/internal/services"
)

// Ports consumed from the service layer; tests substitute stubs.
type (
	DefinitionService interface {
		Create(ctx context.Context, d core.Definition) (core.Definition, error)
		Update(ctx context.Context, id int64, u services.DefinitionUpdate) (core.Definition, error)
		Delete(ctx context.Context, id int64) error
		ToggleActive(ctx context.Context, id int64) (core.Definition, error)
		List(ctx context.Context, owner string) ([]core.Definition, error)
		ListUpcoming(ctx context.Context, owner string, withinDays int) ([]core.Definition, error)
	}

	ExecutorService interface {
		Execute(ctx context.Context, id int64) (core.LedgerEntry, error)
	}
)

type Server struct {
	http.Server

	definitions  DefinitionService
	executor     ExecutorService
	defaultOwner string
}

func NewServer(port string, definitions DefinitionService, executor ExecutorService, defaultOwner string) *Server {
	s := &Server{
		definitions:  definitions,
		executor:     executor,
		defaultOwner: defaultOwner,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/definitions", s.handleDefinitions)
	mux.HandleFunc("/definitions/toggle", s.handleToggleDefinition)
	mux.HandleFunc("/definitions/execute", s.handleExecuteDefinition)
	mux.HandleFunc("/definitions/upcoming", s.handleUpcomingDefinitions)

	s.Addr = ":" + port
	s.Handler = accessLog(mux)
	s.ReadHeaderTimeout = 10 * time.Second

	return s
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusRecorder captures the response code for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		slog.InfoContext(r.Context(), "Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}
