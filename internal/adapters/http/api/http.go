// Package api serves stored audit runs over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/toolaudit/internal/adapters/repository"
	"github.com/okian/toolaudit/internal/domain/model"
)

// Dependencies required by HTTP handlers. repository.Store satisfies it.
type Dependencies interface {
	Runs(ctx context.Context) ([]repository.RunSummary, error)
	DominantTool(ctx context.Context, runID string, bucket int64, team string) (model.ToolID, error)
}

// Server wires HTTP routes for the results API.
type Server struct {
	healthHandler *HealthHandler
	runsHandler   *RunsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler: NewHealthHandler(),
		runsHandler:   NewRunsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /runs", MetricsMiddleware(s.runsHandler.HandleListRuns, "runs"))
	mux.HandleFunc("GET /runs/{id}/dominant", MetricsMiddleware(s.runsHandler.HandleDominant, "dominant"))
	mux.HandleFunc("GET /openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
		_, _ = w.Write(OpenAPI)
	})
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// isNotFound translates store not-found errors to 404.
func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
