package server

import (
	"net/http"

	"github.com/josephgoksu/TodoBuilder/internal/metrics"
)

// registerRoutes sets up all API endpoints
func (s *Server) registerRoutes() http.Handler {
	mux := http.NewServeMux()

	// Feature registry
	mux.HandleFunc("GET /api/features", s.handleListFeatures)
	mux.HandleFunc("POST /api/features", s.handleCreateFeature)
	mux.HandleFunc("GET /api/features/{id}", s.handleGetFeature)
	mux.HandleFunc("PATCH /api/features/{id}", s.handleUpdateFeature)
	mux.HandleFunc("DELETE /api/features/{id}", s.handleDeleteFeature)
	mux.HandleFunc("GET /api/features/{id}/dependencies", s.handleListDependencies)
	mux.HandleFunc("POST /api/features/{id}/dependencies", s.handleAddDependency)
	mux.HandleFunc("DELETE /api/features/{id}/dependencies/{dependsOn}", s.handleRemoveDependency)
	mux.HandleFunc("GET /api/features/{id}/dependents", s.handleListDependents)
	mux.HandleFunc("GET /api/features/{id}/can-disable", s.handleCanDisable)
	mux.HandleFunc("POST /api/features/{id}/enable", s.handleToggle(true))
	mux.HandleFunc("POST /api/features/{id}/disable", s.handleToggle(false))
	mux.HandleFunc("GET /api/graph", s.handleGraph)

	// Generation pipeline
	mux.HandleFunc("POST /api/features/integration-check", s.handleIntegrationCheck)
	mux.HandleFunc("POST /api/features/generate", s.handleGenerate)
	mux.HandleFunc("GET /api/features/generate", s.handleRecentGenerations)
	mux.HandleFunc("GET /api/backups", s.handleListBackups)
	mux.HandleFunc("POST /api/backups/{id}/rollback", s.handleRollback)

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	return s.recoverMiddleware(s.logMiddleware(s.corsMiddleware(mux)))
}
