package server

import (
	"net/http"

	"github.com/josephgoksu/TodoBuilder/internal/builder"
)

// handleIntegrationCheck dry-checks generated code against the project tree
// and the registry without writing anything.
func (s *Server) handleIntegrationCheck(w http.ResponseWriter, r *http.Request) {
	var req IntegrationCheckRequest
	if err := decode(w, r, "server.integrationCheck", &req); err != nil {
		writeError(w, err)
		return
	}
	check, err := s.app.Integrator.CanIntegrate(r.Context(), req.FeatureID, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, check, "")
}

// handleGenerate runs the whole pipeline. Partial generation failures are
// reported inside the build report with success=false, not as an HTTP error.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req builder.Request
	if err := decodeBody(w, r, "server.generate", &req); err != nil {
		writeError(w, err)
		return
	}
	report, err := s.app.Build(r.Context(), req)
	if err != nil {
		if report != nil {
			writeError(w, err, report)
			return
		}
		writeError(w, err)
		return
	}
	msg := "feature generated and integrated"
	switch {
	case report.Integration == nil:
		msg = "nothing was integrated"
	case report.Integration.DryRun:
		msg = "dry run completed"
	case !report.Success:
		msg = "feature generated with errors"
	}
	writeJSON(w, http.StatusOK, Response{Success: report.Success, Data: report, Message: msg})
}

func (s *Server) handleRecentGenerations(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, GenerationStatus{
		Settings: s.app.Generator.Settings(),
		Recent:   s.app.Builder.Recent(),
	}, "")
}

func (s *Server) handleListBackups(w http.ResponseWriter, r *http.Request) {
	backups, err := s.app.Integrator.ListBackups(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, backups, "")
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	b, err := s.app.Rollback(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, b, "backup restored")
}
