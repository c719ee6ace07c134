package server

import (
	"errors"
	"net/http"

	"github.com/josephgoksu/TodoBuilder/internal/registry"
)

// handleListFeatures lists all features, or only enabled ones with ?active=true.
func (s *Server) handleListFeatures(w http.ResponseWriter, r *http.Request) {
	var (
		features []*registry.FeatureDefinition
		err      error
	)
	if r.URL.Query().Get("active") == "true" {
		features, err = s.app.Registry.Active(r.Context())
	} else {
		features, err = s.app.Registry.List(r.Context())
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, features, "")
}

func (s *Server) handleCreateFeature(w http.ResponseWriter, r *http.Request) {
	var req CreateFeatureRequest
	if err := decode(w, r, "server.createFeature", &req); err != nil {
		writeError(w, err)
		return
	}
	f, err := s.app.Register(r.Context(), req.definition(), req.Dependencies...)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, f, "feature registered")
}

func (s *Server) handleGetFeature(w http.ResponseWriter, r *http.Request) {
	f, err := s.app.Registry.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, f, "")
}

func (s *Server) handleUpdateFeature(w http.ResponseWriter, r *http.Request) {
	var patch registry.FeaturePatch
	if err := decode(w, r, "server.updateFeature", &patch); err != nil {
		writeError(w, err)
		return
	}
	f, err := s.app.Registry.Update(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		var de *registry.DependentsError
		if errors.As(err, &de) {
			writeError(w, err, registry.DisableCheck{DependentFeatures: de.Dependents})
			return
		}
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, f, "feature updated")
}

func (s *Server) handleDeleteFeature(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.app.Registry.Remove(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"id": id}, "feature removed")
}

func (s *Server) handleListDependencies(w http.ResponseWriter, r *http.Request) {
	deps, err := s.app.Registry.Dependencies(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, deps, "")
}

func (s *Server) handleAddDependency(w http.ResponseWriter, r *http.Request) {
	var req AddDependencyRequest
	if err := decode(w, r, "server.addDependency", &req); err != nil {
		writeError(w, err)
		return
	}
	typ := req.Type
	if typ == "" {
		typ = registry.DependencyRequired
	}
	edge, err := s.app.Registry.AddDependency(r.Context(), r.PathValue("id"), req.DependsOn, typ)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, edge, "dependency added")
}

func (s *Server) handleRemoveDependency(w http.ResponseWriter, r *http.Request) {
	id, dependsOn := r.PathValue("id"), r.PathValue("dependsOn")
	if err := s.app.Registry.RemoveDependency(r.Context(), id, dependsOn); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, registry.DependencyEdge{FeatureID: id, DependsOn: dependsOn}, "dependency removed")
}

func (s *Server) handleListDependents(w http.ResponseWriter, r *http.Request) {
	edges, err := s.app.Registry.Dependents(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, edges, "")
}

func (s *Server) handleCanDisable(w http.ResponseWriter, r *http.Request) {
	check, err := s.app.Registry.CanDisable(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, check, "")
}

func (s *Server) handleToggle(enabled bool) http.HandlerFunc {
	msg := "feature disabled"
	if enabled {
		msg = "feature enabled"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := s.app.SetEnabled(r.Context(), r.PathValue("id"), enabled)
		if err != nil {
			if res != nil {
				writeError(w, err, res)
				return
			}
			writeError(w, err)
			return
		}
		writeData(w, http.StatusOK, res, msg)
	}
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	g, err := s.app.Registry.Graph(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, g, "")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	features, err := s.app.Registry.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, Health{
		Status:      "ok",
		Store:       s.app.Config.Store.Backend,
		ProjectRoot: s.app.ProjectRoot(),
		Features:    len(features),
	}, "")
}
