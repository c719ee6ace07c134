package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/TodoBuilder/internal/app"
	"github.com/josephgoksu/TodoBuilder/internal/config"
	"github.com/josephgoksu/TodoBuilder/internal/registry"
	"github.com/josephgoksu/TodoBuilder/internal/testpipeline"
)

type componentProvider struct{}

func (componentProvider) Complete(_ context.Context, _, user string) (string, error) {
	i := strings.Index(user, "COMPONENT: ")
	if i < 0 {
		return "", fmt.Errorf("unexpected prompt")
	}
	name := strings.Fields(user[i+len("COMPONENT: "):])[0]
	return fmt.Sprintf(`{"files":[{"path":"src/components/%[1]s.tsx","content":"export const %[1]s = () => null"}],"tests":[]}`, name), nil
}

type okRunner struct{}

func (okRunner) Run(_ context.Context, run testpipeline.Run) (*testpipeline.Report, error) {
	return &testpipeline.Report{Passed: len(run.Tests)}, nil
}

func newTestServer(t *testing.T) (*Server, afero.Fs) {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.ProjectRoot = "/project"
	cfg.DataDir = "/data"
	cfg.Policy.Dir = "/data/policies"

	fs := afero.NewMemMapFs()
	a, err := app.New(context.Background(), cfg,
		app.WithFs(fs),
		app.WithStore(registry.NewMemoryStore()),
		app.WithProvider(componentProvider{}),
		app.WithTestRunner(okRunner{}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return New(a, 0, []string{"http://localhost:5173"}), fs
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func do(t *testing.T, s *Server, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestCreateFeature_DefaultsEnabled(t *testing.T) {
	s, _ := newTestServer(t)

	rec, env := do(t, s, http.MethodPost, "/api/features", map[string]any{"name": "Dark Mode"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, env.Success)

	var f registry.FeatureDefinition
	require.NoError(t, json.Unmarshal(env.Data, &f))
	assert.Equal(t, "dark-mode", f.ID)
	assert.True(t, f.Enabled)
	assert.Equal(t, "1.0.0", f.Version)

	rec, env = do(t, s, http.MethodGet, "/api/features/dark-mode", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
}

func TestCreateFeature_ValidationAndDuplicate(t *testing.T) {
	s, _ := newTestServer(t)

	rec, env := do(t, s, http.MethodPost, "/api/features", map[string]any{"version": "1.0.0"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
	assert.NotEmpty(t, env.Error)

	rec, _ = do(t, s, http.MethodPost, "/api/features", map[string]any{"id": "todos", "name": "Todos"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec, env = do(t, s, http.MethodPost, "/api/features", map[string]any{"id": "todos", "name": "Todos"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Error, "already registered")
}

func TestGetFeature_NotFound(t *testing.T) {
	s, _ := newTestServer(t)
	rec, env := do(t, s, http.MethodGet, "/api/features/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, env.Success)
}

func TestDisable_BlockedByDependents(t *testing.T) {
	s, _ := newTestServer(t)

	do(t, s, http.MethodPost, "/api/features", map[string]any{"id": "todos", "name": "Todos"})
	rec, _ := do(t, s, http.MethodPost, "/api/features", map[string]any{
		"id":           "tags",
		"name":         "Tags",
		"dependencies": []map[string]string{{"dependsOn": "todos", "type": "required"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, env := do(t, s, http.MethodGet, "/api/features/todos/can-disable", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var check registry.DisableCheck
	require.NoError(t, json.Unmarshal(env.Data, &check))
	assert.False(t, check.CanDisable)
	assert.Equal(t, []string{"tags"}, check.DependentFeatures)

	rec, env = do(t, s, http.MethodPost, "/api/features/todos/disable", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
	assert.Contains(t, string(env.Data), "tags")

	rec, _ = do(t, s, http.MethodPost, "/api/features/tags/disable", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, s, http.MethodPost, "/api/features/todos/disable", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = do(t, s, http.MethodGet, "/api/features?active=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var active []registry.FeatureDefinition
	require.NoError(t, json.Unmarshal(env.Data, &active))
	assert.Empty(t, active)
}

func TestDependencyRoutes(t *testing.T) {
	s, _ := newTestServer(t)
	do(t, s, http.MethodPost, "/api/features", map[string]any{"id": "todos", "name": "Todos"})
	do(t, s, http.MethodPost, "/api/features", map[string]any{"id": "search", "name": "Search"})

	rec, _ := do(t, s, http.MethodPost, "/api/features/search/dependencies",
		map[string]string{"dependsOn": "todos", "dependencyType": "optional"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, env := do(t, s, http.MethodGet, "/api/features/search/dependencies", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var deps []registry.ResolvedDependency
	require.NoError(t, json.Unmarshal(env.Data, &deps))
	require.Len(t, deps, 1)
	assert.Equal(t, registry.DependencyOptional, deps[0].Type)

	rec, env = do(t, s, http.MethodGet, "/api/features/todos/dependents", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), "search")

	rec, _ = do(t, s, http.MethodPost, "/api/features/todos/dependencies",
		map[string]string{"dependsOn": "todos"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, s, http.MethodDelete, "/api/features/search/dependencies/todos", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = do(t, s, http.MethodGet, "/api/graph", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var g registry.Graph
	require.NoError(t, json.Unmarshal(env.Data, &g))
	assert.Len(t, g.Nodes, 2)
	assert.Empty(t, g.Edges)
}

func TestUpdateAndDeleteFeature(t *testing.T) {
	s, _ := newTestServer(t)
	do(t, s, http.MethodPost, "/api/features", map[string]any{"id": "todos", "name": "Todos"})

	rec, env := do(t, s, http.MethodPatch, "/api/features/todos", map[string]any{"description": "core list"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var f registry.FeatureDefinition
	require.NoError(t, json.Unmarshal(env.Data, &f))
	assert.Equal(t, "core list", f.Description)

	rec, _ = do(t, s, http.MethodDelete, "/api/features/todos", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, s, http.MethodDelete, "/api/features/todos", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateFeature_IfRevision(t *testing.T) {
	s, _ := newTestServer(t)
	rec, env := do(t, s, http.MethodPost, "/api/features", map[string]any{"id": "todos", "name": "Todos"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var f registry.FeatureDefinition
	require.NoError(t, json.Unmarshal(env.Data, &f))

	rec, env = do(t, s, http.MethodPatch, "/api/features/todos",
		map[string]any{"ifRevision": f.Revision, "description": "core list"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env = do(t, s, http.MethodPatch, "/api/features/todos",
		map[string]any{"ifRevision": f.Revision, "description": "stale"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Error, "modified concurrently")

	rec, env = do(t, s, http.MethodGet, "/api/features/todos", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &f))
	assert.Equal(t, "core list", f.Description)
}

func TestCreateFeature_RouteIDsReserved(t *testing.T) {
	s, _ := newTestServer(t)
	for _, body := range []map[string]any{
		{"id": "generate", "name": "Generator"},
		{"name": "Integration Check"},
	} {
		rec, env := do(t, s, http.MethodPost, "/api/features", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Contains(t, env.Error, "reserved")
	}
}

func TestGenerate_IntegratesAndRemembers(t *testing.T) {
	s, fs := newTestServer(t)

	rec, env := do(t, s, http.MethodPost, "/api/features/generate", map[string]any{
		"feature":     map[string]any{"name": "Todo Tags", "enabled": true},
		"generation":  map[string]any{"components": []map[string]string{{"name": "TagList"}}},
		"integration": map[string]any{"createBackup": true},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, env.Success, rec.Body.String())

	ok, err := afero.Exists(fs, "/project/src/components/TagList.tsx")
	require.NoError(t, err)
	assert.True(t, ok)

	rec, env = do(t, s, http.MethodGet, "/api/features/generate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status struct {
		Settings map[string]any    `json:"settings"`
		Recent   []json.RawMessage `json:"recent"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Len(t, status.Recent, 1)
	assert.NotEmpty(t, status.Settings["timeout"])

	rec, env = do(t, s, http.MethodGet, "/api/backups", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var backups []struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &backups))
	require.Len(t, backups, 1)

	rec, _ = do(t, s, http.MethodPost, "/api/backups/"+backups[0].ID+"/rollback", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ok, err = afero.Exists(fs, "/project/src/components/TagList.tsx")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGenerate_DefaultsEnabledAndVersion(t *testing.T) {
	s, _ := newTestServer(t)

	rec, env := do(t, s, http.MethodPost, "/api/features/generate", map[string]any{
		"feature":    map[string]any{"name": "Todo Tags"},
		"generation": map[string]any{"components": []map[string]string{{"name": "TagList"}}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, env.Success, rec.Body.String())

	rec, env = do(t, s, http.MethodGet, "/api/features/todo-tags", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var f registry.FeatureDefinition
	require.NoError(t, json.Unmarshal(env.Data, &f))
	assert.True(t, f.Enabled)
	assert.Equal(t, "1.0.0", f.Version)
}

func TestGenerate_UnknownDependencyWritesNothing(t *testing.T) {
	s, fs := newTestServer(t)

	rec, env := do(t, s, http.MethodPost, "/api/features/generate", map[string]any{
		"feature":      map[string]any{"name": "Todo Tags"},
		"dependencies": []map[string]string{{"dependsOn": "todos"}},
		"generation":   map[string]any{"components": []map[string]string{{"name": "TagList"}}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, env.Success)
	assert.Contains(t, string(env.Data), "dependency todos is not registered")

	ok, err := afero.Exists(fs, "/project/src/components/TagList.tsx")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGenerate_RejectsEmptyRequest(t *testing.T) {
	s, _ := newTestServer(t)
	rec, env := do(t, s, http.MethodPost, "/api/features/generate", map[string]any{
		"feature": map[string]any{"name": "Empty"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)

	rec, _ = do(t, s, http.MethodPost, "/api/features/generate", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIntegrationCheck(t *testing.T) {
	s, fs := newTestServer(t)
	require.NoError(t, afero.WriteFile(fs, "/project/src/App.tsx", []byte("x"), 0o644))

	rec, env := do(t, s, http.MethodPost, "/api/features/integration-check", map[string]any{
		"featureId": "todos",
		"code": map[string]any{
			"files": []map[string]string{{"path": "src/App.tsx", "content": "y"}},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, string(env.Data), "src/App.tsx")
}

func TestCORS(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/features", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/features", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealthAndMetrics(t *testing.T) {
	s, _ := newTestServer(t)

	rec, env := do(t, s, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var h Health
	require.NoError(t, json.Unmarshal(env.Data, &h))
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, "/project", h.ProjectRoot)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec2 := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusOK, rec2.Code)
	assert.Contains(t, rec2.Body.String(), "todobuilder_http_response_duration_milliseconds")
}
