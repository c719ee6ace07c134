package mcp

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/TodoBuilder/internal/app"
	"github.com/josephgoksu/TodoBuilder/internal/config"
	"github.com/josephgoksu/TodoBuilder/internal/registry"
)

type noProvider struct{}

func (noProvider) Complete(context.Context, string, string) (string, error) {
	return "", errors.New("not used")
}

func newTestApp(t *testing.T) *app.App {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.ProjectRoot = "/project"
	cfg.DataDir = "/data"
	cfg.Policy.Dir = "/data/policies"

	a, err := app.New(context.Background(), cfg,
		app.WithFs(afero.NewMemMapFs()),
		app.WithStore(registry.NewMemoryStore()),
		app.WithProvider(noProvider{}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	ctx := context.Background()
	_, err = a.Register(ctx, registry.FeatureDefinition{ID: "todos", Name: "Todos", Version: "1.0.0", Enabled: true})
	require.NoError(t, err)
	_, err = a.Register(ctx, registry.FeatureDefinition{ID: "tags", Name: "Tags", Version: "1.0.0", Enabled: true},
		registry.DependencySpec{DependsOn: "todos", Type: registry.DependencyRequired})
	require.NoError(t, err)
	return a
}

func TestHandleListFeatures(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	res, err := HandleListFeatures(ctx, a, ListFeaturesParams{})
	require.NoError(t, err)
	assert.Contains(t, res.Content, "## Features (2)")
	assert.Contains(t, res.Content, "`tags`")

	_, err = HandleSetEnabled(ctx, a, SetEnabledParams{FeatureID: "tags", Enabled: false})
	require.NoError(t, err)
	res, err = HandleListFeatures(ctx, a, ListFeaturesParams{ActiveOnly: true})
	require.NoError(t, err)
	assert.Contains(t, res.Content, "## Features (1)")
	assert.NotContains(t, res.Content, "`tags`")
}

func TestHandleDependencies(t *testing.T) {
	a := newTestApp(t)

	res, err := HandleDependencies(context.Background(), a, FeatureParams{FeatureID: "todos"})
	require.NoError(t, err)
	assert.Empty(t, res.Error)
	deps, dependents, ok := strings.Cut(res.Content, "## Dependents")
	require.True(t, ok)
	assert.Contains(t, deps, "None.")
	assert.Contains(t, dependents, "`tags` (required)")

	res, err = HandleDependencies(context.Background(), a, FeatureParams{})
	require.NoError(t, err)
	assert.Equal(t, "feature_id is required", res.Error)
}

func TestHandleSetEnabled_Blocked(t *testing.T) {
	a := newTestApp(t)

	res, err := HandleSetEnabled(context.Background(), a, SetEnabledParams{FeatureID: "todos", Enabled: false})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Error)
	assert.Contains(t, res.Content, "cannot be disabled")
	assert.Contains(t, res.Content, "`tags`")

	check, err := HandleCanDisable(context.Background(), a, FeatureParams{FeatureID: "todos"})
	require.NoError(t, err)
	assert.Contains(t, check.Content, "cannot be disabled")
}

func TestHandleAddDependency(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	res, err := HandleAddDependency(ctx, a, AddDependencyParams{FeatureID: "todos", DependsOn: "tags"})
	require.NoError(t, err)
	assert.Contains(t, res.Error, "cycle")

	res, err = HandleAddDependency(ctx, a, AddDependencyParams{FeatureID: "todos", DependsOn: "tags", Type: "optional"})
	require.NoError(t, err)
	assert.Empty(t, res.Error)
	assert.Equal(t, "`todos` now depends on `tags` (optional).", res.Content)

	res, err = HandleAddDependency(ctx, a, AddDependencyParams{FeatureID: "todos", DependsOn: "missing"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Error)
}

func TestRespond(t *testing.T) {
	out, err := respond(&ToolResult{Content: "ok"}, nil)
	require.NoError(t, err)
	assert.False(t, out.IsError)

	out, err = respond(&ToolResult{Error: "bad"}, nil)
	require.NoError(t, err)
	assert.True(t, out.IsError)

	out, err = respond(nil, errors.New("store down"))
	require.NoError(t, err)
	assert.True(t, out.IsError)
}

func TestFormatFeatures_Empty(t *testing.T) {
	assert.Equal(t, "No features registered.", FormatFeatures(nil))
	assert.Equal(t, "Feature not found.", FormatFeature(nil))
	assert.Equal(t, "abc...", truncate("abcdef", 3))
}
