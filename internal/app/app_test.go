package app

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/TodoBuilder/internal/builder"
	"github.com/josephgoksu/TodoBuilder/internal/codegen"
	"github.com/josephgoksu/TodoBuilder/internal/config"
	"github.com/josephgoksu/TodoBuilder/internal/integrator"
	"github.com/josephgoksu/TodoBuilder/internal/registry"
	"github.com/josephgoksu/TodoBuilder/internal/testpipeline"
)

type echoProvider struct{}

func (echoProvider) Complete(_ context.Context, _, user string) (string, error) {
	i := strings.Index(user, "COMPONENT: ")
	if i < 0 {
		return "", fmt.Errorf("unexpected prompt")
	}
	name := strings.Fields(user[i+len("COMPONENT: "):])[0]
	return fmt.Sprintf(`{"files":[{"path":"src/components/%[1]s/%[1]s.tsx","content":"export const %[1]s = () => null"}],
"tests":[{"path":"src/components/%[1]s/%[1]s.test.tsx","content":"it('renders', () => {})"}]}`, name), nil
}

type passingRunner struct{ runs int }

func (r *passingRunner) Run(_ context.Context, run testpipeline.Run) (*testpipeline.Report, error) {
	r.runs++
	return &testpipeline.Report{Passed: len(run.Tests)}, nil
}

func newTestApp(t *testing.T) (*App, afero.Fs, *passingRunner) {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.ProjectRoot = "/project"
	cfg.DataDir = "/data"
	cfg.Policy.Dir = "/data/policies"

	fs := afero.NewMemMapFs()
	runner := &passingRunner{}
	a, err := New(context.Background(), cfg,
		WithFs(fs),
		WithStore(registry.NewMemoryStore()),
		WithProvider(echoProvider{}),
		WithTestRunner(runner))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a, fs, runner
}

func TestApp_BuildEndToEnd(t *testing.T) {
	a, fs, runner := newTestApp(t)
	ctx := context.Background()

	_, err := a.Register(ctx, registry.FeatureDefinition{ID: "todos", Name: "Todos", Enabled: true})
	require.NoError(t, err)

	report, err := a.Build(ctx, builder.Request{
		Feature:      builder.FeatureSpec{Name: "Todo Tags"},
		Dependencies: []registry.DependencySpec{{DependsOn: "todos", Type: registry.DependencyRequired}},
		Generation:   codegen.Request{Components: []codegen.ComponentSpec{{Name: "TagList"}}},
		Integration: integrator.Options{
			RunTests:     true,
			CreateBackup: true,
			TestConfig:   testpipeline.Config{RunUnit: true},
		},
	})
	require.NoError(t, err)
	require.True(t, report.Success, "errors: %v", report.Errors)
	assert.Equal(t, 1, runner.runs)

	data, err := afero.ReadFile(fs, "/project/src/components/TagList/TagList.tsx")
	require.NoError(t, err)
	assert.Contains(t, string(data), "TagList")

	deps, err := a.Registry.Dependencies(ctx, "todo-tags")
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, "todos", deps[0].DependsOn)

	res, err := a.SetEnabled(ctx, "todos", false)
	require.Error(t, err)
	require.NotNil(t, res.Check)
	assert.False(t, res.Check.CanDisable)
	assert.Equal(t, []string{"todo-tags"}, res.Check.DependentFeatures)
}

func TestApp_SetEnabled(t *testing.T) {
	a, _, _ := newTestApp(t)
	ctx := context.Background()
	_, err := a.Register(ctx, registry.FeatureDefinition{ID: "search", Name: "Search", Enabled: true})
	require.NoError(t, err)

	res, err := a.SetEnabled(ctx, "search", false)
	require.NoError(t, err)
	assert.False(t, res.Feature.Enabled)
	assert.True(t, res.Check.CanDisable)

	res, err = a.SetEnabled(ctx, "search", true)
	require.NoError(t, err)
	assert.True(t, res.Feature.Enabled)
}

func TestApp_ImportManifest(t *testing.T) {
	a, _, _ := newTestApp(t)
	manifest := `features:
  - id: tags
    name: Tags
    version: 1.0.0
    enabled: true
    dependencies:
      - dependsOn: todos
        type: required
  - id: todos
    name: Todos
    version: 1.0.0
    enabled: true
`
	got, err := a.ImportManifest(context.Background(), strings.NewReader(manifest))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "todos", got[0].ID)
}

func TestOpenStore_UnknownBackend(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Store.Backend = "mongo"
	_, err = OpenStore(context.Background(), cfg)
	assert.Error(t, err)

	cfg.Store.Backend = config.BackendMemory
	s, err := OpenStore(context.Background(), cfg)
	require.NoError(t, err)
	assert.NoError(t, s.Close())
}
