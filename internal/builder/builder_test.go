package builder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/TodoBuilder/internal/apperr"
	"github.com/josephgoksu/TodoBuilder/internal/codegen"
	"github.com/josephgoksu/TodoBuilder/internal/integrator"
	"github.com/josephgoksu/TodoBuilder/internal/registry"
)

// componentProvider answers component prompts with a single file and fails
// for the names listed in broken.
type componentProvider struct {
	broken map[string]bool
}

func (p componentProvider) Complete(_ context.Context, _, user string) (string, error) {
	for name := range p.broken {
		if strings.Contains(user, "COMPONENT: "+name) {
			return "", errors.New("provider overloaded")
		}
	}
	name := "Unknown"
	if i := strings.Index(user, "COMPONENT: "); i >= 0 {
		name = strings.Fields(user[i+len("COMPONENT: "):])[0]
	}
	return fmt.Sprintf(`{"files":[{"path":"src/components/%[1]s/%[1]s.tsx","content":"export function %[1]s() {}"}],"tests":[]}`, name), nil
}

func newBuilder(t *testing.T, broken ...string) (*Builder, *registry.Manager, afero.Fs) {
	t.Helper()
	b := map[string]bool{}
	for _, n := range broken {
		b[n] = true
	}
	reg := registry.NewManager(registry.NewMemoryStore())
	fs := afero.NewMemMapFs()
	gen := codegen.NewGenerator(componentProvider{broken: b}, codegen.Config{})
	integ := integrator.New(reg, integrator.Config{Fs: fs, ProjectRoot: "/project", BackupDir: "/data/backups"})
	return New(gen, integ, nil), reg, fs
}

func TestBuild_PartialFailureStillIntegrates(t *testing.T) {
	b, reg, fs := newBuilder(t, "Broken")
	ctx := context.Background()

	report, err := b.Build(ctx, Request{
		Feature: FeatureSpec{Name: "Todo Tags"},
		Generation: codegen.Request{Components: []codegen.ComponentSpec{
			{Name: "TagList"}, {Name: "Broken"},
		}},
	})
	require.NoError(t, err)
	assert.False(t, report.Success)
	assert.Equal(t, "todo-tags", report.FeatureID)
	require.Len(t, report.Items, 2)
	assert.True(t, report.Items[0].OK())
	assert.False(t, report.Items[1].OK())
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "component Broken")

	require.NotNil(t, report.Integration)
	assert.True(t, report.Integration.Success)
	assert.Equal(t, []string{"src/components/TagList/TagList.tsx"}, report.Integration.FilesCreated)

	exists, err := afero.Exists(fs, "/project/src/components/TagList/TagList.tsx")
	require.NoError(t, err)
	assert.True(t, exists)

	feature, err := reg.Get(ctx, "todo-tags")
	require.NoError(t, err)
	require.Len(t, feature.Components, 1)
	assert.Equal(t, "TagList", feature.Components[0]["name"])
}

func TestBuild_AllSucceed(t *testing.T) {
	b, _, _ := newBuilder(t)
	report, err := b.Build(context.Background(), Request{
		Feature:    FeatureSpec{ID: "tags", Name: "Tags"},
		Generation: codegen.Request{Components: []codegen.ComponentSpec{{Name: "TagList"}, {Name: "TagBadge"}}},
	})
	require.NoError(t, err)
	assert.True(t, report.Success)
	assert.Empty(t, report.Errors)
	assert.Len(t, report.Integration.FilesCreated, 2)
}

func TestBuild_NothingGeneratedSkipsIntegration(t *testing.T) {
	b, reg, _ := newBuilder(t, "Broken")
	report, err := b.Build(context.Background(), Request{
		Feature:    FeatureSpec{ID: "tags", Name: "Tags"},
		Generation: codegen.Request{Components: []codegen.ComponentSpec{{Name: "Broken"}}},
	})
	require.NoError(t, err)
	assert.False(t, report.Success)
	assert.Nil(t, report.Integration)
	assert.Contains(t, report.Errors, "nothing was generated; integration skipped")

	_, err = reg.Get(context.Background(), "tags")
	assert.ErrorIs(t, err, registry.ErrFeatureNotFound)
}

func TestBuild_DryRun(t *testing.T) {
	b, reg, fs := newBuilder(t)
	report, err := b.Build(context.Background(), Request{
		Feature:     FeatureSpec{ID: "tags", Name: "Tags"},
		Generation:  codegen.Request{Components: []codegen.ComponentSpec{{Name: "TagList"}}},
		Integration: integrator.Options{DryRun: true},
	})
	require.NoError(t, err)
	assert.True(t, report.Success)
	assert.True(t, report.Integration.DryRun)

	exists, err := afero.DirExists(fs, "/project")
	require.NoError(t, err)
	assert.False(t, exists)
	features, err := reg.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, features)
}

func TestBuild_FeatureDefaults(t *testing.T) {
	b, reg, _ := newBuilder(t)
	ctx := context.Background()

	_, err := b.Build(ctx, Request{
		Feature:    FeatureSpec{Name: "Tags"},
		Generation: codegen.Request{Components: []codegen.ComponentSpec{{Name: "TagList"}}},
	})
	require.NoError(t, err)
	tags, err := reg.Get(ctx, "tags")
	require.NoError(t, err)
	assert.True(t, tags.Enabled)
	assert.Equal(t, DefaultVersion, tags.Version)

	off := false
	_, err = b.Build(ctx, Request{
		Feature:    FeatureSpec{Name: "Search", Version: "0.2.0", Enabled: &off},
		Generation: codegen.Request{Components: []codegen.ComponentSpec{{Name: "SearchBox"}}},
	})
	require.NoError(t, err)
	search, err := reg.Get(ctx, "search")
	require.NoError(t, err)
	assert.False(t, search.Enabled)
	assert.Equal(t, "0.2.0", search.Version)
}

func TestBuild_Validation(t *testing.T) {
	b, _, _ := newBuilder(t)
	_, err := b.Build(context.Background(), Request{Generation: codegen.Request{Migrations: []string{"x"}}})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = b.Build(context.Background(), Request{Feature: FeatureSpec{Name: "Tags"}})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestRecent(t *testing.T) {
	b, _, _ := newBuilder(t)
	b.history = 2
	for _, name := range []string{"A", "B", "C"} {
		_, err := b.Build(context.Background(), Request{
			Feature:     FeatureSpec{Name: "Feature " + name},
			Generation:  codegen.Request{Components: []codegen.ComponentSpec{{Name: name + "View"}}},
			Integration: integrator.Options{DryRun: true},
		})
		require.NoError(t, err)
	}
	recent := b.Recent()
	require.Len(t, recent, 2)
	assert.Equal(t, "feature-c", recent[0].FeatureID)
	assert.Equal(t, "feature-b", recent[1].FeatureID)
}
