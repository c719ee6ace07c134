package registry

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josephgoksu/TodoBuilder/internal/apperr"
)

const todoManifest = `
features:
  - id: priority
    name: Priority
    version: 1.0.0
    components:
      - name: PrioritySelect
    dependencies:
      - dependsOn: base
        type: required
  - id: base
    name: Base Todos
    version: 1.0.0
  - name: Dark Mode
    enabled: false
`

func TestImport_OrdersByDependency(t *testing.T) {
	forEachStore(t, func(t *testing.T, m *Manager) {
		mf, err := ParseManifest(strings.NewReader(todoManifest))
		require.NoError(t, err)

		got, err := m.Import(context.Background(), mf)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "base", got[0].ID)
		assert.Equal(t, "priority", got[1].ID)
		assert.Equal(t, "dark-mode", got[2].ID)
		assert.False(t, got[2].Enabled)

		p, err := m.Get(context.Background(), "priority")
		require.NoError(t, err)
		require.Len(t, p.Components, 1)
		assert.Equal(t, "PrioritySelect", p.Components[0]["name"])

		check, err := m.CanDisable(context.Background(), "base")
		require.NoError(t, err)
		assert.Equal(t, []string{"priority"}, check.DependentFeatures)
	})
}

func TestImport_AllOrNothing(t *testing.T) {
	forEachStore(t, func(t *testing.T, m *Manager) {
		mf, err := ParseManifest(strings.NewReader(`
features:
  - id: base
    name: Base
  - id: priority
    name: Priority
    dependencies:
      - dependsOn: missing
`))
		require.NoError(t, err)

		_, err = m.Import(context.Background(), mf)
		assert.ErrorIs(t, err, ErrFeatureNotFound)

		all, err := m.List(context.Background())
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}

func TestImport_OptionalCycleAndForwardReference(t *testing.T) {
	forEachStore(t, func(t *testing.T, m *Manager) {
		ctx := context.Background()
		mf, err := ParseManifest(strings.NewReader(`
features:
  - id: search
    name: Search
    dependencies:
      - dependsOn: tags
        type: optional
  - id: tags
    name: Tags
    dependencies:
      - dependsOn: search
        type: optional
      - dependsOn: base
  - id: base
    name: Base
`))
		require.NoError(t, err)

		got, err := m.Import(ctx, mf)
		require.NoError(t, err)
		require.Len(t, got, 3)

		deps, err := m.Dependencies(ctx, "tags")
		require.NoError(t, err)
		require.Len(t, deps, 2)
		types := map[string]DependencyType{}
		for _, d := range deps {
			types[d.DependsOn] = d.Type
		}
		assert.Equal(t, DependencyRequired, types["base"])
		assert.Equal(t, DependencyOptional, types["search"])

		dependents, err := m.Dependents(ctx, "tags")
		require.NoError(t, err)
		require.Len(t, dependents, 1)
		assert.Equal(t, "search", dependents[0].FeatureID)
	})
}

func TestImport_RejectsRequiredCycle(t *testing.T) {
	forEachStore(t, func(t *testing.T, m *Manager) {
		mf, err := ParseManifest(strings.NewReader(`
features:
  - id: a
    name: A
    dependencies:
      - dependsOn: b
  - id: b
    name: B
    dependencies:
      - dependsOn: a
`))
		require.NoError(t, err)

		_, err = m.Import(context.Background(), mf)
		assert.ErrorIs(t, err, ErrDependencyCycle)

		all, err := m.List(context.Background())
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}

func TestParseManifest_UnknownField(t *testing.T) {
	_, err := ParseManifest(strings.NewReader("features:\n  - id: a\n    colour: red\n"))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}
