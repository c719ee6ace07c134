package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Concurrent disable of a dependency and addition of a required edge onto it
// must serialize: either the edge exists and the target stays enabled, or the
// target is disabled and the edge was rejected.
func TestConcurrentDisableAndAddDependency(t *testing.T) {
	forEachStore(t, func(t *testing.T, m *Manager) {
		ctx := context.Background()

		for i := 0; i < 25; i++ {
			base := register(t, m, "base").ID
			priority := register(t, m, "priority").ID

			var (
				wg         sync.WaitGroup
				disableErr error
				addErr     error
			)
			start := make(chan struct{})
			wg.Add(2)
			go func() {
				defer wg.Done()
				<-start
				_, disableErr = m.Disable(ctx, base)
			}()
			go func() {
				defer wg.Done()
				<-start
				_, addErr = m.AddDependency(ctx, priority, base, DependencyRequired)
			}()
			close(start)
			wg.Wait()

			got, err := m.Get(ctx, base)
			require.NoError(t, err)
			deps, err := m.Dependents(ctx, base)
			require.NoError(t, err)

			if addErr == nil {
				require.Len(t, deps, 1)
				assert.True(t, got.Enabled, "base disabled under an enabled required dependent")
				assert.ErrorIs(t, disableErr, ErrDisableBlocked)
			} else {
				assert.ErrorIs(t, addErr, ErrDependencyDisabled)
				assert.NoError(t, disableErr)
				assert.False(t, got.Enabled)
				assert.Empty(t, deps)
			}

			require.NoError(t, m.Remove(ctx, priority), "cleanup %d", i)
			require.NoError(t, m.Remove(ctx, base))
		}
	})
}

func TestConcurrentEnableIsIdempotent(t *testing.T) {
	forEachStore(t, func(t *testing.T, m *Manager) {
		ctx := context.Background()
		_, err := m.Register(ctx, FeatureDefinition{ID: "base", Name: "base"})
		require.NoError(t, err)

		var wg sync.WaitGroup
		errs := make(chan error, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := m.Enable(ctx, "base")
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			assert.NoError(t, err)
		}

		got, err := m.Get(ctx, "base")
		require.NoError(t, err)
		assert.True(t, got.Enabled)
		assert.Equal(t, int64(2), got.Revision, "only the first enable writes")
	})
}
