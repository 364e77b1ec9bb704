package apps

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glasspane/webdesk/internal/config"
	"github.com/glasspane/webdesk/internal/logging"
	"github.com/glasspane/webdesk/internal/shared/types"
)

func constructorFor(id string) Constructor {
	return func() App {
		return &fakeApp{meta: types.AppMeta{ID: id, Name: id}, windowID: 1}
	}
}

func newTestLoader(table ModuleTable) *Loader {
	return NewLoader(table, config.Default().Loader, logging.NewNop())
}

func TestLoadAppConstructsInstance(t *testing.T) {
	l := newTestLoader(ModuleTable{
		"calculator": func(ctx context.Context) (Constructor, error) {
			return constructorFor("calculator"), nil
		},
	})

	instance, err := l.LoadApp(context.Background(), "calculator")
	require.NoError(t, err)
	assert.Equal(t, "calculator", instance.Meta().ID)
	assert.Equal(t, 1, l.CachedModules())
}

func TestLoadAppUnknownID(t *testing.T) {
	l := newTestLoader(ModuleTable{})

	_, err := l.LoadApp(context.Background(), "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModuleNotFound)
	assert.Contains(t, err.Error(), "ghost")
}

func TestLoadAppWrapsResolverFailure(t *testing.T) {
	boom := errors.New("import blew up")
	l := newTestLoader(ModuleTable{
		"bad": func(ctx context.Context) (Constructor, error) { return nil, boom },
	})

	_, err := l.LoadApp(context.Background(), "bad")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "bad")

	// Failures are not cached; the next call resolves again.
	_, err = l.LoadApp(context.Background(), "bad")
	require.Error(t, err)
}

func TestConcurrentLoadsResolveOnce(t *testing.T) {
	var resolutions atomic.Int32
	release := make(chan struct{})

	l := newTestLoader(ModuleTable{
		"calculator": func(ctx context.Context) (Constructor, error) {
			resolutions.Add(1)
			<-release
			return constructorFor("calculator"), nil
		},
	})

	const callers = 8
	var wg sync.WaitGroup
	instances := make([]App, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			instances[i], errs[i] = l.LoadApp(context.Background(), "calculator")
		}(i)
	}

	// Let every caller pile onto the single in-flight resolution.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), resolutions.Load(), "exactly one module resolution")
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, instances[i])
	}
}

func TestLoadAppContextCancelledWhileAwaiting(t *testing.T) {
	release := make(chan struct{})
	l := newTestLoader(ModuleTable{
		"slow": func(ctx context.Context) (Constructor, error) {
			<-release
			return constructorFor("slow"), nil
		},
	})

	// First caller holds the flight open.
	go func() { _, _ = l.LoadApp(context.Background(), "slow") }()
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := l.LoadApp(ctx, "slow")
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
}

func TestPreloadBestEffort(t *testing.T) {
	var loaded atomic.Int32
	l := newTestLoader(ModuleTable{
		"good": func(ctx context.Context) (Constructor, error) {
			loaded.Add(1)
			return constructorFor("good"), nil
		},
		"bad": func(ctx context.Context) (Constructor, error) {
			return nil, errors.New("nope")
		},
	})

	assert.NotPanics(t, func() {
		l.PreloadApps(context.Background(), []string{"good", "bad", "ghost"})
	})
	assert.Equal(t, int32(1), loaded.Load())
	assert.Equal(t, 1, l.CachedModules())
}

func TestIsAppAvailable(t *testing.T) {
	l := newTestLoader(ModuleTable{
		"calculator": func(ctx context.Context) (Constructor, error) {
			return constructorFor("calculator"), nil
		},
	})

	assert.True(t, l.IsAppAvailable("calculator"))
	assert.False(t, l.IsAppAvailable("ghost"))
	assert.Equal(t, []string{"calculator"}, l.AvailableApps())
}

func TestClearCacheForcesReresolve(t *testing.T) {
	var resolutions atomic.Int32
	l := newTestLoader(ModuleTable{
		"calculator": func(ctx context.Context) (Constructor, error) {
			resolutions.Add(1)
			return constructorFor("calculator"), nil
		},
	})

	_, err := l.LoadApp(context.Background(), "calculator")
	require.NoError(t, err)
	l.ClearCache()
	_, err = l.LoadApp(context.Background(), "calculator")
	require.NoError(t, err)

	assert.Equal(t, int32(2), resolutions.Load())
}

func TestCacheEvictionPastBound(t *testing.T) {
	table := ModuleTable{}
	ids := []string{"a", "b", "c"}
	for _, id := range ids {
		id := id
		table[id] = func(ctx context.Context) (Constructor, error) {
			return constructorFor(id), nil
		}
	}

	cfg := config.LoaderConfig{MaxCachedModules: 2}
	l := NewLoader(table, cfg, logging.NewNop())

	for _, id := range ids {
		_, err := l.LoadApp(context.Background(), id)
		require.NoError(t, err)
	}

	// Growing past the bound cleared the cache.
	assert.Zero(t, l.CachedModules())
}
