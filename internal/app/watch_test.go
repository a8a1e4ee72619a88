package app_test

import (
	"context"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/synapse/internal/app"
	"go.trai.ch/synapse/internal/core/domain"
	"go.trai.ch/synapse/internal/core/ports"
	"go.uber.org/mock/gomock"
)

type counter struct {
	mu sync.Mutex
	n  map[string]int
}

func (c *counter) inc(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.n == nil {
		c.n = make(map[string]int)
	}
	c.n[path]++
	return c.n[path]
}

func (c *counter) get(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n[path]
}

func (f *fixture) expectWatcher(root string) chan ports.WatchEvent {
	events := make(chan ports.WatchEvent)
	var seq iter.Seq[ports.WatchEvent] = func(yield func(ports.WatchEvent) bool) {
		for ev := range events {
			if !yield(ev) {
				return
			}
		}
	}
	f.watcher.EXPECT().Start(gomock.Any(), root, gomock.Any()).Return(nil)
	f.watcher.EXPECT().Events().Return(seq)
	f.watcher.EXPECT().Stop().DoAndReturn(func() error {
		close(events)
		return nil
	})
	return events
}

func (f *fixture) expectMissingCache() {
	f.caches.EXPECT().Open(gomock.Any(), gomock.Any()).Return(f.store, nil)
	f.store.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()
	f.store.EXPECT().Put(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
}

func TestApp_Watch_RecompilesAffectedUnits(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := newFixture(t)
		p := newProject(t)
		f.expectResolve(p)
		f.expectMissingCache()
		events := f.expectWatcher(p.root)

		var calls counter
		f.transformer.EXPECT().Transform(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, u *domain.SourceUnit, s domain.ImportShapes, cfg domain.CompilerConfig) (*domain.CompiledUnit, domain.Diagnostics) {
				calls.inc(u.Path)
				return compiled(ctx, u, s, cfg)
			}).AnyTimes()

		ctx, cancel := context.WithCancel(t.Context())
		results := make(chan *domain.CompileResult, 8)
		errCh := make(chan error, 1)
		go func() {
			errCh <- f.app.Watch(ctx, p.entries(), p.config(), func(r *domain.CompileResult) {
				results <- r
			})
		}()

		first := <-results
		assert.Equal(t, 3, first.Stats.Files)
		assert.Equal(t, 3, first.Stats.CacheMisses)

		events <- ports.WatchEvent{Path: p.b, Operation: ports.OpWrite}
		second := <-results

		assert.Equal(t, 3, second.Stats.Files)
		c, ok := second.File(p.c)
		require.True(t, ok)
		assert.True(t, c.Cached)
		assert.Equal(t, "// c.ts\n", string(c.Code))
		assert.Equal(t, 2, calls.get(p.a))
		assert.Equal(t, 2, calls.get(p.b))
		assert.Equal(t, 1, calls.get(p.c))

		cancel()
		require.NoError(t, <-errCh)
	})
}

func TestApp_Watch_DiscardsStaleCycle(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := newFixture(t)
		p := newProject(t)
		f.expectResolve(p)
		f.expectMissingCache()
		events := f.expectWatcher(p.root)

		gate := make(chan struct{})
		var calls counter
		f.transformer.EXPECT().Transform(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, u *domain.SourceUnit, s domain.ImportShapes, cfg domain.CompilerConfig) (*domain.CompiledUnit, domain.Diagnostics) {
				if calls.inc(u.Path) == 2 && u.Path == p.b {
					<-gate
				}
				return compiled(ctx, u, s, cfg)
			}).AnyTimes()

		ctx, cancel := context.WithCancel(t.Context())
		results := make(chan *domain.CompileResult, 8)
		errCh := make(chan error, 1)
		go func() {
			errCh <- f.app.Watch(ctx, p.entries(), p.config(), func(r *domain.CompileResult) {
				results <- r
			})
		}()
		<-results

		// The second cycle blocks inside b.ts while b.ts changes again.
		events <- ports.WatchEvent{Path: p.b, Operation: ports.OpWrite}
		time.Sleep(2 * time.Second)
		require.Equal(t, 2, calls.get(p.b))
		events <- ports.WatchEvent{Path: p.b, Operation: ports.OpWrite}
		time.Sleep(2 * time.Second)
		assert.Empty(t, results)

		close(gate)
		third := <-results
		assert.Equal(t, 3, calls.get(p.b))
		assert.False(t, third.Failed())

		synctest.Wait()
		assert.Empty(t, results, "the stale cycle must not be reported")

		cancel()
		require.NoError(t, <-errCh)
	})
}

func TestApp_Watch_DefaultsToSourceDirectory(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		f := newFixture(t)
		p := newProject(t)
		f.expectMissingCache()
		events := f.expectWatcher(p.root)

		var mu sync.Mutex
		var seen [][]string
		f.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, entries []string, _ domain.CompilerConfig) (*domain.DependencyGraph, error) {
				mu.Lock()
				seen = append(seen, slices.Clone(entries))
				mu.Unlock()
				return p.graph(), nil
			}).AnyTimes()
		f.transformer.EXPECT().Transform(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(compiled).AnyTimes()

		ctx, cancel := context.WithCancel(t.Context())
		results := make(chan *domain.CompileResult, 8)
		errCh := make(chan error, 1)
		go func() {
			// Cobra hands over an empty, non-nil slice when no args are given.
			errCh <- f.app.Watch(ctx, []string{}, p.config(), func(r *domain.CompileResult) {
				results <- r
			})
		}()

		first := <-results
		assert.False(t, first.Failed())
		assert.Equal(t, 3, first.Stats.Files)

		d := filepath.Join(p.root, "src", "extra.ts")
		require.NoError(t, os.WriteFile(d, []byte("export const d = 4;\n"), 0o600))
		events <- ports.WatchEvent{Path: d, Operation: ports.OpCreate}
		<-results

		cancel()
		require.NoError(t, <-errCh)

		mu.Lock()
		defer mu.Unlock()
		require.Len(t, seen, 2)
		assert.Equal(t, p.entries(), seen[0])
		assert.Equal(t, append(p.entries(), d), seen[1])
	})
}

func TestApp_Watch_InvalidConfig(t *testing.T) {
	f := newFixture(t)
	p := newProject(t)
	cfg := p.config()
	cfg.ModuleFormat = "es3"

	err := f.app.Watch(context.Background(), p.entries(), cfg, func(*domain.CompileResult) {})

	require.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestUnion(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, app.Union([]string{"c", "a"}, []string{"b", "a"}))
	assert.Empty(t, app.Union(nil, nil))
}

func TestStale(t *testing.T) {
	assert.True(t, app.Stale([]string{"/p/b.ts"}, "/p/a.ts", "/p/b.ts"))
	assert.False(t, app.Stale([]string{"/p/c.ts"}, "/p/a.ts", "/p/b.ts"))
	assert.False(t, app.Stale(nil, "/p/a.ts"))
}

func TestRelevant(t *testing.T) {
	assert.True(t, app.Relevant("/p/src/a.tsx"))
	assert.True(t, app.Relevant("/p/package.json"))
	assert.True(t, app.Relevant("/p/synapse.yaml"))
	assert.False(t, app.Relevant("/p/README.md"))
}

func TestNeedsFull(t *testing.T) {
	p := newProject(t)
	prev := &domain.CompileResult{Files: []domain.FileResult{{Path: p.a}, {Path: p.b}}}

	assert.False(t, app.NeedsFull([]string{p.b}, prev))
	assert.True(t, app.NeedsFull([]string{p.c}, prev), "new file")
	assert.True(t, app.NeedsFull([]string{filepath.Join(p.root, "package.json")}, prev))

	require.NoError(t, os.Remove(p.b))
	assert.True(t, app.NeedsFull([]string{p.b}, prev), "removed file")
}
