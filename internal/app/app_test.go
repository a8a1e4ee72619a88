package app_test

import (
	"context"
	"crypto/sha256"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/synapse/internal/adapters/telemetry"
	"go.trai.ch/synapse/internal/app"
	"go.trai.ch/synapse/internal/core/domain"
	"go.trai.ch/synapse/internal/core/ports"
	"go.trai.ch/synapse/internal/core/ports/mocks"
	"go.trai.ch/synapse/internal/engine/scheduler"
	"go.uber.org/mock/gomock"
)

type fixture struct {
	loader      *mocks.MockConfigLoader
	resolver    *mocks.MockResolver
	hasher      *mocks.MockHasher
	caches      *mocks.MockCacheOpener
	store       *mocks.MockCacheStore
	transformer *mocks.MockTransformer
	writer      *mocks.MockOutputWriter
	logger      *mocks.MockLogger
	watcher     *mocks.MockWatcher
	app         *app.App
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &fixture{
		loader:      mocks.NewMockConfigLoader(ctrl),
		resolver:    mocks.NewMockResolver(ctrl),
		hasher:      mocks.NewMockHasher(ctrl),
		caches:      mocks.NewMockCacheOpener(ctrl),
		store:       mocks.NewMockCacheStore(ctrl),
		transformer: mocks.NewMockTransformer(ctrl),
		writer:      mocks.NewMockOutputWriter(ctrl),
		logger:      mocks.NewMockLogger(ctrl),
		watcher:     mocks.NewMockWatcher(ctrl),
	}
	tracer := telemetry.NewNoOpTracer()
	f.app = app.New(
		f.loader, f.resolver, f.hasher, f.caches, f.transformer, f.writer,
		scheduler.NewScheduler(tracer), tracer, f.logger,
	).WithWatcher(f.watcher)

	f.logger.EXPECT().Info(gomock.Any()).AnyTimes()
	f.logger.EXPECT().Debug(gomock.Any()).AnyTimes()
	f.logger.EXPECT().Warn(gomock.Any()).AnyTimes()
	f.hasher.EXPECT().Fingerprint(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(u *domain.SourceUnit, _ domain.CompilerConfig, _ []ports.DependencyDigest) domain.CacheKey {
			return keyFor(u.Path)
		}).AnyTimes()
	f.store.EXPECT().Close().Return(nil).AnyTimes()
	return f
}

func keyFor(path string) domain.CacheKey {
	return domain.CacheKey(sha256.Sum256([]byte(path)))
}

// project is src/a.ts importing src/b.ts, plus an unrelated src/c.ts.
type project struct {
	root    string
	a, b, c string
}

func newProject(t *testing.T) project {
	t.Helper()
	root := t.TempDir()
	p := project{
		root: root,
		a:    filepath.Join(root, "src", "a.ts"),
		b:    filepath.Join(root, "src", "b.ts"),
		c:    filepath.Join(root, "src", "c.ts"),
	}
	files := map[string]string{
		p.a: "import { b } from \"./b\";\nexport const a = b;\n",
		p.b: "export const b: number = 1;\n",
		p.c: "export const c = 3;\n",
	}
	for path, content := range files {
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	return p
}

func (p project) entries() []string {
	return []string{p.a, p.b, p.c}
}

func (p project) config() domain.CompilerConfig {
	cfg := domain.DefaultConfig()
	cfg.Root = p.root
	return cfg
}

// graph builds a fresh graph on every call because planning mutates it.
func (p project) graph() *domain.DependencyGraph {
	g := domain.NewDependencyGraph(p.root)
	a := g.AddUnit(domain.NewSourceUnit(p.a, []byte("import { b } from \"./b\";\nexport const a = b;\n"),
		[]domain.Import{{Specifier: "./b", Kind: domain.ImportStatic, Line: 1, Column: 19}}))
	b := g.AddUnit(domain.NewSourceUnit(p.b, []byte("export const b: number = 1;\n"), nil))
	c := g.AddUnit(domain.NewSourceUnit(p.c, []byte("export const c = 3;\n"), nil))
	for _, id := range []domain.UnitID{a, b, c} {
		g.MarkEntry(id)
	}
	g.SetResolutions(a, []domain.Resolution{{
		Specifier:  "./b",
		Kind:       domain.ResolvedInternal,
		ImportKind: domain.ImportStatic,
		Target:     b,
		Path:       p.b,
		Line:       1,
		Column:     19,
	}})
	return g
}

func (f *fixture) expectResolve(p project) {
	f.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, []string, domain.CompilerConfig) (*domain.DependencyGraph, error) {
			return p.graph(), nil
		}).AnyTimes()
}

func compiled(_ context.Context, u *domain.SourceUnit, _ domain.ImportShapes, _ domain.CompilerConfig) (*domain.CompiledUnit, domain.Diagnostics) {
	shape := &domain.ExportShape{}
	shape.Add(domain.ExportBinding{Name: filepath.Base(u.Path), Kind: domain.ExportConst})
	return &domain.CompiledUnit{Code: []byte("// " + filepath.Base(u.Path) + "\n"), Shape: shape}, nil
}

func TestApp_CompileBatch_Miss(t *testing.T) {
	f := newFixture(t)
	p := newProject(t)
	f.expectResolve(p)
	f.caches.EXPECT().Open(gomock.Any(), gomock.Any()).Return(f.store, nil)
	f.store.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, nil).Times(3)
	f.transformer.EXPECT().Transform(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(compiled).Times(3)

	var (
		mu     sync.Mutex
		stored []*domain.CacheEntry
	)
	f.store.EXPECT().Put(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e *domain.CacheEntry) error {
			mu.Lock()
			defer mu.Unlock()
			stored = append(stored, e)
			return nil
		}).Times(3)

	result, err := f.app.CompileBatch(context.Background(), p.entries(), p.config())

	require.NoError(t, err)
	assert.False(t, result.Failed())
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 3, result.Stats.Files)
	assert.Equal(t, 3, result.Stats.Succeeded)
	assert.Equal(t, 3, result.Stats.CacheMisses)
	assert.Equal(t, 1, result.Stats.Layers)

	a, ok := result.File(p.a)
	require.True(t, ok)
	assert.Equal(t, "src/a.ts", a.RelPath)
	assert.Equal(t, "// a.ts\n", string(a.Code))
	assert.Equal(t, keyFor(p.a), a.Key)

	require.Len(t, stored, 3)
	sources := []string{stored[0].Source, stored[1].Source, stored[2].Source}
	assert.ElementsMatch(t, []string{"src/a.ts", "src/b.ts", "src/c.ts"}, sources)
}

func TestApp_CompileBatch_Hit(t *testing.T) {
	f := newFixture(t)
	p := newProject(t)
	f.expectResolve(p)
	f.caches.EXPECT().Open(gomock.Any(), gomock.Any()).Return(f.store, nil)
	f.store.EXPECT().Get(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, key domain.CacheKey) (*domain.CacheEntry, error) {
			return &domain.CacheEntry{
				Key:         key,
				Code:        []byte("cached\n"),
				Diagnostics: domain.Diagnostics{domain.Warnf(domain.CodeOpaqueImport, "", 1, 1, "opaque")},
			}, nil
		}).Times(3)

	result, err := f.app.CompileBatch(context.Background(), p.entries(), p.config())

	require.NoError(t, err)
	assert.Equal(t, 3, result.Stats.CacheHits)
	assert.InDelta(t, 1.0, result.Stats.HitRate(), 0.0001)
	for _, fr := range result.Files {
		assert.True(t, fr.Cached)
		assert.Equal(t, "cached\n", string(fr.Code))
	}
	require.Len(t, result.Diagnostics, 3)
	assert.Equal(t, "src/a.ts", result.Diagnostics[0].File)
	assert.False(t, result.Failed())
}

func TestApp_CompileBatch_PartialFailure(t *testing.T) {
	f := newFixture(t)
	p := newProject(t)
	f.expectResolve(p)
	f.caches.EXPECT().Open(gomock.Any(), gomock.Any()).Return(f.store, nil)
	f.store.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, nil).Times(3)
	f.store.EXPECT().Put(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	f.transformer.EXPECT().Transform(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, u *domain.SourceUnit, s domain.ImportShapes, cfg domain.CompilerConfig) (*domain.CompiledUnit, domain.Diagnostics) {
			if u.Path == p.c {
				return nil, domain.Diagnostics{domain.Errorf(domain.CodeParse, "", 1, 18, "unexpected token")}
			}
			return compiled(ctx, u, s, cfg)
		}).Times(3)

	result, err := f.app.CompileBatch(context.Background(), p.entries(), p.config())

	require.NoError(t, err)
	assert.True(t, result.Failed())
	assert.Equal(t, 2, result.Stats.Succeeded)
	assert.Equal(t, 1, result.Stats.Failed)

	c, ok := result.File(p.c)
	require.True(t, ok)
	assert.Equal(t, domain.StatusFailed, c.Status)
	assert.Empty(t, c.Code)

	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, "src/c.ts", result.Diagnostics[0].File)
	assert.Equal(t, domain.CodeParse, result.Diagnostics[0].Code)
}

func TestApp_CompileBatch_OrderedShapes(t *testing.T) {
	f := newFixture(t)
	p := newProject(t)
	f.expectResolve(p)
	f.caches.EXPECT().Open(gomock.Any(), gomock.Any()).Return(f.store, nil)
	f.store.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, nil).Times(3)
	f.store.EXPECT().Put(gomock.Any(), gomock.Any()).Return(nil).Times(3)

	var seen domain.ImportShapes
	f.transformer.EXPECT().Transform(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, u *domain.SourceUnit, s domain.ImportShapes, cfg domain.CompilerConfig) (*domain.CompiledUnit, domain.Diagnostics) {
			if u.Path == p.a {
				seen = s
			}
			return compiled(ctx, u, s, cfg)
		}).Times(3)

	cfg := p.config()
	cfg.ModuleFormat = domain.FormatCommonJS
	result, err := f.app.CompileBatch(context.Background(), p.entries(), cfg)

	require.NoError(t, err)
	assert.Equal(t, 2, result.Stats.Layers)
	imp := seen.Lookup("./b")
	assert.Equal(t, domain.ShapeKnown, imp.Status)
	require.NotNil(t, imp.Shape)
	_, ok := imp.Shape.Lookup("b.ts")
	assert.True(t, ok)
}

func TestApp_CompileBatch_DependencyDigests(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := newProject(t)
	resolver := mocks.NewMockResolver(ctrl)
	hasher := mocks.NewMockHasher(ctrl)
	caches := mocks.NewMockCacheOpener(ctrl)
	transformer := mocks.NewMockTransformer(ctrl)
	log := mocks.NewMockLogger(ctrl)
	tracer := telemetry.NewNoOpTracer()
	a := app.New(nil, resolver, hasher, caches, transformer, nil, scheduler.NewScheduler(tracer), tracer, log)

	resolver.EXPECT().Resolve(gomock.Any(), gomock.Any(), gomock.Any()).Return(p.graph(), nil)
	caches.EXPECT().Open(gomock.Any(), gomock.Any()).Return(nil, errors.New("disk full"))
	transformer.EXPECT().Transform(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(compiled).Times(3)

	var mu sync.Mutex
	digests := make(map[string][]ports.DependencyDigest)
	hasher.EXPECT().Fingerprint(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(u *domain.SourceUnit, _ domain.CompilerConfig, deps []ports.DependencyDigest) domain.CacheKey {
			mu.Lock()
			defer mu.Unlock()
			digests[filepath.Base(u.Path)] = deps
			return keyFor(u.Path)
		}).Times(3)

	cfg := p.config()
	cfg.ModuleFormat = domain.FormatCommonJS
	result, err := a.CompileBatch(context.Background(), p.entries(), cfg)

	require.NoError(t, err)
	require.Len(t, digests["a.ts"], 1)
	assert.Equal(t, "./b", digests["a.ts"][0].Specifier)
	assert.Equal(t, domain.ResolvedInternal, digests["a.ts"][0].Kind)
	assert.Contains(t, digests["a.ts"][0].Shape, "b.ts")
	assert.Empty(t, digests["c.ts"])

	// The cache could not be opened, so the batch degrades to misses with a warning.
	assert.Equal(t, 3, result.Stats.CacheMisses)
	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, domain.CodeCache, result.Diagnostics[0].Code)
	assert.Equal(t, domain.SeverityWarning, result.Diagnostics[0].Severity)
	assert.False(t, result.Failed())
}

func TestApp_CompileBatch_CacheErrorsDegrade(t *testing.T) {
	f := newFixture(t)
	p := newProject(t)
	f.expectResolve(p)
	f.caches.EXPECT().Open(gomock.Any(), gomock.Any()).Return(f.store, nil)
	f.store.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, domain.ErrCacheCorrupt).Times(3)
	f.store.EXPECT().Put(gomock.Any(), gomock.Any()).Return(domain.ErrCacheWriteFailed).Times(3)
	f.transformer.EXPECT().Transform(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(compiled).Times(3)

	result, err := f.app.CompileBatch(context.Background(), p.entries(), p.config())

	require.NoError(t, err)
	assert.Equal(t, 3, result.Stats.Succeeded)
	assert.Len(t, result.Diagnostics, 6)
	for _, d := range result.Diagnostics {
		assert.Equal(t, domain.CodeCache, d.Code)
		assert.Equal(t, domain.SeverityWarning, d.Severity)
	}
	assert.False(t, result.Failed())
}

func TestApp_CompileBatch_ReusesStore(t *testing.T) {
	f := newFixture(t)
	p := newProject(t)
	f.expectResolve(p)
	f.caches.EXPECT().Open(gomock.Any(), gomock.Any()).Return(f.store, nil).Times(1)
	f.store.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, nil).Times(6)
	f.store.EXPECT().Put(gomock.Any(), gomock.Any()).Return(nil).Times(6)
	f.transformer.EXPECT().Transform(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(compiled).Times(6)

	for range 2 {
		_, err := f.app.CompileBatch(context.Background(), p.entries(), p.config())
		require.NoError(t, err)
	}
	require.NoError(t, f.app.Close())
}

func TestApp_CompileBatch_InvalidConfig(t *testing.T) {
	f := newFixture(t)
	p := newProject(t)
	cfg := p.config()
	cfg.ModuleFormat = "es3"

	result, err := f.app.CompileBatch(context.Background(), p.entries(), cfg)

	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.ErrorContains(t, err, domain.ErrUnknownModuleFormat.Error())
}

func TestApp_CompileBatch_MissingEntry(t *testing.T) {
	f := newFixture(t)
	p := newProject(t)
	f.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, domain.ErrEntryNotFound)

	_, err := f.app.CompileBatch(context.Background(), []string{filepath.Join(p.root, "nope.ts")}, p.config())

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)
}

func TestApp_CompileBatch_Cancelled(t *testing.T) {
	f := newFixture(t)
	p := newProject(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, context.Canceled)

	_, err := f.app.CompileBatch(ctx, p.entries(), p.config())

	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, domain.ErrConfiguration)
}

func TestApp_CompileBatch_UnreadableUnit(t *testing.T) {
	f := newFixture(t)
	p := newProject(t)
	f.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, []string, domain.CompilerConfig) (*domain.DependencyGraph, error) {
			g := p.graph()
			id, _ := g.Lookup(p.c)
			g.MarkUnreadable(id)
			g.AddDiagnostic(domain.Errorf(domain.CodeResolution, "src/c.ts", 0, 0, "failed to read source file"))
			return g, nil
		})
	f.caches.EXPECT().Open(gomock.Any(), gomock.Any()).Return(f.store, nil)
	f.store.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, nil).Times(2)
	f.store.EXPECT().Put(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	f.transformer.EXPECT().Transform(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(compiled).Times(2)

	result, err := f.app.CompileBatch(context.Background(), p.entries(), p.config())

	require.NoError(t, err)
	assert.True(t, result.Failed())
	c, ok := result.File(p.c)
	require.True(t, ok)
	assert.False(t, c.Succeeded())
}

func TestApp_Clean(t *testing.T) {
	tests := []struct {
		name       string
		cacheOnly  bool
		wantOutput bool
	}{
		{name: "everything", cacheOnly: false, wantOutput: false},
		{name: "cache only", cacheOnly: true, wantOutput: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			p := newProject(t)
			cfg := p.config()
			cacheDir := filepath.Join(p.root, cfg.Cache.Dir)
			outDir := filepath.Join(p.root, cfg.OutputDir)
			require.NoError(t, os.MkdirAll(filepath.Join(cacheDir, "entries"), 0o750))
			require.NoError(t, os.MkdirAll(outDir, 0o750))

			err := f.app.Clean(context.Background(), cfg, app.CleanOptions{CacheOnly: tt.cacheOnly})

			require.NoError(t, err)
			assert.NoDirExists(t, cacheDir)
			if tt.wantOutput {
				assert.DirExists(t, outDir)
			} else {
				assert.NoDirExists(t, outDir)
			}
			assert.FileExists(t, p.a)
		})
	}
}

func TestApp_Clean_NothingToRemove(t *testing.T) {
	f := newFixture(t)
	p := newProject(t)

	require.NoError(t, f.app.Clean(context.Background(), p.config(), app.CleanOptions{}))
}

func TestApp_Clean_Selective(t *testing.T) {
	f := newFixture(t)
	p := newProject(t)
	cfg := p.config()
	outDir := filepath.Join(p.root, cfg.OutputDir)
	require.NoError(t, os.MkdirAll(outDir, 0o750))

	now := time.Now()
	entries := []domain.CacheEntryMeta{
		{Source: "src/a.ts", CreatedAt: now},
		{Source: "src/b.ts", CreatedAt: now.Add(-48 * time.Hour)},
		{Source: "src/c.ts", CreatedAt: now},
	}
	f.caches.EXPECT().Open(gomock.Any(), gomock.Any()).Return(f.store, nil)
	f.store.EXPECT().Invalidate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, pred func(domain.CacheEntryMeta) bool) (int, error) {
			var removed []string
			for _, m := range entries {
				if pred(m) {
					removed = append(removed, m.Source)
				}
			}
			assert.Equal(t, []string{"src/a.ts", "src/b.ts"}, removed)
			return len(removed), nil
		})

	err := f.app.Clean(context.Background(), cfg, app.CleanOptions{
		OlderThan: 24 * time.Hour,
		Sources:   []string{p.a},
	})

	require.NoError(t, err)
	assert.DirExists(t, outDir)
}

func TestApp_Clean_SelectiveCacheError(t *testing.T) {
	f := newFixture(t)
	p := newProject(t)
	f.caches.EXPECT().Open(gomock.Any(), gomock.Any()).Return(nil, errors.New("disk full"))

	err := f.app.Clean(context.Background(), p.config(), app.CleanOptions{Sources: []string{p.a}})

	require.ErrorIs(t, err, domain.ErrCleanFailed)
	assert.ErrorContains(t, err, "disk full")
}

func TestDefaultEntries(t *testing.T) {
	p := newProject(t)
	cfg := p.config()
	require.NoError(t, os.MkdirAll(filepath.Join(p.root, "src", "styles"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(p.root, "src", "styles", "x.css"), nil, 0o600))

	assert.Equal(t, []string{p.a, p.b, p.c}, app.DefaultEntries(cfg))
}
