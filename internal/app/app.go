// Package app implements the compiler façade: batch compiles, watch cycles
// and cleanup, plus the CLI-facing build and watch commands.
package app

import (
	"context"
	"io"
	"path/filepath"
	"sync"

	"go.trai.ch/synapse/internal/adapters/fs"
	"go.trai.ch/synapse/internal/core/domain"
	"go.trai.ch/synapse/internal/core/ports"
	"go.trai.ch/synapse/internal/engine/scheduler"
)

// App represents the main application logic.
type App struct {
	configLoader ports.ConfigLoader
	resolver     ports.Resolver
	hasher       ports.Hasher
	caches       ports.CacheOpener
	transformer  ports.Transformer
	writer       ports.OutputWriter
	scheduler    *scheduler.Scheduler
	tracer       ports.Tracer
	logger       ports.Logger
	watcher      ports.Watcher
	stdout       io.Writer
	stderr       io.Writer

	// The store outlives a single compile so watch cycles share the memory tier.
	mu       sync.Mutex
	store    ports.CacheStore
	storeKey storeKey
}

type storeKey struct {
	root  string
	cache domain.CacheConfig
}

// New creates a new App instance.
func New(
	loader ports.ConfigLoader,
	resolver ports.Resolver,
	hasher ports.Hasher,
	caches ports.CacheOpener,
	transformer ports.Transformer,
	writer ports.OutputWriter,
	sched *scheduler.Scheduler,
	tracer ports.Tracer,
	log ports.Logger,
) *App {
	return &App{
		configLoader: loader,
		resolver:     resolver,
		hasher:       hasher,
		caches:       caches,
		transformer:  transformer,
		writer:       writer,
		scheduler:    sched,
		tracer:       tracer,
		logger:       log,
	}
}

// WithWatcher sets the file watcher used by Watch.
func (a *App) WithWatcher(w ports.Watcher) *App {
	a.watcher = w
	return a
}

// Close releases the cache store, if one is open.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

// cacheStore returns the open store for cfg, reopening it when the cache
// location or tiers changed since the last compile.
func (a *App) cacheStore(ctx context.Context, cfg domain.CompilerConfig) (ports.CacheStore, error) {
	key := storeKey{root: cfg.Root, cache: cfg.Cache}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.store != nil && a.storeKey == key {
		return a.store, nil
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("failed to close cache store: " + err.Error())
		}
		a.store = nil
	}
	s, err := a.caches.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.store, a.storeKey = s, key
	return s, nil
}

// projectDir joins a configured directory onto the project root.
func projectDir(cfg domain.CompilerConfig, dir string) string {
	if dir == "" || filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(cfg.Root, dir)
}

// skipDirs lists the directories that never hold sources: the cache and the output.
func skipDirs(cfg domain.CompilerConfig) []string {
	var out []string
	if d := projectDir(cfg, cfg.Cache.Dir); d != "" {
		out = append(out, d)
	}
	if d := projectDir(cfg, cfg.OutputDir); d != "" {
		out = append(out, d)
	}
	return out
}

// DefaultEntries lists every compilable file under the source directory.
func DefaultEntries(cfg domain.CompilerConfig) []string {
	return fs.SourceFiles(projectDir(cfg, cfg.SourceDir), skipDirs(cfg)...)
}
