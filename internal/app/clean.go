package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"go.trai.ch/synapse/internal/core/domain"
	"go.trai.ch/zerr"
)

// CleanOptions configuration for the Clean method.
type CleanOptions struct {
	// CacheOnly keeps the output directory.
	CacheOnly bool
	// OlderThan and Sources select individual cache entries to drop instead of
	// removing whole directories. An entry matching either is removed.
	OlderThan time.Duration
	Sources   []string
}

func (o CleanOptions) selective() bool {
	return o.OlderThan > 0 || len(o.Sources) > 0
}

// Clean removes the cache directory and, unless CacheOnly is set, the output
// directory. With OlderThan or Sources set it removes only the matching cache
// entries and keeps both directories. The remote cache tier is never touched.
func (a *App) Clean(ctx context.Context, cfg domain.CompilerConfig, options CleanOptions) error {
	if cfg.Root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return zerr.Wrap(err, "failed to get working directory")
		}
		cfg.Root = wd
	}
	if options.selective() {
		return a.invalidate(ctx, cfg, options)
	}
	if err := a.Close(); err != nil {
		a.logger.Warn("failed to close cache store: " + err.Error())
	}

	var errs error
	remove := func(path string, name string) {
		if path == "" {
			return
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			a.logger.Debug(fmt.Sprintf("%s not present", name))
			return
		}
		a.logger.Info(fmt.Sprintf("removing %s...", name))
		if err := os.RemoveAll(path); err != nil {
			errs = errors.Join(errs, zerr.With(zerr.Wrap(err, fmt.Sprintf("failed to remove %s", name)), "path", path))
			return
		}
		a.logger.Info(fmt.Sprintf("removed %s", name))
	}

	remove(projectDir(cfg, cfg.Cache.Dir), "cache")
	if !options.CacheOnly {
		remove(projectDir(cfg, cfg.OutputDir), "output")
	}
	if errs != nil {
		return errors.Join(domain.ErrCleanFailed, errs)
	}
	return nil
}

func (a *App) invalidate(ctx context.Context, cfg domain.CompilerConfig, options CleanOptions) error {
	var preds []func(domain.CacheEntryMeta) bool
	for _, src := range options.Sources {
		abs, err := filepath.Abs(src)
		if err != nil {
			return errors.Join(domain.ErrCleanFailed, zerr.With(zerr.Wrap(err, "failed to resolve path"), "path", src))
		}
		preds = append(preds, domain.ForSource(domain.RelPath(cfg.Root, abs)))
	}
	if options.OlderThan > 0 {
		preds = append(preds, domain.OlderThan(time.Now().Add(-options.OlderThan)))
	}

	store, err := a.cacheStore(ctx, cfg)
	if err != nil {
		return errors.Join(domain.ErrCleanFailed, err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.logger.Warn("failed to close cache store: " + err.Error())
		}
	}()

	n, err := store.Invalidate(ctx, func(m domain.CacheEntryMeta) bool {
		return slices.ContainsFunc(preds, func(match func(domain.CacheEntryMeta) bool) bool { return match(m) })
	})
	if err != nil {
		return errors.Join(domain.ErrCleanFailed, err)
	}
	a.logger.Info(fmt.Sprintf("removed %d cache entries", n))
	return nil
}
