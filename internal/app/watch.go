package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"

	"go.trai.ch/synapse/internal/adapters/watcher"
	"go.trai.ch/synapse/internal/core/domain"
	"go.trai.ch/zerr"
)

// ChangeFunc receives the result of every watch cycle that was not superseded
// by a later change.
type ChangeFunc func(*domain.CompileResult)

// snapshot is what a watch cycle keeps of the compile before it.
type snapshot struct {
	result *domain.CompileResult
	// unitDiags holds the diagnostics each unit produced itself, by source path.
	unitDiags map[string]domain.Diagnostics
	// compiled holds the source paths the cycle actually recompiled.
	compiled map[string]bool
}

type cycleOutcome struct {
	changed []string
	result  *domain.CompileResult
	snap    *snapshot
	err     error
}

// Watch compiles entries once, then recompiles whatever a file change can
// affect until ctx is cancelled. Nil entries mean every file under the source
// directory, listed again on each cycle. onChange is called once per cycle
// whose inputs did not change again while it ran.
func (a *App) Watch(ctx context.Context, entries []string, cfg domain.CompilerConfig, onChange ChangeFunc) error {
	return a.watch(ctx, a.runner(), entries, cfg, onChange)
}

//nolint:cyclop // event loop
func (a *App) watch(
	ctx context.Context,
	rn runner,
	entries []string,
	cfg domain.CompilerConfig,
	onChange ChangeFunc,
) error {
	if a.watcher == nil {
		return zerr.Wrap(errors.New("no file watcher configured"), domain.ErrWatchFailed.Error())
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg = cfg.Normalize()
	if cfg.Root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return zerr.Wrap(err, domain.ErrWatchFailed.Error())
		}
		cfg.Root = wd
	}
	entriesFor := func() []string {
		if len(entries) > 0 {
			return entries
		}
		return DefaultEntries(cfg)
	}

	if err := a.watcher.Start(ctx, cfg.Root, skipDirs(cfg)); err != nil {
		return err
	}
	defer func() {
		if err := a.watcher.Stop(); err != nil {
			a.logger.Warn("failed to stop file watcher: " + err.Error())
		}
	}()

	batches := make(chan []string)
	deb := watcher.NewDebouncer(watcher.DefaultDebounceWindow, func(paths []string) {
		select {
		case batches <- paths:
		case <-ctx.Done():
		}
	})
	defer deb.Stop()
	go func() {
		for ev := range a.watcher.Events() {
			if relevant(ev.Path) {
				deb.Add(ev.Path)
			}
		}
	}()

	done := make(chan cycleOutcome, 1)
	var prev *snapshot
	start := func(changed []string) {
		base := prev
		if base == nil || needsFull(changed, base) {
			base, changed = nil, nil
		}
		go func() {
			result, snap, err := a.compile(ctx, rn, entriesFor(), cfg, changed, base)
			done <- cycleOutcome{changed: changed, result: result, snap: snap, err: err}
		}()
	}

	start(nil)
	running := true
	var pending []string
	for {
		select {
		case <-ctx.Done():
			if running {
				<-done
			}
			return nil

		case paths := <-batches:
			pending = union(pending, paths)
			if !running {
				start(pending)
				running, pending = true, nil
			}

		case out := <-done:
			running = false
			switch {
			case out.err != nil && ctx.Err() != nil:
				return nil
			case out.err != nil:
				a.logger.Error(out.err)
			case stale(pending, out.snap):
				a.logger.Debug("discarding stale watch cycle")
				pending = union(out.changed, pending)
				if out.changed == nil {
					// A full cycle was superseded; the retry must be full too.
					prev = nil
				}
			default:
				prev = out.snap
				onChange(out.result)
			}
			if len(pending) > 0 {
				start(pending)
				running, pending = true, nil
			}
		}
	}
}

// relevant reports whether a change to path can alter compile output.
func relevant(path string) bool {
	if domain.DetectLanguage(path) != domain.LangUnknown {
		return true
	}
	name := filepath.Base(path)
	return name == domain.PackageManifest || slices.Contains(domain.ConfigFileNames(), name)
}

// needsFull reports whether changed adds or removes files, or touches package
// metadata, so the previous graph cannot be reused.
func needsFull(changed []string, prev *snapshot) bool {
	for _, p := range changed {
		if domain.DetectLanguage(p) == domain.LangUnknown {
			return true
		}
		if _, err := os.Stat(p); err != nil {
			return true
		}
		if _, ok := prev.result.File(p); !ok {
			return true
		}
	}
	return false
}

// stale reports whether any path that changed while a cycle ran was one the
// cycle compiled.
func stale(arrived []string, snap *snapshot) bool {
	if snap == nil {
		return false
	}
	for _, p := range arrived {
		if snap.compiled[p] {
			return true
		}
	}
	return false
}

func union(a, b []string) []string {
	out := append(slices.Clone(a), b...)
	slices.Sort(out)
	return slices.Compact(out)
}
