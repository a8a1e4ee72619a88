package watcher_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/synapse/internal/adapters/watcher"
	"go.trai.ch/synapse/internal/core/ports"
	"go.trai.ch/synapse/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func startWatcher(t *testing.T, root string, skip ...string) <-chan ports.WatchEvent {
	t.Helper()
	ctrl := gomock.NewController(t)
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Warn(gomock.Any()).AnyTimes()

	w, err := watcher.NewWatcher(log)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx, root, skip))
	t.Cleanup(func() {
		cancel()
		_ = w.Stop()
	})

	out := make(chan ports.WatchEvent, 64)
	go func() {
		for e := range w.Events() {
			out <- e
		}
		close(out)
	}()
	return out
}

// waitFor returns the first event for path, or fails after a timeout.
func waitFor(t *testing.T, events <-chan ports.WatchEvent, path string) ports.WatchEvent {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e, ok := <-events:
			require.True(t, ok, "watcher closed before %s", path)
			if e.Path == path {
				return e
			}
		case <-timeout:
			t.Fatalf("no event for %s", path)
		}
	}
}

// assertQuiet fails when an event for a path in paths arrives within d.
func assertQuiet(t *testing.T, events <-chan ports.WatchEvent, d time.Duration, paths ...string) {
	t.Helper()
	deadline := time.After(d)
	for {
		select {
		case e := <-events:
			for _, p := range paths {
				assert.NotEqual(t, p, e.Path)
			}
		case <-deadline:
			return
		}
	}
}

func TestWatcher_ReportsWrites(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(src, 0o750))
	file := filepath.Join(src, "a.ts")
	require.NoError(t, os.WriteFile(file, []byte("export const a = 1;"), 0o600))

	events := startWatcher(t, root)
	require.NoError(t, os.WriteFile(file, []byte("export const a = 2;"), 0o600))

	e := waitFor(t, events, file)
	assert.Contains(t, []ports.WatchOp{ports.OpWrite, ports.OpCreate}, e.Operation)
}

func TestWatcher_WatchesNewDirectories(t *testing.T) {
	root := t.TempDir()
	events := startWatcher(t, root)

	dir := filepath.Join(root, "lib")
	require.NoError(t, os.MkdirAll(dir, 0o750))
	time.Sleep(100 * time.Millisecond)

	file := filepath.Join(dir, "b.ts")
	require.NoError(t, os.WriteFile(file, []byte("export {};"), 0o600))
	waitFor(t, events, file)
}

func TestWatcher_SkipsConfiguredAndVendoredDirs(t *testing.T) {
	root := t.TempDir()
	dist := filepath.Join(root, "dist")
	modules := filepath.Join(root, "node_modules")
	for _, d := range []string{dist, modules} {
		require.NoError(t, os.MkdirAll(d, 0o750))
	}
	events := startWatcher(t, root, dist)

	skippedFiles := []string{filepath.Join(dist, "a.js"), filepath.Join(modules, "x.js")}
	for _, f := range skippedFiles {
		require.NoError(t, os.WriteFile(f, []byte("x"), 0o600))
	}
	marker := filepath.Join(root, "marker.ts")
	require.NoError(t, os.WriteFile(marker, []byte("x"), 0o600))

	waitFor(t, events, marker)
	assertQuiet(t, events, 200*time.Millisecond, skippedFiles...)
}

func TestWatcher_ContentChange(t *testing.T) {
	ctrl := gomock.NewController(t)
	w, err := watcher.NewWatcher(mocks.NewMockLogger(ctrl))
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	file := filepath.Join(t.TempDir(), "a.ts")
	require.NoError(t, os.WriteFile(file, []byte("one"), 0o600))

	assert.True(t, watcher.Changed(w, file), "first sighting")
	assert.False(t, watcher.Changed(w, file), "same content")
	require.NoError(t, os.WriteFile(file, []byte("two"), 0o600))
	assert.True(t, watcher.Changed(w, file))
	assert.True(t, watcher.Changed(w, filepath.Join(t.TempDir(), "missing.ts")))
}
