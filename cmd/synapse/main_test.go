package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/synapse/internal/adapters/telemetry"
	"go.trai.ch/synapse/internal/app"
	"go.trai.ch/synapse/internal/core/domain"
	"go.trai.ch/synapse/internal/core/ports"
	"go.trai.ch/synapse/internal/core/ports/mocks"
	"go.trai.ch/synapse/internal/engine/scheduler"
	"go.uber.org/mock/gomock"
)

type appMocks struct {
	loader   *mocks.MockConfigLoader
	resolver *mocks.MockResolver
	logger   *mocks.MockLogger
	watcher  *mocks.MockWatcher
	app      *app.App
}

func newApp(ctrl *gomock.Controller) appMocks {
	m := appMocks{
		loader:   mocks.NewMockConfigLoader(ctrl),
		resolver: mocks.NewMockResolver(ctrl),
		logger:   mocks.NewMockLogger(ctrl),
		watcher:  mocks.NewMockWatcher(ctrl),
	}
	tracer := telemetry.NewNoOpTracer()
	m.app = app.New(
		m.loader,
		m.resolver,
		mocks.NewMockHasher(ctrl),
		mocks.NewMockCacheOpener(ctrl),
		mocks.NewMockTransformer(ctrl),
		mocks.NewMockOutputWriter(ctrl),
		scheduler.NewScheduler(tracer),
		tracer,
		m.logger,
	).WithWatcher(m.watcher)
	return m
}

func (m appMocks) provider() ComponentProvider {
	return func(context.Context) (*app.Components, func(), error) {
		return app.NewComponents(m.app, m.logger), func() {}, nil
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	cwd, _ := os.Getwd()
	_ = os.Chdir(dir)
	t.Cleanup(func() {
		_ = os.Chdir(cwd)
	})
}

// TestRun_Success verifies that the run function returns 0 when the command succeeds.
func TestRun_Success(t *testing.T) {
	m := newApp(gomock.NewController(t))

	stdout := new(bytes.Buffer)
	exitCode := run(context.Background(), []string{"version"}, stdout, io.Discard, m.provider())

	assert.Equal(t, 0, exitCode)
	assert.Contains(t, stdout.String(), "synapse version")
}

// TestRun_InitializationError verifies that run returns 1 when component initialization fails.
func TestRun_InitializationError(t *testing.T) {
	provider := func(context.Context) (*app.Components, func(), error) {
		return nil, nil, errors.New("init failed")
	}

	stderr := new(bytes.Buffer)
	exitCode := run(context.Background(), []string{"version"}, io.Discard, stderr, provider)

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "Error: init failed")
}

// TestRun_ExecutionError verifies that run logs and returns 1 when the command fails.
func TestRun_ExecutionError(t *testing.T) {
	m := newApp(gomock.NewController(t))
	m.logger.EXPECT().Error(gomock.Any()).Times(1)
	m.loader.EXPECT().Load(gomock.Any()).Return(domain.CompilerConfig{}, errors.New("load failed"))
	chdir(t, t.TempDir())

	exitCode := run(context.Background(), []string{"build"}, io.Discard, io.Discard, m.provider())

	assert.Equal(t, 1, exitCode)
}

// TestRun_BuildFailedIsNotLogged verifies that a failed build exits 1 without
// logging the error a second time.
func TestRun_BuildFailedIsNotLogged(t *testing.T) {
	m := newApp(gomock.NewController(t))
	dir := t.TempDir()
	chdir(t, dir)

	cfg := domain.DefaultConfig()
	cfg.Root = dir
	m.loader.EXPECT().Load(gomock.Any()).Return(cfg, nil)
	m.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, domain.ErrBuildFailed)
	m.logger.EXPECT().Info(gomock.Any()).AnyTimes()

	// No Error expectation: logging would fail the test.
	exitCode := run(context.Background(), []string{"build", filepath.Join(dir, "a.ts"), "--output", "json"},
		io.Discard, io.Discard, m.provider())
	assert.Equal(t, 1, exitCode)
}

// TestRun_Signal verifies that watch stops when the context is cancelled.
func TestRun_Signal(t *testing.T) {
	m := newApp(gomock.NewController(t))
	dir := t.TempDir()
	chdir(t, dir)

	cfg := domain.DefaultConfig()
	cfg.Root = dir
	m.loader.EXPECT().Load(gomock.Any()).Return(cfg, nil)
	m.logger.EXPECT().Info(gomock.Any()).AnyTimes()
	m.logger.EXPECT().Debug(gomock.Any()).AnyTimes()
	m.logger.EXPECT().Error(gomock.Any()).AnyTimes()

	started := make(chan struct{})
	m.watcher.EXPECT().Start(gomock.Any(), dir, gomock.Any()).Return(nil)
	m.watcher.EXPECT().Events().Return(func(func(ports.WatchEvent) bool) {})
	m.watcher.EXPECT().Stop().Return(nil)
	m.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ []string, _ domain.CompilerConfig) (*domain.DependencyGraph, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		})

	ctx, cancel := context.WithCancel(context.Background())
	exitCh := make(chan int)
	go func() {
		exitCh <- run(ctx, []string{"watch", "--output", "json"}, io.Discard, io.Discard, m.provider())
	}()

	<-started
	cancel()

	select {
	case code := <-exitCh:
		assert.Equal(t, 0, code)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancellation")
	}
}
