package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.trai.ch/synapse/internal/adapters/config"
	"go.trai.ch/synapse/internal/adapters/detector"
	"go.trai.ch/synapse/internal/adapters/linear"
	"go.trai.ch/synapse/internal/adapters/telemetry"
	"go.trai.ch/synapse/internal/core/domain"
	"go.trai.ch/synapse/internal/core/ports"
	"go.trai.ch/synapse/internal/engine/scheduler"
	"go.trai.ch/zerr"
)

// BuildOptions configuration for the Build and RunWatch methods.
type BuildOptions struct {
	// ConfigPath names the config file. Empty means discover it from the working directory.
	ConfigPath string
	Overrides  config.Overrides
	// OutputMode is auto, pretty or json.
	OutputMode string
	Verbose    bool
}

// outputConfigurer is implemented by loggers that can switch format and level.
type outputConfigurer interface {
	SetJSON(enable bool)
	SetVerbose(enable bool)
}

// WithOutput sets where reports and progress are written.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout, a.stderr = stdout, stderr
	return a
}

func (a *App) streams() (io.Writer, io.Writer) {
	stdout, stderr := a.stdout, a.stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return stdout, stderr
}

// LoadConfig loads the project configuration and applies the command-line overrides.
func (a *App) LoadConfig(path string, overrides config.Overrides) (domain.CompilerConfig, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return domain.CompilerConfig{}, zerr.Wrap(err, "failed to get working directory")
	}
	var base domain.CompilerConfig
	if path != "" {
		base, err = a.configLoader.LoadFile(path)
	} else {
		base, err = a.configLoader.Load(cwd)
	}
	if err != nil {
		return domain.CompilerConfig{}, zerr.Wrap(err, "failed to load configuration")
	}
	return config.Merge(base, overrides, cwd)
}

// Build compiles entries, or every source file when none are given, writes
// the outputs and prints the report. It returns ErrBuildFailed when any file
// failed or any error diagnostic was reported.
func (a *App) Build(ctx context.Context, entries []string, opts BuildOptions) error {
	cfg, rn, renderer, shutdown, err := a.prepare(opts)
	if err != nil {
		return err
	}
	defer func() {
		_ = shutdown(context.WithoutCancel(ctx))
	}()
	defer func() {
		if err := a.Close(); err != nil {
			a.logger.Warn("failed to close cache store: " + err.Error())
		}
	}()

	if len(entries) == 0 {
		entries = DefaultEntries(cfg)
	} else if entries, err = absPaths(entries); err != nil {
		return err
	}

	if err := renderer.Start(ctx); err != nil {
		return err
	}
	result, _, err := a.compile(ctx, rn, entries, cfg, nil, nil)
	_ = renderer.Stop()
	if err != nil {
		return err
	}
	return a.emit(ctx, renderer, result, cfg)
}

// RunWatch is Build followed by a watch loop that writes and reports every
// completed cycle until ctx is cancelled.
func (a *App) RunWatch(ctx context.Context, entries []string, opts BuildOptions) error {
	cfg, rn, renderer, shutdown, err := a.prepare(opts)
	if err != nil {
		return err
	}
	defer func() {
		_ = shutdown(context.WithoutCancel(ctx))
	}()
	defer func() {
		if err := a.Close(); err != nil {
			a.logger.Warn("failed to close cache store: " + err.Error())
		}
	}()

	if len(entries) > 0 {
		if entries, err = absPaths(entries); err != nil {
			return err
		}
	}

	if err := renderer.Start(ctx); err != nil {
		return err
	}
	defer func() {
		_ = renderer.Stop()
	}()

	a.logger.Info(fmt.Sprintf("watching %s for changes", cfg.Root))
	return a.watch(ctx, rn, entries, cfg, func(result *domain.CompileResult) {
		if err := a.emit(ctx, renderer, result, cfg); err != nil && !errors.Is(err, domain.ErrBuildFailed) {
			a.logger.Error(err)
		}
	})
}

// prepare loads the configuration and sets up the renderer and the tracer
// that feeds it. The returned function shuts the tracer provider down.
func (a *App) prepare(opts BuildOptions) (
	domain.CompilerConfig, runner, ports.Renderer, func(context.Context) error, error,
) {
	cfg, err := a.LoadConfig(opts.ConfigPath, opts.Overrides)
	if err != nil {
		return domain.CompilerConfig{}, runner{}, nil, nil, err
	}
	requested, err := detector.ParseMode(opts.OutputMode)
	if err != nil {
		return domain.CompilerConfig{}, runner{}, nil, nil, err
	}
	mode := detector.ResolveMode(detector.DetectEnvironment(), requested)

	stdout, stderr := a.streams()
	var renderer ports.Renderer
	if mode == detector.ModeJSON {
		renderer = linear.NewJSONRenderer(stdout)
	} else {
		renderer = linear.NewRenderer(stdout, stderr, opts.Verbose)
	}
	if l, ok := a.logger.(outputConfigurer); ok {
		l.SetJSON(mode == detector.ModeJSON)
		l.SetVerbose(opts.Verbose)
	}

	shutdown := telemetry.Setup(renderer)
	tracer := telemetry.NewOTelTracer("synapse").WithRenderer(renderer)
	return cfg, runner{tracer: tracer, sched: scheduler.NewScheduler(tracer)}, renderer, shutdown, nil
}

// emit writes the outputs of result and reports it.
func (a *App) emit(ctx context.Context, renderer ports.Renderer, result *domain.CompileResult, cfg domain.CompilerConfig) error {
	written, err := a.writer.Write(ctx, result, cfg)
	if err != nil {
		return err
	}
	a.logger.Debug(fmt.Sprintf("wrote %d file(s) to %s", len(written), projectDir(cfg, cfg.OutputDir)))

	if err := renderer.Report(result); err != nil {
		return zerr.Wrap(err, "failed to print report")
	}
	if result.Failed() {
		sum := result.Diagnostics.Summarize()
		return errors.Join(domain.ErrBuildFailed,
			zerr.New(fmt.Sprintf("%d file(s) failed, %d error(s)", result.Stats.Failed, sum.Errors)))
	}
	return nil
}

func absPaths(paths []string) ([]string, error) {
	out := make([]string, len(paths))
	for i, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "failed to resolve path"), "path", p)
		}
		out[i] = abs
	}
	return out, nil
}
