package commands_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/synapse/cmd/synapse/commands"
	"go.trai.ch/synapse/internal/adapters/config"
	"go.trai.ch/synapse/internal/app"
	"go.trai.ch/synapse/internal/build"
	"go.trai.ch/synapse/internal/core/domain"
)

type mockApp struct {
	buildFunc func(ctx context.Context, entries []string, opts app.BuildOptions) error
	watchFunc func(ctx context.Context, entries []string, opts app.BuildOptions) error
	loadFunc  func(path string, overrides config.Overrides) (domain.CompilerConfig, error)
	cleanFunc func(ctx context.Context, cfg domain.CompilerConfig, opts app.CleanOptions) error
}

func (m *mockApp) Build(ctx context.Context, entries []string, opts app.BuildOptions) error {
	if m.buildFunc != nil {
		return m.buildFunc(ctx, entries, opts)
	}
	return nil
}

func (m *mockApp) RunWatch(ctx context.Context, entries []string, opts app.BuildOptions) error {
	if m.watchFunc != nil {
		return m.watchFunc(ctx, entries, opts)
	}
	return nil
}

func (m *mockApp) LoadConfig(path string, overrides config.Overrides) (domain.CompilerConfig, error) {
	if m.loadFunc != nil {
		return m.loadFunc(path, overrides)
	}
	return domain.DefaultConfig(), nil
}

func (m *mockApp) Clean(ctx context.Context, cfg domain.CompilerConfig, opts app.CleanOptions) error {
	if m.cleanFunc != nil {
		return m.cleanFunc(ctx, cfg, opts)
	}
	return nil
}

func TestCommands_Build(t *testing.T) {
	t.Run("wires flags correctly", func(t *testing.T) {
		var captured app.BuildOptions
		var entries []string
		mock := &mockApp{
			buildFunc: func(_ context.Context, e []string, opts app.BuildOptions) error {
				captured, entries = opts, e
				return nil
			},
		}

		cli := commands.New(mock)
		cli.SetArgs([]string{
			"build", "src/main.ts", "-c", "synapse.yaml", "--format", "commonjs",
			"--minify", "--no-source-maps", "--no-cache", "-j", "4", "--out", "build",
			"--output", "json", "-v",
		})

		require.NoError(t, cli.Execute(context.Background()))
		assert.Equal(t, []string{"src/main.ts"}, entries)
		assert.Equal(t, "synapse.yaml", captured.ConfigPath)
		assert.Equal(t, "json", captured.OutputMode)
		assert.True(t, captured.Verbose)

		o := captured.Overrides
		require.NotNil(t, o.ModuleFormat)
		assert.Equal(t, "commonjs", *o.ModuleFormat)
		require.NotNil(t, o.Minify)
		assert.True(t, *o.Minify)
		require.NotNil(t, o.SourceMaps)
		assert.False(t, *o.SourceMaps)
		require.NotNil(t, o.Parallelism)
		assert.Equal(t, "4", *o.Parallelism)
		require.NotNil(t, o.OutputDir)
		assert.Equal(t, "build", *o.OutputDir)
		assert.True(t, o.NoCache)
	})

	t.Run("leaves unset flags to the config file", func(t *testing.T) {
		var captured app.BuildOptions
		mock := &mockApp{
			buildFunc: func(_ context.Context, _ []string, opts app.BuildOptions) error {
				captured = opts
				return nil
			},
		}

		cli := commands.New(mock)
		cli.SetArgs([]string{"build"})

		require.NoError(t, cli.Execute(context.Background()))
		assert.Equal(t, config.Overrides{}, captured.Overrides)
		assert.Equal(t, "auto", captured.OutputMode)
	})

	t.Run("returns error on build failure", func(t *testing.T) {
		mock := &mockApp{
			buildFunc: func(context.Context, []string, app.BuildOptions) error {
				return errors.New("simulated error")
			},
		}

		cli := commands.New(mock)
		cli.SetArgs([]string{"build"})
		cli.SetOutput(new(bytes.Buffer), new(bytes.Buffer))

		err := cli.Execute(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "simulated error")
	})
}

func TestCommands_Watch(t *testing.T) {
	var captured app.BuildOptions
	called := false
	mock := &mockApp{
		watchFunc: func(_ context.Context, _ []string, opts app.BuildOptions) error {
			captured, called = opts, true
			return nil
		},
	}

	cli := commands.New(mock)
	cli.SetArgs([]string{"watch", "--format", "amd"})

	require.NoError(t, cli.Execute(context.Background()))
	assert.True(t, called)
	require.NotNil(t, captured.Overrides.ModuleFormat)
	assert.Equal(t, "amd", *captured.Overrides.ModuleFormat)
}

func TestCommands_Clean(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		cacheOnly bool
		olderThan time.Duration
		sources   []string
	}{
		{name: "everything", args: []string{"clean"}},
		{name: "cache only", args: []string{"clean", "--cache-only"}, cacheOnly: true},
		{
			name:      "selected entries",
			args:      []string{"clean", "--older-than", "48h", "--source", "src/a.ts,src/b.ts"},
			olderThan: 48 * time.Hour,
			sources:   []string{"src/a.ts", "src/b.ts"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured app.CleanOptions
			mock := &mockApp{
				cleanFunc: func(_ context.Context, _ domain.CompilerConfig, opts app.CleanOptions) error {
					captured = opts
					return nil
				},
			}

			cli := commands.New(mock)
			cli.SetArgs(tt.args)

			require.NoError(t, cli.Execute(context.Background()))
			assert.Equal(t, tt.cacheOnly, captured.CacheOnly)
			assert.Equal(t, tt.olderThan, captured.OlderThan)
			assert.ElementsMatch(t, tt.sources, captured.Sources)
		})
	}

	t.Run("config error stops clean", func(t *testing.T) {
		mock := &mockApp{
			loadFunc: func(string, config.Overrides) (domain.CompilerConfig, error) {
				return domain.CompilerConfig{}, domain.ErrConfiguration
			},
			cleanFunc: func(context.Context, domain.CompilerConfig, app.CleanOptions) error {
				panic("should not be called")
			},
		}

		cli := commands.New(mock)
		cli.SetArgs([]string{"clean"})

		require.ErrorIs(t, cli.Execute(context.Background()), domain.ErrConfiguration)
	})
}

func TestCommands_Version(t *testing.T) {
	cli := commands.New(&mockApp{})
	buf := new(bytes.Buffer)
	cli.SetOutput(buf, buf)
	cli.SetArgs([]string{"version"})

	require.NoError(t, cli.Execute(context.Background()))
	assert.Equal(t, "synapse version "+build.Version+" (commit: "+build.Commit+", date: "+build.Date+")\n", buf.String())
}
