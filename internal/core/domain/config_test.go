package domain_test

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/synapse/internal/core/domain"
)

func TestParseModuleFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    domain.ModuleFormat
		wantErr bool
	}{
		{in: "esnext", want: domain.FormatESNext},
		{in: "ESModule", want: domain.FormatESNext},
		{in: "cjs", want: domain.FormatCommonJS},
		{in: "CommonJS", want: domain.FormatCommonJS},
		{in: "amd", want: domain.FormatAMD},
		{in: "umd", want: domain.FormatUMD},
		{in: "system", want: domain.FormatSystemJS},
		{in: "iife", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := domain.ParseModuleFormat(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorContains(t, err, domain.ErrUnknownModuleFormat.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestModuleFormat_RequiresOrdering(t *testing.T) {
	assert.False(t, domain.FormatESNext.RequiresOrdering())
	for _, f := range []domain.ModuleFormat{domain.FormatCommonJS, domain.FormatAMD, domain.FormatUMD, domain.FormatSystemJS} {
		assert.True(t, f.RequiresOrdering(), f)
	}
}

func TestCompilerConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*domain.CompilerConfig)
		wantErr error
	}{
		{name: "defaults are valid", mutate: func(*domain.CompilerConfig) {}},
		{
			name:    "unknown format",
			mutate:  func(c *domain.CompilerConfig) { c.ModuleFormat = "iife" },
			wantErr: domain.ErrUnknownModuleFormat,
		},
		{
			name:    "unknown target",
			mutate:  func(c *domain.CompilerConfig) { c.TargetLanguage = "wasm" },
			wantErr: domain.ErrUnknownTargetLanguage,
		},
		{
			name:    "negative parallelism",
			mutate:  func(c *domain.CompilerConfig) { c.MaxParallelism = -2 },
			wantErr: domain.ErrInvalidParallelism,
		},
		{
			name:    "classic runtime without factory",
			mutate:  func(c *domain.CompilerConfig) { c.JSX.Factory = " " },
			wantErr: domain.ErrMissingJSXFactory,
		},
		{
			name: "disabled jsx ignores factory",
			mutate: func(c *domain.CompilerConfig) {
				c.JSX.Enabled = false
				c.JSX.Factory = ""
			},
		},
		{
			name: "automatic runtime without import source",
			mutate: func(c *domain.CompilerConfig) {
				c.JSX.Runtime = domain.JSXAutomatic
				c.JSX.ImportSource = ""
			},
			wantErr: domain.ErrMissingJSXImportSource,
		},
		{
			name:    "metadata without decorators",
			mutate:  func(c *domain.CompilerConfig) { c.TypeScript.EmitDecoratorMetadata = true },
			wantErr: domain.ErrDecoratorMetadataWithoutDecorators,
		},
		{
			name: "double wildcard alias",
			mutate: func(c *domain.CompilerConfig) {
				c.TypeScript.Paths = map[string][]string{"@/*/*": {"src/*"}}
			},
			wantErr: domain.ErrInvalidPathAlias,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := domain.DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.wantErr.Error())
			assert.ErrorIs(t, err, domain.ErrConfiguration)
		})
	}
}

func TestCompilerConfig_ValidateCollectsAll(t *testing.T) {
	cfg := domain.DefaultConfig()
	cfg.ModuleFormat = "nope"
	cfg.TargetLanguage = "python"

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, domain.ErrUnknownModuleFormat.Error())
	assert.ErrorContains(t, err, domain.ErrUnknownTargetLanguage.Error())
}

func TestCompilerConfig_Canonical(t *testing.T) {
	t.Run("aliases and external order do not matter", func(t *testing.T) {
		a := domain.DefaultConfig()
		a.ModuleFormat = "cjs"
		a.Externals = []string{"react", "lodash"}

		b := domain.DefaultConfig()
		b.ModuleFormat = domain.FormatCommonJS
		b.Externals = []string{"lodash", "react", "react"}

		assert.Equal(t, string(a.Canonical()), string(b.Canonical()))
	})

	t.Run("nil and empty externals agree", func(t *testing.T) {
		a := domain.DefaultConfig()
		b := domain.DefaultConfig()
		b.Externals = []string{}
		assert.Equal(t, a.Canonical(), b.Canonical())
	})

	t.Run("location options are excluded", func(t *testing.T) {
		a := domain.DefaultConfig()
		b := domain.DefaultConfig()
		b.Root = "/elsewhere"
		b.OutputDir = "build"
		b.Cache.Dir = ""
		b.MaxParallelism = 3
		assert.Equal(t, a.Canonical(), b.Canonical())
	})

	t.Run("output options change it", func(t *testing.T) {
		base := domain.DefaultConfig()
		mutations := []func(*domain.CompilerConfig){
			func(c *domain.CompilerConfig) { c.Minify = true },
			func(c *domain.CompilerConfig) { c.SourceMaps = false },
			func(c *domain.CompilerConfig) { c.ModuleFormat = domain.FormatAMD },
			func(c *domain.CompilerConfig) { c.JSX.Factory = "h" },
			func(c *domain.CompilerConfig) { c.JSX.Runtime = domain.JSXAutomatic },
			func(c *domain.CompilerConfig) { c.TypeScript.ExperimentalDecorators = true },
		}
		for i, m := range mutations {
			c := domain.DefaultConfig()
			m(&c)
			assert.NotEqual(t, string(base.Canonical()), string(c.Canonical()), "mutation %d", i)
		}
	})
}

func TestParseParallelism(t *testing.T) {
	n, err := domain.ParseParallelism("auto")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = domain.ParseParallelism("4")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	for _, bad := range []string{"0", "-1", "many"} {
		_, err := domain.ParseParallelism(bad)
		assert.ErrorContains(t, err, domain.ErrInvalidParallelism.Error(), bad)
	}
}

func TestCompilerConfig_Parallelism(t *testing.T) {
	cfg := domain.DefaultConfig()
	assert.Equal(t, runtime.NumCPU(), cfg.Parallelism())

	cfg.MaxParallelism = 1
	assert.Equal(t, 1, cfg.Parallelism())

	cfg.MaxParallelism = runtime.NumCPU() + 100
	assert.Equal(t, runtime.NumCPU(), cfg.Parallelism())
}
