package domain

import (
	"encoding/json"
	"errors"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"go.trai.ch/zerr"
)

// ModuleFormat is the output module-wiring convention.
type ModuleFormat string

const (
	// FormatESNext leaves import/export statements as they are.
	FormatESNext ModuleFormat = "esnext"
	// FormatCommonJS rewrites to require/exports.
	FormatCommonJS ModuleFormat = "commonjs"
	// FormatAMD wraps the module in define().
	FormatAMD ModuleFormat = "amd"
	// FormatUMD wraps the CommonJS body in a UMD factory.
	FormatUMD ModuleFormat = "umd"
	// FormatSystemJS rewrites to System.register.
	FormatSystemJS ModuleFormat = "systemjs"
)

var moduleFormatAliases = map[string]ModuleFormat{
	"esnext":   FormatESNext,
	"esmodule": FormatESNext,
	"es6":      FormatESNext,
	"es2015":   FormatESNext,
	"commonjs": FormatCommonJS,
	"cjs":      FormatCommonJS,
	"amd":      FormatAMD,
	"umd":      FormatUMD,
	"systemjs": FormatSystemJS,
	"system":   FormatSystemJS,
}

// ParseModuleFormat maps a user-facing format name to a ModuleFormat.
func ParseModuleFormat(s string) (ModuleFormat, error) {
	f, ok := moduleFormatAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", zerr.With(ErrUnknownModuleFormat, "module_format", s)
	}
	return f, nil
}

// RequiresOrdering reports whether rewriting into f needs the export shapes
// of a unit's dependencies, which forces dependency-ordered scheduling.
func (f ModuleFormat) RequiresOrdering() bool {
	return f != FormatESNext
}

// JSXRuntime selects how JSX elements are lowered.
type JSXRuntime string

const (
	// JSXClassic calls a configured factory such as React.createElement.
	JSXClassic JSXRuntime = "classic"
	// JSXAutomatic imports jsx/jsxs from <import_source>/jsx-runtime.
	JSXAutomatic JSXRuntime = "automatic"
)

// JSXConfig controls JSX expansion.
type JSXConfig struct {
	Enabled      bool       `json:"enabled"`
	Runtime      JSXRuntime `json:"runtime"`
	Factory      string     `json:"factory"`
	Fragment     string     `json:"fragment"`
	ImportSource string     `json:"import_source"`
}

// TypeScriptConfig controls TypeScript-specific lowering and resolution.
type TypeScriptConfig struct {
	ExperimentalDecorators bool                `json:"experimental_decorators"`
	EmitDecoratorMetadata  bool                `json:"emit_decorator_metadata"`
	BaseURL                string              `json:"base_url"`
	Paths                  map[string][]string `json:"paths"`
	ESModuleInterop        bool                `json:"es_module_interop"`
}

// RemoteCacheConfig configures the optional object-store cache tier.
type RemoteCacheConfig struct {
	Endpoint  string
	Bucket    string
	Region    string
	Prefix    string
	Secure    bool
	AccessKey string
	SecretKey string
}

// Enabled reports whether a remote tier is configured.
func (r RemoteCacheConfig) Enabled() bool {
	return r.Endpoint != "" && r.Bucket != ""
}

// CacheConfig configures the tiered cache store.
type CacheConfig struct {
	// Dir is the disk tier location. An empty Dir disables the disk tier.
	Dir            string
	MemoryEntries  int
	MaxDiskEntries int
	Remote         RemoteCacheConfig
	// Disabled turns off every tier, so each compile is a miss.
	Disabled bool
}

// CompilerConfig is the closed set of options accepted by the compiler.
// It is passed by value into every call; there is no process-wide instance.
type CompilerConfig struct {
	TargetLanguage string
	ModuleFormat   ModuleFormat
	// Root is the project root. Relative directories are joined onto it.
	Root       string
	SourceDir  string
	OutputDir  string
	Cache      CacheConfig
	Minify     bool
	SourceMaps bool
	// MaxParallelism bounds the worker pool. Zero means auto.
	MaxParallelism int
	JSX            JSXConfig
	TypeScript     TypeScriptConfig
	Externals      []string
}

// DefaultConfig returns the configuration used when no file or flag overrides a field.
func DefaultConfig() CompilerConfig {
	return CompilerConfig{
		TargetLanguage: "javascript",
		ModuleFormat:   FormatESNext,
		SourceDir:      DefaultSourceDir,
		OutputDir:      DefaultOutputDir,
		Cache: CacheConfig{
			Dir:           DefaultCacheDirName,
			MemoryEntries: 4096,
		},
		SourceMaps: true,
		JSX: JSXConfig{
			Enabled:      true,
			Runtime:      JSXClassic,
			Factory:      "React.createElement",
			Fragment:     "React.Fragment",
			ImportSource: "react",
		},
		TypeScript: TypeScriptConfig{
			ESModuleInterop: true,
		},
	}
}

// ParseParallelism parses "auto" or a positive integer. Auto yields zero.
func ParseParallelism(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "auto") {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, zerr.With(ErrInvalidParallelism, "max_parallelism", s)
	}
	return n, nil
}

// Parallelism returns the worker pool size: the configured bound or the number
// of CPUs, whichever is smaller.
func (c CompilerConfig) Parallelism() int {
	cpus := runtime.NumCPU()
	if c.MaxParallelism <= 0 {
		return cpus
	}
	return min(c.MaxParallelism, cpus)
}

// Validate checks the configuration and returns every problem found, joined
// under ErrConfiguration.
func (c CompilerConfig) Validate() error {
	var errs error
	add := func(err error) {
		errs = errors.Join(errs, err)
	}

	if !strings.EqualFold(c.TargetLanguage, "javascript") {
		add(zerr.With(ErrUnknownTargetLanguage, "target_language", c.TargetLanguage))
	}
	if _, err := ParseModuleFormat(string(c.ModuleFormat)); err != nil {
		add(err)
	}
	if c.MaxParallelism < 0 {
		add(zerr.With(ErrInvalidParallelism, "max_parallelism", c.MaxParallelism))
	}
	if c.JSX.Enabled {
		switch c.JSX.Runtime {
		case JSXClassic:
			if strings.TrimSpace(c.JSX.Factory) == "" {
				add(ErrMissingJSXFactory)
			}
		case JSXAutomatic:
			if strings.TrimSpace(c.JSX.ImportSource) == "" {
				add(ErrMissingJSXImportSource)
			}
		default:
			add(zerr.With(ErrUnknownJSXRuntime, "runtime", string(c.JSX.Runtime)))
		}
	}
	if c.TypeScript.EmitDecoratorMetadata && !c.TypeScript.ExperimentalDecorators {
		add(ErrDecoratorMetadataWithoutDecorators)
	}
	for alias, targets := range c.TypeScript.Paths {
		if strings.Count(alias, "*") > 1 {
			add(zerr.With(ErrInvalidPathAlias, "alias", alias))
		}
		for _, t := range targets {
			if strings.Count(t, "*") > 1 {
				add(zerr.With(ErrInvalidPathAlias, "target", t))
			}
		}
	}
	if errs != nil {
		return errors.Join(ErrConfiguration, errs)
	}
	return nil
}

// Normalize returns a copy with aliases resolved and defaults filled in for empty fields.
// It assumes Validate has succeeded.
func (c CompilerConfig) Normalize() CompilerConfig {
	if f, err := ParseModuleFormat(string(c.ModuleFormat)); err == nil {
		c.ModuleFormat = f
	}
	c.TargetLanguage = strings.ToLower(c.TargetLanguage)
	if c.JSX.Fragment == "" {
		c.JSX.Fragment = "React.Fragment"
	}
	if c.JSX.Runtime == "" {
		c.JSX.Runtime = JSXClassic
	}
	if len(c.Externals) == 0 {
		c.Externals = nil
	} else {
		ext := slices.Clone(c.Externals)
		slices.Sort(ext)
		c.Externals = slices.Compact(ext)
	}
	return c
}

// Canonical returns the serialization of every option that can change emitted
// bytes. Map keys are sorted, so logically equal configs serialize identically.
func (c CompilerConfig) Canonical() []byte {
	c = c.Normalize()
	paths := make(map[string][]string, len(c.TypeScript.Paths))
	for k, v := range c.TypeScript.Paths {
		paths[k] = v
	}
	doc := map[string]any{
		"target_language": c.TargetLanguage,
		"module_format":   string(c.ModuleFormat),
		"minify":          c.Minify,
		"source_maps":     c.SourceMaps,
		"jsx": map[string]any{
			"enabled":       c.JSX.Enabled,
			"runtime":       string(c.JSX.Runtime),
			"factory":       c.JSX.Factory,
			"fragment":      c.JSX.Fragment,
			"import_source": c.JSX.ImportSource,
		},
		"typescript": map[string]any{
			"experimental_decorators": c.TypeScript.ExperimentalDecorators,
			"emit_decorator_metadata": c.TypeScript.EmitDecoratorMetadata,
			"es_module_interop":       c.TypeScript.ESModuleInterop,
			"base_url":                c.TypeScript.BaseURL,
			"paths":                   paths,
		},
		"externals": c.Externals,
	}
	// A map of basic values cannot fail to marshal.
	out, _ := json.Marshal(doc)
	return out
}
