// Package config loads synapse.yaml or synapse.toml into a CompilerConfig.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"go.trai.ch/synapse/internal/core/domain"
	"go.trai.ch/synapse/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Environment variables holding the remote cache credentials.
const (
	EnvRemoteAccessKey = "SYNAPSE_REMOTE_ACCESS_KEY"
	EnvRemoteSecretKey = "SYNAPSE_REMOTE_SECRET_KEY"
)

var _ ports.ConfigLoader = (*Loader)(nil)

// Loader implements ports.ConfigLoader.
type Loader struct {
	Logger ports.Logger
}

// NewLoader creates a new Loader with the given logger.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger}
}

// Load walks up from cwd to the nearest configuration file. Without one, the
// defaults apply and cwd is the project root.
func (l *Loader) Load(cwd string) (domain.CompilerConfig, error) {
	path := l.findConfiguration(cwd)
	if path == "" {
		cfg := domain.DefaultConfig()
		cfg.Root = filepath.Clean(cwd)
		applyEnv(&cfg)
		return cfg, nil
	}
	return l.LoadFile(path)
}

// DiscoverRoot returns the directory of the nearest configuration file, or cwd.
func (l *Loader) DiscoverRoot(cwd string) (string, error) {
	path := l.findConfiguration(cwd)
	if path == "" {
		return filepath.Clean(cwd), nil
	}
	return filepath.Dir(path), nil
}

// LoadFile reads the configuration at path over the defaults and validates it.
// Every failure is a configuration error.
func (l *Loader) LoadFile(path string) (domain.CompilerConfig, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return domain.CompilerConfig{}, configErr(zerr.With(zerr.Wrap(err, domain.ErrConfigReadFailed.Error()), "path", path))
	}

	var file File
	if err := decodeFile(abs, &file); err != nil {
		return domain.CompilerConfig{}, configErr(err)
	}

	cfg := domain.DefaultConfig()
	cfg.Root = resolveRoot(abs, file.Root)
	if err := apply(&cfg, &file); err != nil {
		return domain.CompilerConfig{}, configErr(zerr.With(err, "path", abs))
	}
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return domain.CompilerConfig{}, err
	}
	return cfg.Normalize(), nil
}

func configErr(err error) error {
	return errors.Join(domain.ErrConfiguration, err)
}

// findConfiguration returns the first configuration file found walking up from
// cwd, or "" when there is none.
func (l *Loader) findConfiguration(cwd string) string {
	dir := filepath.Clean(cwd)
	for {
		var found []string
		for _, name := range domain.ConfigFileNames() {
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				found = append(found, candidate)
			}
		}
		if len(found) > 0 {
			if len(found) > 1 && l.Logger != nil {
				l.Logger.Warn(fmt.Sprintf("found %d config files in %s, using %s",
					len(found), dir, filepath.Base(found[0])))
			}
			return found[0]
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func resolveRoot(configPath string, configured *string) string {
	configDir := filepath.Dir(configPath)
	if configured == nil || *configured == "" {
		return filepath.Clean(configDir)
	}
	if filepath.IsAbs(*configured) {
		return filepath.Clean(*configured)
	}
	return filepath.Clean(filepath.Join(configDir, *configured))
}

func decodeFile(path string, file *File) error {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from discovery or the -c flag
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrConfigReadFailed.Error()), "path", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(file); err != nil && !errors.Is(err, io.EOF) {
			return zerr.With(zerr.Wrap(err, domain.ErrConfigParseFailed.Error()), "path", path)
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(file); err != nil {
			return zerr.With(zerr.Wrap(err, domain.ErrConfigParseFailed.Error()), "path", path)
		}
	default:
		return zerr.With(domain.ErrUnsupportedConfigFormat, "path", path)
	}
	return nil
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func apply(cfg *domain.CompilerConfig, f *File) error {
	set(&cfg.TargetLanguage, f.TargetLanguage)
	if f.ModuleFormat != nil {
		cfg.ModuleFormat = domain.ModuleFormat(*f.ModuleFormat)
	}
	set(&cfg.SourceDir, f.SourceDir)
	set(&cfg.OutputDir, f.OutputDir)
	set(&cfg.Minify, f.Minify)
	set(&cfg.SourceMaps, f.SourceMaps)
	if f.Externals != nil {
		cfg.Externals = f.Externals
	}

	n, err := parseParallelism(f.MaxParallelism)
	if err != nil {
		return err
	}
	cfg.MaxParallelism = n

	if c := f.Cache; c != nil {
		set(&cfg.Cache.Dir, c.Dir)
		set(&cfg.Cache.MemoryEntries, c.MemoryEntries)
		set(&cfg.Cache.MaxDiskEntries, c.MaxDiskEntries)
		set(&cfg.Cache.Disabled, c.Disabled)
		if r := c.Remote; r != nil {
			cfg.Cache.Remote = domain.RemoteCacheConfig{
				Endpoint: r.Endpoint,
				Bucket:   r.Bucket,
				Region:   r.Region,
				Prefix:   r.Prefix,
				Secure:   r.Secure,
			}
		}
	}

	if j := f.JSX; j != nil {
		set(&cfg.JSX.Enabled, j.Enabled)
		if j.Runtime != nil {
			cfg.JSX.Runtime = domain.JSXRuntime(*j.Runtime)
		}
		set(&cfg.JSX.Factory, j.Factory)
		set(&cfg.JSX.Fragment, j.Fragment)
		set(&cfg.JSX.ImportSource, j.ImportSource)
	}

	if ts := f.TypeScript; ts != nil {
		set(&cfg.TypeScript.ExperimentalDecorators, ts.ExperimentalDecorators)
		set(&cfg.TypeScript.EmitDecoratorMetadata, ts.EmitDecoratorMetadata)
		set(&cfg.TypeScript.BaseURL, ts.BaseURL)
		set(&cfg.TypeScript.ESModuleInterop, ts.ESModuleInterop)
		if ts.Paths != nil {
			cfg.TypeScript.Paths = ts.Paths
		}
	}
	return nil
}

// parseParallelism accepts "auto", a positive integer, or a string holding one.
// YAML decodes integers as int and TOML as int64.
func parseParallelism(v any) (int, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case string:
		return domain.ParseParallelism(n)
	case int:
		return positive(int64(n))
	case int64:
		return positive(n)
	case uint64:
		if n > uint64(^uint32(0)) {
			return 0, zerr.With(domain.ErrInvalidParallelism, "max_parallelism", n)
		}
		return positive(int64(n))
	default:
		return 0, zerr.With(domain.ErrInvalidParallelism, "max_parallelism", fmt.Sprint(v))
	}
}

func positive(n int64) (int, error) {
	if n <= 0 || n > int64(^uint32(0)>>1) {
		return 0, zerr.With(domain.ErrInvalidParallelism, "max_parallelism", n)
	}
	return int(n), nil
}

func applyEnv(cfg *domain.CompilerConfig) {
	if v, ok := os.LookupEnv(EnvRemoteAccessKey); ok {
		cfg.Cache.Remote.AccessKey = v
	}
	if v, ok := os.LookupEnv(EnvRemoteSecretKey); ok {
		cfg.Cache.Remote.SecretKey = v
	}
}
