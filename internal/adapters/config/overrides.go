package config

import (
	"errors"
	"path/filepath"

	"go.trai.ch/synapse/internal/core/domain"
)

// Overrides are command-line settings. Nil fields were not given by the user
// and leave the loaded value alone.
type Overrides struct {
	ModuleFormat *string
	Minify       *bool
	SourceMaps   *bool
	Parallelism  *string
	OutputDir    *string
	// NoCache disables every cache tier.
	NoCache bool
}

// Merge returns base with o applied and validated. A relative output directory
// is taken relative to cwd, as a user typing it would expect.
func Merge(base domain.CompilerConfig, o Overrides, cwd string) (domain.CompilerConfig, error) {
	cfg := base
	if o.ModuleFormat != nil {
		cfg.ModuleFormat = domain.ModuleFormat(*o.ModuleFormat)
	}
	set(&cfg.Minify, o.Minify)
	set(&cfg.SourceMaps, o.SourceMaps)
	if o.Parallelism != nil {
		n, err := domain.ParseParallelism(*o.Parallelism)
		if err != nil {
			return domain.CompilerConfig{}, errors.Join(domain.ErrConfiguration, err)
		}
		cfg.MaxParallelism = n
	}
	if o.OutputDir != nil {
		dir := *o.OutputDir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(cwd, dir)
		}
		cfg.OutputDir = filepath.Clean(dir)
	}
	if o.NoCache {
		cfg.Cache.Disabled = true
	}

	if err := cfg.Validate(); err != nil {
		return domain.CompilerConfig{}, err
	}
	return cfg.Normalize(), nil
}
