package ports

import "go.trai.ch/synapse/internal/core/domain"

// ConfigLoader defines the interface for loading the compiler configuration.
//
//go:generate mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// Load discovers the project configuration by walking up from cwd and
	// returns it merged over the defaults. A missing file is not an error.
	Load(cwd string) (domain.CompilerConfig, error)

	// LoadFile reads the configuration at path. The project root is the
	// directory holding the file.
	LoadFile(path string) (domain.CompilerConfig, error)

	// DiscoverRoot walks up from cwd to the directory holding the config file,
	// or returns cwd when there is none.
	DiscoverRoot(cwd string) (string, error)
}
