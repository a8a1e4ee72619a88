package ports

import "go.trai.ch/synapse/internal/core/domain"

// DependencyDigest describes one direct dependency when its shape feeds the fingerprint.
type DependencyDigest struct {
	Specifier string
	Kind      domain.ResolutionKind
	Shape     string
}

// Hasher computes cache keys.
//
//go:generate mockgen -source=hasher.go -destination=mocks/mock_hasher.go -package=mocks
type Hasher interface {
	// Fingerprint returns the key for unit compiled under cfg. deps is empty
	// unless the module format needs dependency shapes.
	Fingerprint(unit *domain.SourceUnit, cfg domain.CompilerConfig, deps []DependencyDigest) domain.CacheKey
}
