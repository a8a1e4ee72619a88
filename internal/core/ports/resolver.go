package ports

import (
	"context"

	"go.trai.ch/synapse/internal/core/domain"
)

// Resolver discovers every source file reachable from a set of entries.
//
//go:generate mockgen -source=resolver.go -destination=mocks/mock_resolver.go -package=mocks
type Resolver interface {
	// Resolve builds the dependency graph for entries. Unresolvable specifiers
	// are recorded as graph diagnostics; the error is reserved for entries
	// that do not exist.
	Resolve(ctx context.Context, entries []string, cfg domain.CompilerConfig) (*domain.DependencyGraph, error)
}
