package ports

import (
	"context"

	"go.trai.ch/synapse/internal/core/domain"
)

// Transformer runs the per-file pipeline: parse, strip types, expand JSX,
// rewrite modules, minify and emit.
//
//go:generate mockgen -source=transformer.go -destination=mocks/mock_transformer.go -package=mocks
type Transformer interface {
	// Transform compiles unit. A nil CompiledUnit means the unit failed and the
	// diagnostics say why. Diagnostics carry no file; the caller attaches it.
	Transform(
		ctx context.Context,
		unit *domain.SourceUnit,
		imports domain.ImportShapes,
		cfg domain.CompilerConfig,
	) (*domain.CompiledUnit, domain.Diagnostics)
}
