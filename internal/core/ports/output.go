package ports

import (
	"context"

	"go.trai.ch/synapse/internal/core/domain"
)

// OutputWriter persists emitted code and source maps.
//
//go:generate mockgen -source=output.go -destination=mocks/mock_output.go -package=mocks
type OutputWriter interface {
	// Write stores every successful file of result under cfg.OutputDir and
	// returns the paths written.
	Write(ctx context.Context, result *domain.CompileResult, cfg domain.CompilerConfig) ([]string, error)

	// OutputPath returns where the output for source would be written.
	OutputPath(source string, cfg domain.CompilerConfig) (string, error)
}
