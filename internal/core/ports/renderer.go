package ports

import (
	"context"
	"time"

	"go.trai.ch/synapse/internal/core/domain"
)

// Renderer is the abstraction for output rendering.
// It decouples span collection from presentation.
//
//go:generate mockgen -source=renderer.go -destination=mocks/mock_renderer.go -package=mocks
type Renderer interface {
	// Start initializes the renderer.
	Start(ctx context.Context) error

	// Stop flushes buffered output.
	Stop() error

	// OnPlanEmit is called once the scheduler has layered the graph.
	// layers holds the project-relative paths of each layer in execution order.
	OnPlanEmit(layers [][]string)

	// OnUnitStart is called when a unit begins compiling.
	OnUnitStart(spanID, name string, startTime time.Time)

	// OnUnitComplete is called when a unit finishes. cached reports a cache hit.
	OnUnitComplete(spanID string, endTime time.Time, err error, cached bool)

	// Report prints the diagnostics of result grouped by file, then a summary line.
	Report(result *domain.CompileResult) error
}
