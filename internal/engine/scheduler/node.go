package scheduler

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/synapse/internal/adapters/telemetry" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/synapse/internal/core/ports"
)

// NodeID is the unique identifier for the scheduler Graft node.
const NodeID graft.ID = "engine.scheduler"

func init() {
	graft.Register(graft.Node[*Scheduler]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{telemetry.TracerNodeID},
		Run: func(ctx context.Context) (*Scheduler, error) {
			tracer, err := graft.Dep[ports.Tracer](ctx)
			if err != nil {
				return nil, err
			}
			return NewScheduler(tracer), nil
		},
	})
}
