package transform

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/synapse/internal/core/ports"
)

// NodeID is the unique identifier for the transform pipeline Graft node.
const NodeID graft.ID = "engine.transform"

func init() {
	graft.Register(graft.Node[ports.Transformer]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.Transformer, error) {
			return New(), nil
		},
	})
}
