package fs

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/synapse/internal/build"
	"go.trai.ch/synapse/internal/core/ports"
)

const (
	// ResolverNodeID is the unique identifier for the resolver Graft node.
	ResolverNodeID graft.ID = "adapter.fs.resolver"
	// HasherNodeID is the unique identifier for the hasher Graft node.
	HasherNodeID graft.ID = "adapter.fs.hasher"
	// WriterNodeID is the unique identifier for the output writer Graft node.
	WriterNodeID graft.ID = "adapter.fs.writer"
)

func init() {
	graft.Register(graft.Node[ports.Resolver]{
		ID:        ResolverNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.Resolver, error) {
			return NewResolver(), nil
		},
	})

	graft.Register(graft.Node[ports.Hasher]{
		ID:        HasherNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.Hasher, error) {
			return NewHasher(build.Version), nil
		},
	})

	graft.Register(graft.Node[ports.OutputWriter]{
		ID:        WriterNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.OutputWriter, error) {
			return NewWriter(), nil
		},
	})
}
