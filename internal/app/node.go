package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/synapse/internal/adapters/cas"       //nolint:depguard // Wired in app layer
	"go.trai.ch/synapse/internal/adapters/config"    //nolint:depguard // Wired in app layer
	"go.trai.ch/synapse/internal/adapters/fs"        //nolint:depguard // Wired in app layer
	"go.trai.ch/synapse/internal/adapters/logger"    //nolint:depguard // Wired in app layer
	"go.trai.ch/synapse/internal/adapters/telemetry" //nolint:depguard // Wired in app layer
	"go.trai.ch/synapse/internal/adapters/watcher"   //nolint:depguard // Wired in app layer
	"go.trai.ch/synapse/internal/core/ports"
	"go.trai.ch/synapse/internal/engine/scheduler"
	"go.trai.ch/synapse/internal/engine/transform"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

func init() {
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			fs.ResolverNodeID,
			fs.HasherNodeID,
			fs.WriterNodeID,
			cas.NodeID,
			transform.NodeID,
			scheduler.NodeID,
			telemetry.TracerNodeID,
			logger.NodeID,
			watcher.NodeID,
		},
		Run: func(ctx context.Context) (*App, error) {
			loader, err := graft.Dep[ports.ConfigLoader](ctx)
			if err != nil {
				return nil, err
			}
			resolver, err := graft.Dep[ports.Resolver](ctx)
			if err != nil {
				return nil, err
			}
			hasher, err := graft.Dep[ports.Hasher](ctx)
			if err != nil {
				return nil, err
			}
			writer, err := graft.Dep[ports.OutputWriter](ctx)
			if err != nil {
				return nil, err
			}
			caches, err := graft.Dep[ports.CacheOpener](ctx)
			if err != nil {
				return nil, err
			}
			transformer, err := graft.Dep[ports.Transformer](ctx)
			if err != nil {
				return nil, err
			}
			sched, err := graft.Dep[*scheduler.Scheduler](ctx)
			if err != nil {
				return nil, err
			}
			tracer, err := graft.Dep[ports.Tracer](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			w, err := graft.Dep[ports.Watcher](ctx)
			if err != nil {
				return nil, err
			}

			return New(loader, resolver, hasher, caches, transformer, writer, sched, tracer, log).WithWatcher(w), nil
		},
	})

	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Components, error) {
			app, err := graft.Dep[*App](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewComponents(app, log), nil
		},
	})
}
