// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/synapse/internal/adapters/cas"
	_ "go.trai.ch/synapse/internal/adapters/config"
	_ "go.trai.ch/synapse/internal/adapters/fs"
	_ "go.trai.ch/synapse/internal/adapters/logger"
	_ "go.trai.ch/synapse/internal/adapters/telemetry"
	_ "go.trai.ch/synapse/internal/adapters/watcher"
	// Register app and engine nodes.
	_ "go.trai.ch/synapse/internal/app"
	_ "go.trai.ch/synapse/internal/engine/scheduler"
	_ "go.trai.ch/synapse/internal/engine/transform"
)
