// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/splitup/internal/adapters/config"
	_ "go.trai.ch/splitup/internal/adapters/events"
	_ "go.trai.ch/splitup/internal/adapters/eventstream"
	_ "go.trai.ch/splitup/internal/adapters/logger"
	_ "go.trai.ch/splitup/internal/adapters/registry"
	_ "go.trai.ch/splitup/internal/adapters/telemetry"
	_ "go.trai.ch/splitup/internal/adapters/watcher"
	// Register app and engine nodes.
	_ "go.trai.ch/splitup/internal/app"
	_ "go.trai.ch/splitup/internal/engine/dispatch"
	_ "go.trai.ch/splitup/internal/engine/eligibility"
	_ "go.trai.ch/splitup/internal/engine/orchestrator"
	_ "go.trai.ch/splitup/internal/engine/registrar"
	_ "go.trai.ch/splitup/internal/engine/stake"
)
