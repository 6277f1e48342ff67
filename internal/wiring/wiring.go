// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/connres/internal/adapters/config"
	_ "go.trai.ch/connres/internal/adapters/lockstore"
	_ "go.trai.ch/connres/internal/adapters/logger"
	_ "go.trai.ch/connres/internal/adapters/manifests"
	_ "go.trai.ch/connres/internal/adapters/metrics"
	_ "go.trai.ch/connres/internal/adapters/telemetry"
	// Register app nodes.
	_ "go.trai.ch/connres/internal/app"
)
