package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/connres/internal/adapters/config"    //nolint:depguard // Wired in app layer
	"go.trai.ch/connres/internal/adapters/lockstore" //nolint:depguard // Wired in app layer
	"go.trai.ch/connres/internal/adapters/logger"    //nolint:depguard // Wired in app layer
	"go.trai.ch/connres/internal/adapters/manifests" //nolint:depguard // Wired in app layer
	"go.trai.ch/connres/internal/adapters/metrics"   //nolint:depguard // Wired in app layer
	"go.trai.ch/connres/internal/adapters/telemetry" //nolint:depguard // Wired in app layer
	"go.trai.ch/connres/internal/core/ports"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

// Components holds what the CLI entry point needs.
type Components struct {
	App    *App
	Logger ports.Logger
}

func init() {
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			manifests.NodeID,
			lockstore.NodeID,
			logger.NodeID,
			telemetry.TracerNodeID,
			metrics.NodeID,
			metrics.ExporterNodeID,
		},
		Run: runAppNode,
	})

	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Components, error) {
			a, err := graft.Dep[*App](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return &Components{App: a, Logger: log}, nil
		},
	})
}

func runAppNode(ctx context.Context) (*App, error) {
	loader, err := graft.Dep[ports.ConfigLoader](ctx)
	if err != nil {
		return nil, err
	}

	registries, err := graft.Dep[ports.RegistrySource](ctx)
	if err != nil {
		return nil, err
	}

	store, err := graft.Dep[ports.LockfileStore](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	tracer, err := graft.Dep[ports.Tracer](ctx)
	if err != nil {
		return nil, err
	}

	m, err := graft.Dep[ports.Metrics](ctx)
	if err != nil {
		return nil, err
	}

	exporter, err := graft.Dep[ports.MetricsExporter](ctx)
	if err != nil {
		return nil, err
	}

	return New(loader, registries, store, log, tracer, m, exporter), nil
}
