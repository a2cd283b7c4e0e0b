package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/splitup/internal/adapters/config"      //nolint:depguard // Wired in app layer
	"go.trai.ch/splitup/internal/adapters/events"      //nolint:depguard // Wired in app layer
	"go.trai.ch/splitup/internal/adapters/eventstream" //nolint:depguard // Wired in app layer
	"go.trai.ch/splitup/internal/adapters/logger"      //nolint:depguard // Wired in app layer
	"go.trai.ch/splitup/internal/adapters/registry"    //nolint:depguard // Wired in app layer
	"go.trai.ch/splitup/internal/adapters/watcher"     //nolint:depguard // Wired in app layer
	"go.trai.ch/splitup/internal/core/domain"
	"go.trai.ch/splitup/internal/core/ports"
	"go.trai.ch/splitup/internal/engine/dispatch"
	"go.trai.ch/splitup/internal/engine/eligibility"
	"go.trai.ch/splitup/internal/engine/orchestrator"
	"go.trai.ch/splitup/internal/engine/registrar"
	"go.trai.ch/splitup/internal/engine/stake"
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
			config.LoaderNodeID,
			config.CommitteeNodeID,
			registry.NodeID,
			registrar.NodeID,
			stake.NodeID,
			eligibility.NodeID,
			orchestrator.NodeID,
			dispatch.NodeID,
			events.SourceNodeID,
			eventstream.NodeID,
			watcher.NodeID,
			logger.NodeID,
		},
		Run: runAppNode,
	})

	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
			config.NodeID,
		},
		Run: runComponentsNode,
	})
}

//nolint:cyclop // One lookup per dependency.
func runAppNode(ctx context.Context) (*App, error) {
	var (
		deps Deps
		err  error
	)
	if deps.Config, err = graft.Dep[*domain.Config](ctx); err != nil {
		return nil, err
	}
	if deps.Loader, err = graft.Dep[ports.ConfigLoader](ctx); err != nil {
		return nil, err
	}
	if deps.Committee, err = graft.Dep[*domain.Committee](ctx); err != nil {
		return nil, err
	}
	if deps.Registry, err = graft.Dep[ports.Registry](ctx); err != nil {
		return nil, err
	}
	if deps.Registrar, err = graft.Dep[*registrar.Registrar](ctx); err != nil {
		return nil, err
	}
	if deps.Ledger, err = graft.Dep[*stake.Ledger](ctx); err != nil {
		return nil, err
	}
	if deps.Index, err = graft.Dep[*eligibility.Index](ctx); err != nil {
		return nil, err
	}
	if deps.Orchestrator, err = graft.Dep[*orchestrator.Orchestrator](ctx); err != nil {
		return nil, err
	}
	if deps.Dispatcher, err = graft.Dep[*dispatch.Dispatcher](ctx); err != nil {
		return nil, err
	}
	if deps.Source, err = graft.Dep[ports.EventSource](ctx); err != nil {
		return nil, err
	}
	if deps.Stream, err = graft.Dep[*eventstream.Server](ctx); err != nil {
		return nil, err
	}
	if deps.Watcher, err = graft.Dep[ports.Watcher](ctx); err != nil {
		return nil, err
	}
	if deps.Logger, err = graft.Dep[ports.Logger](ctx); err != nil {
		return nil, err
	}
	return New(deps), nil
}

func runComponentsNode(ctx context.Context) (*Components, error) {
	app, err := graft.Dep[*App](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	cfg, err := graft.Dep[*domain.Config](ctx)
	if err != nil {
		return nil, err
	}

	return &Components{App: app, Logger: log, Config: cfg}, nil
}
