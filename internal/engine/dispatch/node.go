package dispatch

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/splitup/internal/adapters/config"    //nolint:depguard // Wired in engine wiring
	"go.trai.ch/splitup/internal/adapters/logger"    //nolint:depguard // Wired in engine wiring
	"go.trai.ch/splitup/internal/adapters/telemetry" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/splitup/internal/core/domain"
	"go.trai.ch/splitup/internal/core/ports"
	"go.trai.ch/splitup/internal/engine/eligibility"
	"go.trai.ch/splitup/internal/engine/orchestrator"
	"go.trai.ch/splitup/internal/engine/stake"
)

// NodeID is the unique identifier for the dispatcher Graft node.
const NodeID graft.ID = "engine.dispatch"

func init() {
	graft.Register(graft.Node[*Dispatcher]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			orchestrator.NodeID,
			eligibility.NodeID,
			stake.NodeID,
			logger.NodeID,
			telemetry.TracerNodeID,
		},
		Run: func(ctx context.Context) (*Dispatcher, error) {
			cfg, err := graft.Dep[*domain.Config](ctx)
			if err != nil {
				return nil, err
			}

			orch, err := graft.Dep[*orchestrator.Orchestrator](ctx)
			if err != nil {
				return nil, err
			}

			index, err := graft.Dep[*eligibility.Index](ctx)
			if err != nil {
				return nil, err
			}

			ledger, err := graft.Dep[*stake.Ledger](ctx)
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

			return New(orch, index, cfg.Policy.DispatchAs, ledger, log, tracer), nil
		},
	})
}
