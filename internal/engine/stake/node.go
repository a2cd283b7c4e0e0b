package stake

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/splitup/internal/adapters/config"    //nolint:depguard // Wired in engine wiring
	"go.trai.ch/splitup/internal/adapters/events"    //nolint:depguard // Wired in engine wiring
	"go.trai.ch/splitup/internal/adapters/logger"    //nolint:depguard // Wired in engine wiring
	"go.trai.ch/splitup/internal/adapters/registry"  //nolint:depguard // Wired in engine wiring
	"go.trai.ch/splitup/internal/adapters/telemetry" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/splitup/internal/core/domain"
	"go.trai.ch/splitup/internal/core/ports"
)

// NodeID is the unique identifier for the stake ledger Graft node.
const NodeID graft.ID = "engine.stake"

func init() {
	graft.Register(graft.Node[*Ledger]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			registry.NodeID,
			events.PublisherNodeID,
			logger.NodeID,
			telemetry.TracerNodeID,
		},
		Run: func(ctx context.Context) (*Ledger, error) {
			cfg, err := graft.Dep[*domain.Config](ctx)
			if err != nil {
				return nil, err
			}

			reg, err := graft.Dep[ports.Registry](ctx)
			if err != nil {
				return nil, err
			}

			pub, err := graft.Dep[ports.EventPublisher](ctx)
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

			return New(reg, pub, log, tracer, cfg.Policy.MinStake), nil
		},
	})
}
