package orchestrator

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

// NodeID is the unique identifier for the orchestrator Graft node.
const NodeID graft.ID = "engine.orchestrator"

func init() {
	graft.Register(graft.Node[*Orchestrator]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			config.CommitteeNodeID,
			registry.NodeID,
			events.PublisherNodeID,
			logger.NodeID,
			telemetry.TracerNodeID,
		},
		Run: func(ctx context.Context) (*Orchestrator, error) {
			cfg, err := graft.Dep[*domain.Config](ctx)
			if err != nil {
				return nil, err
			}

			committee, err := graft.Dep[*domain.Committee](ctx)
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

			sampler := domain.PercentSampler{Threshold: cfg.Policy.SamplingThreshold}
			return New(reg, pub, sampler, committee, log, tracer, WithMinStake(cfg.Policy.MinStake)), nil
		},
	})
}
