package registrar

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/splitup/internal/adapters/events"    //nolint:depguard // Wired in engine wiring
	"go.trai.ch/splitup/internal/adapters/logger"    //nolint:depguard // Wired in engine wiring
	"go.trai.ch/splitup/internal/adapters/registry"  //nolint:depguard // Wired in engine wiring
	"go.trai.ch/splitup/internal/adapters/telemetry" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/splitup/internal/core/ports"
)

// NodeID is the unique identifier for the registrar Graft node.
const NodeID graft.ID = "engine.registrar"

func init() {
	graft.Register(graft.Node[*Registrar]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			registry.NodeID,
			events.PublisherNodeID,
			logger.NodeID,
			telemetry.TracerNodeID,
		},
		Run: func(ctx context.Context) (*Registrar, error) {
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

			return New(reg, pub, log, tracer), nil
		},
	})
}
