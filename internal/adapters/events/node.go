package events

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/splitup/internal/adapters/logger"
	"go.trai.ch/splitup/internal/core/ports"
)

// NodeID is the unique identifier for the event bus Graft node.
const NodeID graft.ID = "adapter.events"

// PublisherNodeID exposes the bus as a ports.EventPublisher.
const PublisherNodeID graft.ID = "adapter.events.publisher"

// SourceNodeID exposes the bus as a ports.EventSource.
const SourceNodeID graft.ID = "adapter.events.source"

func init() {
	graft.Register(graft.Node[*Bus]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID},
		Run: func(ctx context.Context) (*Bus, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewBus(log), nil
		},
	})

	graft.Register(graft.Node[ports.EventPublisher]{
		ID:        PublisherNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{NodeID},
		Run: func(ctx context.Context) (ports.EventPublisher, error) {
			bus, err := graft.Dep[*Bus](ctx)
			if err != nil {
				return nil, err
			}
			return bus, nil
		},
	})

	graft.Register(graft.Node[ports.EventSource]{
		ID:        SourceNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{NodeID},
		Run: func(ctx context.Context) (ports.EventSource, error) {
			bus, err := graft.Dep[*Bus](ctx)
			if err != nil {
				return nil, err
			}
			return bus, nil
		},
	})
}
