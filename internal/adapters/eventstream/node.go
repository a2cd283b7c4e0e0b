package eventstream

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/splitup/internal/adapters/events"
	"go.trai.ch/splitup/internal/adapters/logger"
	"go.trai.ch/splitup/internal/core/ports"
)

// NodeID is the unique identifier for the event stream server Graft node.
const NodeID graft.ID = "adapter.eventstream"

func init() {
	graft.Register(graft.Node[*Server]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{events.SourceNodeID, logger.NodeID},
		Run: func(ctx context.Context) (*Server, error) {
			source, err := graft.Dep[ports.EventSource](ctx)
			if err != nil {
				return nil, err
			}

			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			return NewServer(source, log), nil
		},
	})
}
