package eligibility

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/splitup/internal/adapters/registry" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/splitup/internal/core/ports"
)

// NodeID is the unique identifier for the eligibility index Graft node.
const NodeID graft.ID = "engine.eligibility"

func init() {
	graft.Register(graft.Node[*Index]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{registry.NodeID},
		Run: func(ctx context.Context) (*Index, error) {
			reg, err := graft.Dep[ports.Registry](ctx)
			if err != nil {
				return nil, err
			}
			return New(reg, DefaultPageSize), nil
		},
	})
}
