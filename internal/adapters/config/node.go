package config

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/splitup/internal/core/domain"
	"go.trai.ch/splitup/internal/core/ports"
)

// LoaderNodeID is the unique identifier for the config loader Graft node.
const LoaderNodeID graft.ID = "adapter.config_loader"

// NodeID is the unique identifier for the loaded configuration Graft node.
// The CLI patches it with the configuration it loaded from its flags.
const NodeID graft.ID = "adapter.config"

// CommitteeNodeID is the unique identifier for the scheduler committee Graft node.
const CommitteeNodeID graft.ID = "adapter.config.committee"

func init() {
	graft.Register(graft.Node[ports.ConfigLoader]{
		ID:        LoaderNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.ConfigLoader, error) {
			return NewLoader(), nil
		},
	})

	graft.Register(graft.Node[*domain.Config]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{LoaderNodeID},
		Run: func(ctx context.Context) (*domain.Config, error) {
			loader, err := graft.Dep[ports.ConfigLoader](ctx)
			if err != nil {
				return nil, err
			}
			return loader.Load(ResolvePath(""))
		},
	})

	graft.Register(graft.Node[*domain.Committee]{
		ID:        CommitteeNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{NodeID},
		Run: func(ctx context.Context) (*domain.Committee, error) {
			cfg, err := graft.Dep[*domain.Config](ctx)
			if err != nil {
				return nil, err
			}
			return domain.NewCommittee(cfg.Policy.Schedulers)
		},
	})
}
