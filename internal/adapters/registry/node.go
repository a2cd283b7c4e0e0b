package registry

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/splitup/internal/adapters/config"
	"go.trai.ch/splitup/internal/adapters/registry/postgres"
	"go.trai.ch/splitup/internal/core/domain"
	"go.trai.ch/splitup/internal/core/ports"
	"go.trai.ch/zerr"
)

// NodeID is the unique identifier for the registry Graft node.
const NodeID graft.ID = "adapter.registry"

func init() {
	graft.Register(graft.Node[ports.Registry]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID},
		Run: func(ctx context.Context) (ports.Registry, error) {
			cfg, err := graft.Dep[*domain.Config](ctx)
			if err != nil {
				return nil, err
			}
			return Open(ctx, cfg.Store)
		},
	})
}

// Open returns the registry backend selected by the store configuration.
func Open(ctx context.Context, store domain.StoreConfig) (ports.Registry, error) {
	switch store.Backend {
	case domain.BackendMemory:
		return NewMemoryStore(), nil
	case domain.BackendFile:
		s, err := NewFileStore(store.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case domain.BackendPostgres:
		s, err := postgres.Open(ctx, store.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, zerr.With(zerr.Wrap(domain.ErrInvalidConfig, "unknown store backend"), "backend", store.Backend)
	}
}
