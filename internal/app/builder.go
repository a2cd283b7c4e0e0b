package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/splitup/internal/core/domain"
	"go.trai.ch/splitup/internal/core/ports"
)

// Components contains all the initialized application components.
// This struct provides controlled access to components needed by the CLI layer.
type Components struct {
	App    *App
	Logger ports.Logger
	Config *domain.Config
}

// BuildOption adjusts the graph before it runs.
type BuildOption = graft.Option

// WithPublisher replaces the event publisher, for example with a recorder.
func WithPublisher(pub ports.EventPublisher) BuildOption {
	return graft.PatchValue[ports.EventPublisher](pub)
}

// WithLogger replaces the logger, for example with one configured from flags.
func WithLogger(log ports.Logger) BuildOption {
	return graft.PatchValue[ports.Logger](log)
}

// Build assembles the components for cfg. Every call builds a fresh graph.
func Build(ctx context.Context, cfg *domain.Config, opts ...BuildOption) (*Components, error) {
	opts = append([]graft.Option{
		graft.WithCache(graft.NewMemoryCache()),
		graft.PatchValue[*domain.Config](cfg),
	}, opts...)
	components, _, err := graft.ExecuteFor[*Components](ctx, opts...)
	if err != nil {
		return nil, err
	}
	return components, nil
}
