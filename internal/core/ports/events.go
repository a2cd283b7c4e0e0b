package ports

import (
	"context"

	"go.trai.ch/splitup/internal/core/domain"
)

//go:generate go run go.uber.org/mock/mockgen -source=events.go -destination=mocks/mock_events.go -package=mocks

// EventPublisher delivers observational events. Publish never blocks on slow
// consumers and never fails the caller; delivery is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event)
}

// EventSource lets observers subscribe to published events.
type EventSource interface {
	// Subscribe returns a channel of events and a function that ends the subscription.
	Subscribe(buffer int) (<-chan domain.Event, func())
}
