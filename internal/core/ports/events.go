package ports

import (
	"context"

	"github.com/DanielPopoola/charge-connector/internal/core/domain"
)

// EventPublisher announces persisted status changes. Publish must not block
// the caller on delivery.
type EventPublisher interface {
	Publish(ctx context.Context, change domain.StatusChange)
}

// InFlightGuard tracks which charges have a gateway operation running.
type InFlightGuard interface {
	// Acquire returns false if key is already held.
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string)
}
