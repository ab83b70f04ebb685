package ports

import (
	"context"

	"github.com/samirrijal/walkguide/internal/core/domain"
)

// PathShaper expands an ordered list of waypoints into a denser walkable
// path. Failures are reported as *domain.ShapeError.
type PathShaper interface {
	Shape(ctx context.Context, waypoints []domain.GeoPoint) ([]domain.GeoPoint, error)
}

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishDiscovery(ctx context.Context, event *domain.DiscoveryEvent) error
	PublishPosition(ctx context.Context, update *domain.PositionUpdate) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribePositions(ctx context.Context, handler func(ctx context.Context, update *domain.PositionUpdate) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
