package ports

import (
	"context"

	"github.com/samirrijal/walkguide/internal/core/domain"
)

// PlaceRepository reads and stores points of interest. List methods return
// places in their stored (load) order.
type PlaceRepository interface {
	List(ctx context.Context) ([]domain.PointOfInterest, error)
	ListByCategory(ctx context.Context, category string) ([]domain.PointOfInterest, error)
	Categories(ctx context.Context) ([]string, error)
	GetByName(ctx context.Context, name string) (*domain.PointOfInterest, error)
	UpsertBatch(ctx context.Context, places []domain.PointOfInterest) error
}

// SessionStore persists discovery sessions. Get and Delete return
// domain.ErrNotFound for unknown IDs.
//
// Save is a compare-and-set on Version: it writes only if the stored
// session still has s.Version and then advances s.Version. A stale write
// fails with domain.ErrConflict, and a write to a deleted or expired
// session fails with domain.ErrNotFound instead of recreating it.
type SessionStore interface {
	Create(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, id string) (*domain.Session, error)
	Save(ctx context.Context, s *domain.Session) error
	Delete(ctx context.Context, id string) error
}
