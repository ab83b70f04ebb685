package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/samirrijal/walkguide/internal/core/domain"
)

// Store is an in-memory ports.PlaceRepository that keeps load order.
type Store struct {
	mu     sync.RWMutex
	places []domain.PointOfInterest
	byName map[string]int
}

// NewStore creates a Store holding places.
func NewStore(places []domain.PointOfInterest) *Store {
	s := &Store{byName: make(map[string]int, len(places))}
	_ = s.UpsertBatch(context.Background(), places)
	return s
}

// Open loads a catalog file into a new Store.
func Open(path string) (*Store, error) {
	places, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return NewStore(places), nil
}

func (s *Store) List(ctx context.Context) ([]domain.PointOfInterest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.PointOfInterest, len(s.places))
	copy(out, s.places)
	return out, nil
}

func (s *Store) ListByCategory(ctx context.Context, category string) ([]domain.PointOfInterest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.PointOfInterest
	for _, p := range s.places {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out, nil
}

// Categories returns categories in order of first appearance.
func (s *Store) Categories(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	for _, p := range s.places {
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	return out, nil
}

func (s *Store) GetByName(ctx context.Context, name string) (*domain.PointOfInterest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("place %q: %w", name, domain.ErrNotFound)
	}
	p := s.places[i]
	return &p, nil
}

// UpsertBatch replaces places with the same name in place and appends new ones.
func (s *Store) UpsertBatch(ctx context.Context, places []domain.PointOfInterest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range places {
		if i, ok := s.byName[p.Name]; ok {
			s.places[i] = p
			continue
		}
		s.byName[p.Name] = len(s.places)
		s.places = append(s.places, p)
	}
	return nil
}
