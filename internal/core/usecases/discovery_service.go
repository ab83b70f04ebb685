package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/walkguide/internal/core/domain"
	"github.com/samirrijal/walkguide/internal/core/ports"
	"github.com/samirrijal/walkguide/internal/pkg/metrics"
	"github.com/samirrijal/walkguide/internal/pkg/telemetry"
)

// PlaceSource supplies the candidate places of a category.
type PlaceSource interface {
	Places(ctx context.Context, category string) ([]domain.PointOfInterest, error)
}

// DiscoveryOptions tune proximity tracking.
type DiscoveryOptions struct {
	ThresholdKm     float64
	Policy          domain.ProximityPolicy
	SimulationStart domain.GeoPoint
}

// maxSaveAttempts bounds how often UpdatePosition re-reads a session that
// another writer changed underneath it.
const maxSaveAttempts = 5

// DiscoveryService tracks walkers and reveals places they come close to.
type DiscoveryService struct {
	places    PlaceSource
	sessions  ports.SessionStore
	publisher ports.EventPublisher
	opts      DiscoveryOptions
	locks     *keyedMutex
	now       func() time.Time
}

// NewDiscoveryService creates a DiscoveryService. publisher may be nil.
func NewDiscoveryService(places PlaceSource, sessions ports.SessionStore, publisher ports.EventPublisher, opts DiscoveryOptions) (*DiscoveryService, error) {
	if opts.ThresholdKm <= 0 {
		return nil, fmt.Errorf("%w: threshold must be positive, got %v", domain.ErrInvalidInput, opts.ThresholdKm)
	}
	policy, err := domain.ParseProximityPolicy(string(opts.Policy))
	if err != nil {
		return nil, err
	}
	opts.Policy = policy

	return &DiscoveryService{
		places:    places,
		sessions:  sessions,
		publisher: publisher,
		opts:      opts,
		locks:     newKeyedMutex(),
		now:       time.Now,
	}, nil
}

// ThresholdKm returns the configured discovery radius.
func (s *DiscoveryService) ThresholdKm() float64 { return s.opts.ThresholdKm }

// StartSession opens a session tracking places of category (all places if empty).
func (s *DiscoveryService) StartSession(ctx context.Context, category string) (*domain.Session, error) {
	now := s.now().UTC()
	sess := &domain.Session{
		ID:        uuid.NewString(),
		Category:  strings.TrimSpace(category),
		Visited:   domain.NewVisitedSet(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	slog.InfoContext(ctx, "session started", "session", sess.ID, "category", sess.Category)
	return sess, nil
}

// Session returns a session by ID.
func (s *DiscoveryService) Session(ctx context.Context, id string) (*domain.Session, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: session id is required", domain.ErrInvalidInput)
	}
	return s.sessions.Get(ctx, id)
}

// ResetSession ends a session and forgets its visited places.
func (s *DiscoveryService) ResetSession(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: session id is required", domain.ErrInvalidInput)
	}
	unlock := s.locks.Lock(id)
	defer unlock()
	return s.sessions.Delete(ctx, id)
}

// UpdatePosition runs a proximity check for the session at pos and stores
// the resulting visited set. Updates for one session are serialized.
func (s *DiscoveryService) UpdatePosition(ctx context.Context, id string, pos domain.GeoPoint) (res *domain.ProximityResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "DiscoveryService.UpdatePosition",
		attribute.String("session.id", id),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	if id == "" {
		return nil, fmt.Errorf("%w: session id is required", domain.ErrInvalidInput)
	}
	if err := pos.Validate(); err != nil {
		return nil, fmt.Errorf("position: %w", err)
	}

	// The local lock orders updates within this process. Other processes
	// sharing the store are caught by the versioned Save, and the check is
	// redone against the fresher session.
	unlock := s.locks.Lock(id)
	defer unlock()

	var (
		sess       *domain.Session
		candidates []domain.PointOfInterest
		result     domain.ProximityResult
	)
	for attempt := 1; ; attempt++ {
		sess, err = s.sessions.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		candidates, err = s.places.Places(ctx, sess.Category)
		if err != nil {
			return nil, err
		}

		result, err = CheckProximity(pos, candidates, s.opts.ThresholdKm, sess.Visited, s.opts.Policy)
		if err != nil {
			return nil, err
		}

		sess.Visited = result.Visited
		sess.Position = &pos
		sess.UpdatedAt = s.now().UTC()
		err = s.sessions.Save(ctx, sess)
		if err == nil {
			break
		}
		if errors.Is(err, domain.ErrConflict) && attempt < maxSaveAttempts {
			slog.DebugContext(ctx, "session changed concurrently, retrying", "session", id, "attempt", attempt)
			continue
		}
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("save session: %w", err)
	}

	metrics.Discoveries.WithLabelValues(result.State.String()).Inc()
	span.SetAttributes(attribute.String("discovery.state", result.State.String()))

	if result.State == domain.NewlyVisited {
		slog.InfoContext(ctx, "place discovered",
			"session", id,
			"place", result.Nearby.Name,
			"distance_km", result.DistanceKm,
			"visited", result.Visited.Len(),
		)
		s.publish(ctx, &domain.DiscoveryEvent{
			SessionID:  id,
			Place:      *result.Nearby,
			DistanceKm: result.DistanceKm,
			VisitedN:   result.Visited.Len(),
			At:         sess.UpdatedAt,
		})
	}
	return &result, nil
}

// Simulate moves the session's walker to the simulated position for progress.
func (s *DiscoveryService) Simulate(ctx context.Context, id string, progress int) (*domain.GeoPoint, *domain.ProximityResult, error) {
	pos, err := SimulatedPosition(s.opts.SimulationStart, progress)
	if err != nil {
		return nil, nil, err
	}
	res, err := s.UpdatePosition(ctx, id, pos)
	if err != nil {
		return nil, nil, err
	}
	return &pos, res, nil
}

// publish is best effort: the visited set is already stored.
func (s *DiscoveryService) publish(ctx context.Context, ev *domain.DiscoveryEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishDiscovery(ctx, ev); err != nil {
		slog.WarnContext(ctx, "publish discovery failed", "session", ev.SessionID, "error", err)
	}
}

// keyedMutex hands out one mutex per key and frees it when unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock blocks until key is held and returns its unlock func.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
