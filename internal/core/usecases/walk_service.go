package usecases

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/walkguide/internal/core/domain"
	"github.com/samirrijal/walkguide/internal/core/ports"
	"github.com/samirrijal/walkguide/internal/pkg/metrics"
	"github.com/samirrijal/walkguide/internal/pkg/telemetry"
)

// DefaultShapeTimeout bounds a single path-shaping call.
const DefaultShapeTimeout = 2 * time.Second

// WalkServiceOptions tune the guided-walk planner.
type WalkServiceOptions struct {
	Anchor        domain.GeoPoint
	ShapeTimeout  time.Duration
	ShapeCacheTTL time.Duration
	PlacesTTL     time.Duration
}

// WalkService plans guided walks over the place catalog.
type WalkService struct {
	places ports.PlaceRepository
	shaper ports.PathShaper
	cache  ports.CacheService
	opts   WalkServiceOptions
}

// NewWalkService creates a WalkService. shaper and cache are optional.
func NewWalkService(places ports.PlaceRepository, shaper ports.PathShaper, cache ports.CacheService, opts WalkServiceOptions) *WalkService {
	if opts.ShapeTimeout <= 0 {
		opts.ShapeTimeout = DefaultShapeTimeout
	}
	if opts.ShapeCacheTTL <= 0 {
		opts.ShapeCacheTTL = 24 * time.Hour
	}
	if opts.PlacesTTL <= 0 {
		opts.PlacesTTL = 10 * time.Minute
	}
	return &WalkService{places: places, shaper: shaper, cache: cache, opts: opts}
}

// Anchor returns the deployment's reference coordinate.
func (s *WalkService) Anchor() domain.GeoPoint { return s.opts.Anchor }

// Categories lists the categories present in the catalog.
func (s *WalkService) Categories(ctx context.Context) ([]string, error) {
	return s.places.Categories(ctx)
}

// Places returns the places of a category, or every place for an empty category.
func (s *WalkService) Places(ctx context.Context, category string) ([]domain.PointOfInterest, error) {
	cacheKey := "places:category:" + category
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var places []domain.PointOfInterest
			if err := json.Unmarshal(data, &places); err == nil {
				metrics.CacheHits.WithLabelValues("places").Inc()
				return places, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("places").Inc()
	}

	var (
		places []domain.PointOfInterest
		err    error
	)
	if category == "" {
		places, err = s.places.List(ctx)
	} else {
		places, err = s.places.ListByCategory(ctx, category)
	}
	if err != nil {
		return nil, fmt.Errorf("list places: %w", err)
	}

	if s.cache != nil {
		if data, err := json.Marshal(places); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, int(s.opts.PlacesTTL.Seconds()))
		}
	}
	return places, nil
}

// Place returns a single place by name.
func (s *WalkService) Place(ctx context.Context, name string) (*domain.PointOfInterest, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: place name is required", domain.ErrInvalidInput)
	}
	return s.places.GetByName(ctx, name)
}

// PlanGuidedWalk orders the places of category into a walk from the anchor.
// With shape set, the path is expanded by the path shaper; when shaping
// fails the straight path is returned and the failure reason recorded on
// the route.
func (s *WalkService) PlanGuidedWalk(ctx context.Context, category string, shape bool) (route *domain.WalkRoute, err error) {
	ctx, span := telemetry.StartSpan(ctx, "WalkService.PlanGuidedWalk",
		attribute.String("walk.category", category),
		attribute.Bool("walk.shape", shape),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	if strings.TrimSpace(category) == "" {
		return nil, fmt.Errorf("%w: category is required", domain.ErrInvalidInput)
	}

	places, err := s.Places(ctx, category)
	if err != nil {
		return nil, err
	}

	stops, err := SequenceStops(places, s.opts.Anchor)
	if err != nil {
		return nil, err
	}

	km, minutes := RouteStats(stops)
	route = &domain.WalkRoute{
		Category:    category,
		Stops:       stops,
		Path:        straightPath(stops),
		PathSource:  domain.PathStraight,
		DistanceKm:  km,
		DurationMin: minutes,
	}

	if shape && s.shaper != nil && len(stops) >= 2 {
		s.decorate(ctx, route)
	}

	metrics.WalksPlanned.WithLabelValues(category, string(route.PathSource)).Inc()
	return route, nil
}

// decorate replaces the straight path with a shaped one when possible.
func (s *WalkService) decorate(ctx context.Context, route *domain.WalkRoute) {
	waypoints := route.Path.Coordinates
	cacheKey := shapeCacheKey(waypoints)

	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var path []domain.GeoPoint
			if err := json.Unmarshal(data, &path); err == nil && len(path) >= 2 {
				metrics.CacheHits.WithLabelValues("shape").Inc()
				route.Path = domain.GeoLineString{Coordinates: path}
				route.PathSource = domain.PathFromRouter
				return
			}
		}
		metrics.CacheMisses.WithLabelValues("shape").Inc()
	}

	shapeCtx, cancel := context.WithTimeout(ctx, s.opts.ShapeTimeout)
	defer cancel()

	start := time.Now()
	path, err := s.shaper.Shape(shapeCtx, waypoints)
	metrics.PathShapeDuration.Observe(time.Since(start).Seconds())
	if err == nil && len(path) < 2 {
		err = &domain.ShapeError{Reason: domain.ShapeMalformed, Err: errors.New("shaped path has fewer than 2 points")}
	}
	if err != nil {
		reason := domain.ShapeFailureOf(err)
		if errors.Is(err, context.DeadlineExceeded) {
			reason = domain.ShapeTimeout
		}
		metrics.PathShapeOutcomes.WithLabelValues(string(reason)).Inc()
		slog.WarnContext(ctx, "path shaping failed, using straight path",
			"category", route.Category,
			"reason", string(reason),
			"waypoints", len(waypoints),
			"error", err,
		)
		route.ShapeFailure = string(reason)
		return
	}

	metrics.PathShapeOutcomes.WithLabelValues("ok").Inc()
	route.Path = domain.GeoLineString{Coordinates: path}
	route.PathSource = domain.PathFromRouter

	if s.cache != nil {
		if data, err := json.Marshal(path); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, int(s.opts.ShapeCacheTTL.Seconds()))
		}
	}
}

// Markers returns the rendering layer for a category as seen from pos.
func (s *WalkService) Markers(ctx context.Context, category string, pos domain.GeoPoint) ([]domain.Marker, error) {
	places, err := s.Places(ctx, category)
	if err != nil {
		return nil, err
	}
	return BuildMarkers(pos, places)
}

func straightPath(stops []domain.PointOfInterest) domain.GeoLineString {
	coords := make([]domain.GeoPoint, len(stops))
	for i, p := range stops {
		coords[i] = p.Location
	}
	return domain.GeoLineString{Coordinates: coords}
}

// shapeCacheKey identifies an ordered waypoint sequence.
func shapeCacheKey(waypoints []domain.GeoPoint) string {
	h := sha256.New()
	for _, p := range waypoints {
		h.Write([]byte(strconv.FormatFloat(p.Lat, 'f', 6, 64)))
		h.Write([]byte{','})
		h.Write([]byte(strconv.FormatFloat(p.Lon, 'f', 6, 64)))
		h.Write([]byte{';'})
	}
	return "walks:shape:" + hex.EncodeToString(h.Sum(nil)[:16])
}
