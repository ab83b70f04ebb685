package usecases

import (
	"fmt"

	"github.com/samirrijal/walkguide/internal/core/domain"
	"github.com/samirrijal/walkguide/internal/pkg/geospatial"
)

// tieToleranceKm is how much closer a candidate must be to displace the
// current best one. Candidates within it count as equidistant and the one
// seen first in input order wins.
const tieToleranceKm = 1e-9

// walkingSpeedKmh is the assumed average pace for duration estimates.
const walkingSpeedKmh = 5.0

func distanceKm(a, b domain.GeoPoint) float64 {
	return geospatial.GeodesicKm(a.Lat, a.Lon, b.Lat, b.Lon)
}

// SequenceStops orders points into a walk using the nearest-neighbour
// heuristic. The walk starts at the point nearest to anchor and then always
// moves to the nearest point not yet placed. Sets of fewer than three points
// are returned in input order. The input slice is not modified.
func SequenceStops(points []domain.PointOfInterest, anchor domain.GeoPoint) ([]domain.PointOfInterest, error) {
	if err := anchor.Validate(); err != nil {
		return nil, fmt.Errorf("anchor: %w", err)
	}
	for i := range points {
		if err := points[i].Validate(); err != nil {
			return nil, err
		}
	}

	out := make([]domain.PointOfInterest, 0, len(points))
	if len(points) < 3 {
		return append(out, points...), nil
	}

	remaining := make([]domain.PointOfInterest, len(points))
	copy(remaining, points)

	current := anchor
	for len(remaining) > 0 {
		best := nearestIndex(current, remaining)
		next := remaining[best]
		out = append(out, next)
		current = next.Location

		// Keep the remaining points in input order for the tie-break.
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return out, nil
}

func nearestIndex(from domain.GeoPoint, candidates []domain.PointOfInterest) int {
	best := 0
	bestDist := distanceKm(from, candidates[0].Location)
	for i := 1; i < len(candidates); i++ {
		if d := distanceKm(from, candidates[i].Location); d < bestDist-tieToleranceKm {
			best, bestDist = i, d
		}
	}
	return best
}

// RouteStats returns the length of the walk along its stops and the walking
// time in whole minutes.
func RouteStats(stops []domain.PointOfInterest) (km float64, minutes int) {
	if len(stops) < 2 {
		return 0, 0
	}
	for i := 1; i < len(stops); i++ {
		km += distanceKm(stops[i-1].Location, stops[i].Location)
	}
	return km, int(km / walkingSpeedKmh * 60)
}
