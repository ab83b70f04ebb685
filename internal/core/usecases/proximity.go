package usecases

import (
	"fmt"
	"math"

	"github.com/samirrijal/walkguide/internal/core/domain"
)

// CheckProximity looks for a candidate strictly closer than thresholdKm to pos.
//
// With domain.FirstMatch the scan stops at the first in-range candidate in
// input order. With domain.ClosestMatch every candidate is checked and the
// closest in-range one wins, ties going to input order.
//
// A matched place that is not yet in visited is added to the returned set
// and reported as NewlyVisited; an already visited one as Revisited. The
// visited argument itself is never modified.
func CheckProximity(
	pos domain.GeoPoint,
	candidates []domain.PointOfInterest,
	thresholdKm float64,
	visited domain.VisitedSet,
	policy domain.ProximityPolicy,
) (domain.ProximityResult, error) {
	res := domain.ProximityResult{State: domain.NothingNearby, Visited: visited}

	if err := pos.Validate(); err != nil {
		return res, fmt.Errorf("position: %w", err)
	}
	if math.IsNaN(thresholdKm) || math.IsInf(thresholdKm, 0) || thresholdKm <= 0 {
		return res, fmt.Errorf("%w: threshold must be a positive number of kilometers, got %v", domain.ErrInvalidInput, thresholdKm)
	}

	for i := range candidates {
		if err := candidates[i].Validate(); err != nil {
			return res, err
		}
	}

	match := -1
	matchDist := 0.0
	for i := range candidates {
		d := distanceKm(pos, candidates[i].Location)
		if d >= thresholdKm {
			continue
		}
		if match < 0 || (policy == domain.ClosestMatch && d < matchDist-tieToleranceKm) {
			match, matchDist = i, d
		}
		if policy != domain.ClosestMatch {
			break
		}
	}
	if match < 0 {
		return res, nil
	}

	place := candidates[match]
	res.Nearby = &place
	res.DistanceKm = matchDist

	updated, added := visited.With(place.Name)
	res.Visited = updated
	if added {
		res.State = domain.NewlyVisited
	} else {
		res.State = domain.Revisited
	}
	return res, nil
}
