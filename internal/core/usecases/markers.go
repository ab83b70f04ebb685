package usecases

import (
	"fmt"

	"github.com/samirrijal/walkguide/internal/core/domain"
)

const (
	markerNearKm = 0.05
	markerFarKm  = 0.5

	DefaultMarkerBaseRadius = 50.0
	DefaultMarkerMaxRadius  = 150.0
)

// Marker colors as RGB.
var (
	DefaultPlaceColor = [3]int{0, 200, 100}
	WalkerColor       = [3]int{0, 128, 255}
	TargetColor       = [3]int{255, 140, 0}
)

var categoryColors = map[string][3]int{
	"Nature":     {34, 139, 34},
	"Historical": {178, 34, 34},
	"Art":        {138, 43, 226},
	"Sight":      TargetColor,
}

// MarkerRadius scales an icon by distance: maxRadius within 50 m, baseRadius
// beyond 500 m and linear in between.
func MarkerRadius(distKm, baseRadius, maxRadius float64) float64 {
	switch {
	case distKm <= markerNearKm:
		return maxRadius
	case distKm >= markerFarKm:
		return baseRadius
	}
	return maxRadius - (distKm-markerNearKm)/(markerFarKm-markerNearKm)*(maxRadius-baseRadius)
}

// CategoryColor returns the marker color used for a category.
func CategoryColor(category string) [3]int {
	if c, ok := categoryColors[category]; ok {
		return c
	}
	return DefaultPlaceColor
}

// BuildMarkers computes the rendering layer for places seen from pos.
func BuildMarkers(pos domain.GeoPoint, places []domain.PointOfInterest) ([]domain.Marker, error) {
	if err := pos.Validate(); err != nil {
		return nil, fmt.Errorf("position: %w", err)
	}
	markers := make([]domain.Marker, 0, len(places))
	for _, p := range places {
		d := distanceKm(pos, p.Location)
		markers = append(markers, domain.Marker{
			Name:       p.Name,
			Category:   p.Category,
			Location:   p.Location,
			DistanceKm: d,
			Radius:     MarkerRadius(d, DefaultMarkerBaseRadius, DefaultMarkerMaxRadius),
			Color:      CategoryColor(p.Category),
		})
	}
	return markers, nil
}

// Simulation steps per unit of progress, heading north-east.
const (
	simLatStep  = 0.0003
	simLonStep  = 0.0001
	MaxProgress = 100
)

// SimulatedPosition returns where a simulated walker is after progress steps
// from start. progress must be within [0, MaxProgress].
func SimulatedPosition(start domain.GeoPoint, progress int) (domain.GeoPoint, error) {
	if progress < 0 || progress > MaxProgress {
		return domain.GeoPoint{}, fmt.Errorf("%w: progress must be 0-%d, got %d", domain.ErrInvalidInput, MaxProgress, progress)
	}
	p := domain.GeoPoint{
		Lat: start.Lat + float64(progress)*simLatStep,
		Lon: start.Lon + float64(progress)*simLonStep,
	}
	if err := p.Validate(); err != nil {
		return domain.GeoPoint{}, err
	}
	return p, nil
}
