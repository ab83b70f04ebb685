package kmlexport

import (
	"fmt"
	"image/color"
	"io"

	"github.com/twpayne/go-kml/v2"

	"github.com/samirrijal/walkguide/internal/core/domain"
)

const (
	stopStyleID = "stop"
	pathStyleID = "path"
)

// Encode writes route as a KML document: one Placemark per stop, numbered
// in walking order, followed by the path as a LineString.
func Encode(w io.Writer, route *domain.WalkRoute) error {
	if route == nil {
		return fmt.Errorf("%w: route is nil", domain.ErrInvalidInput)
	}

	children := []kml.Element{
		kml.Name(fmt.Sprintf("Guided walk: %s", route.Category)),
		kml.Description(fmt.Sprintf("%d stops, %.2f km, about %d min walking", len(route.Stops), route.DistanceKm, route.DurationMin)),
		kml.SharedStyle(stopStyleID,
			kml.IconStyle(kml.Color(color.RGBA{R: 255, G: 140, B: 0, A: 255})),
		),
		kml.SharedStyle(pathStyleID,
			kml.LineStyle(
				kml.Color(color.RGBA{R: 0, G: 128, B: 255, A: 255}),
				kml.Width(4),
			),
		),
	}

	for i, stop := range route.Stops {
		children = append(children, kml.Placemark(
			kml.Name(fmt.Sprintf("%d. %s", i+1, stop.Name)),
			kml.Description(stop.Description),
			kml.StyleURL("#"+stopStyleID),
			kml.Point(
				kml.Coordinates(kml.Coordinate{Lon: stop.Location.Lon, Lat: stop.Location.Lat}),
			),
		))
	}

	if len(route.Path.Coordinates) >= 2 {
		coords := make([]kml.Coordinate, len(route.Path.Coordinates))
		for i, p := range route.Path.Coordinates {
			coords[i] = kml.Coordinate{Lon: p.Lon, Lat: p.Lat}
		}
		children = append(children, kml.Placemark(
			kml.Name(fmt.Sprintf("Path (%s)", route.PathSource)),
			kml.StyleURL("#"+pathStyleID),
			kml.LineString(
				kml.Tessellate(true),
				kml.Coordinates(coords...),
			),
		))
	}

	return kml.KML(kml.Document(children...)).WriteIndent(w, "", "  ")
}
