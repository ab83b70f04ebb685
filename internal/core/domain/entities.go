package domain

import (
	"fmt"
	"strings"
	"time"
)

// PointOfInterest is a named place on the walking map. Name identifies the
// place within a working set.
type PointOfInterest struct {
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Description string   `json:"description,omitempty"`
	Location    GeoPoint `json:"location"`
}

// Validate checks that the place can be used for sequencing and tracking.
func (p PointOfInterest) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: place name is required", ErrInvalidInput)
	}
	if err := p.Location.Validate(); err != nil {
		return fmt.Errorf("place %q: %w", p.Name, err)
	}
	return nil
}

// PathSource says where a walk's path geometry came from.
type PathSource string

const (
	PathFromRouter PathSource = "router"
	PathStraight   PathSource = "straight"
)

// WalkRoute is an ordered walk through the places of one category.
type WalkRoute struct {
	Category     string            `json:"category"`
	Stops        []PointOfInterest `json:"stops"`
	Path         GeoLineString     `json:"path"`
	PathSource   PathSource        `json:"path_source"`
	ShapeFailure string            `json:"shape_failure,omitempty"`
	DistanceKm   float64           `json:"distance_km"`
	DurationMin  int               `json:"duration_min"`
}

// Marker is the rendering data for one place relative to the walker.
type Marker struct {
	Name       string   `json:"name"`
	Category   string   `json:"category"`
	Location   GeoPoint `json:"location"`
	DistanceKm float64  `json:"distance_km"`
	Radius     float64  `json:"radius"`
	Color      [3]int   `json:"color"`
}

// Session is the explicit per-user context for discovery tracking.
type Session struct {
	ID        string     `json:"id"`
	Category  string     `json:"category,omitempty"`
	Visited   VisitedSet `json:"visited"`
	Position  *GeoPoint  `json:"position,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Version   int64      `json:"version"`
}

// PositionUpdate is one sample of the live position stream.
type PositionUpdate struct {
	SessionID  string    `json:"session_id"`
	Position   GeoPoint  `json:"position"`
	RecordedAt time.Time `json:"recorded_at"`
}

// DiscoveryEvent is emitted when a session visits a place for the first time.
type DiscoveryEvent struct {
	SessionID  string          `json:"session_id"`
	Place      PointOfInterest `json:"place"`
	DistanceKm float64         `json:"distance_km"`
	VisitedN   int             `json:"visited_count"`
	At         time.Time       `json:"at"`
}
