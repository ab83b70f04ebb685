package domain

import (
	"encoding/json"
	"fmt"
)

// VisitedSet is the set of place names a session has discovered. It is a
// value: With returns a new set and never mutates the receiver, so callers
// replace their stored copy with the returned one.
type VisitedSet struct {
	names []string
	index map[string]struct{}
}

// NewVisitedSet builds a set from names, dropping duplicates.
func NewVisitedSet(names ...string) VisitedSet {
	var v VisitedSet
	for _, n := range names {
		v, _ = v.With(n)
	}
	return v
}

// Contains reports whether name has been visited.
func (v VisitedSet) Contains(name string) bool {
	_, ok := v.index[name]
	return ok
}

// With returns the union of v and {name} and whether name was new.
func (v VisitedSet) With(name string) (VisitedSet, bool) {
	if v.Contains(name) {
		return v, false
	}
	names := make([]string, len(v.names), len(v.names)+1)
	copy(names, v.names)
	names = append(names, name)

	index := make(map[string]struct{}, len(names))
	for _, n := range names {
		index[n] = struct{}{}
	}
	return VisitedSet{names: names, index: index}, true
}

// Names returns the visited names in discovery order.
func (v VisitedSet) Names() []string {
	out := make([]string, len(v.names))
	copy(out, v.names)
	return out
}

// Len returns the number of visited places.
func (v VisitedSet) Len() int { return len(v.names) }

func (v VisitedSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Names())
}

func (v *VisitedSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*v = NewVisitedSet(names...)
	return nil
}

// DiscoveryState is the outcome of one position update.
type DiscoveryState int

const (
	NothingNearby DiscoveryState = iota
	Revisited
	NewlyVisited
)

var discoveryStateNames = [...]string{"nothing_nearby", "revisited", "newly_visited"}

func (s DiscoveryState) String() string {
	if s < 0 || int(s) >= len(discoveryStateNames) {
		return fmt.Sprintf("DiscoveryState(%d)", int(s))
	}
	return discoveryStateNames[s]
}

func (s DiscoveryState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *DiscoveryState) UnmarshalText(text []byte) error {
	for i, n := range discoveryStateNames {
		if n == string(text) {
			*s = DiscoveryState(i)
			return nil
		}
	}
	return fmt.Errorf("unknown discovery state %q", text)
}

// ProximityPolicy decides which candidate wins when several are in range.
type ProximityPolicy string

const (
	// FirstMatch reports the first in-range candidate in input order.
	FirstMatch ProximityPolicy = "first"
	// ClosestMatch reports the closest in-range candidate; ties go to input order.
	ClosestMatch ProximityPolicy = "closest"
)

// ParseProximityPolicy maps a config value to a policy. Empty means FirstMatch.
func ParseProximityPolicy(s string) (ProximityPolicy, error) {
	switch ProximityPolicy(s) {
	case "", FirstMatch:
		return FirstMatch, nil
	case ClosestMatch:
		return ClosestMatch, nil
	}
	return "", fmt.Errorf("%w: unknown proximity policy %q", ErrInvalidInput, s)
}

// ProximityResult is what a position update produced.
type ProximityResult struct {
	Nearby     *PointOfInterest `json:"nearby,omitempty"`
	DistanceKm float64          `json:"distance_km,omitempty"`
	State      DiscoveryState   `json:"state"`
	Visited    VisitedSet       `json:"visited"`
}
