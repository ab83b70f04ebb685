package usecases_test

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/samirrijal/walkguide/internal/core/domain"
	"github.com/samirrijal/walkguide/internal/core/usecases"
)

func TestCheckProximity_NewThenRevisit(t *testing.T) {
	p := poi("P", 48.1372, 11.5755)
	candidates := []domain.PointOfInterest{p}

	first, err := usecases.CheckProximity(marienplatz, candidates, 0.25, domain.NewVisitedSet(), domain.FirstMatch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Nearby == nil || first.Nearby.Name != "P" {
		t.Fatalf("expected P nearby, got %+v", first.Nearby)
	}
	if first.State != domain.NewlyVisited {
		t.Errorf("expected newly_visited, got %s", first.State)
	}
	if !reflect.DeepEqual(first.Visited.Names(), []string{"P"}) {
		t.Errorf("expected visited {P}, got %v", first.Visited.Names())
	}

	second, err := usecases.CheckProximity(marienplatz, candidates, 0.25, first.Visited, domain.FirstMatch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Nearby == nil || second.Nearby.Name != "P" {
		t.Fatalf("expected P still nearby, got %+v", second.Nearby)
	}
	if second.State != domain.Revisited {
		t.Errorf("expected revisited, got %s", second.State)
	}
	if second.Visited.Len() != 1 {
		t.Errorf("expected visited set to stay at 1, got %v", second.Visited.Names())
	}
}

func TestCheckProximity_DoesNotMutateInputSet(t *testing.T) {
	visited := domain.NewVisitedSet("Other")
	res, err := usecases.CheckProximity(marienplatz, []domain.PointOfInterest{poi("P", 48.1372, 11.5755)}, 0.25, visited, domain.FirstMatch)
	if err != nil {
		t.Fatal(err)
	}
	if visited.Len() != 1 || visited.Contains("P") {
		t.Errorf("input set was modified: %v", visited.Names())
	}
	if res.Visited.Len() != 2 {
		t.Errorf("expected 2 visited, got %v", res.Visited.Names())
	}
}

func TestCheckProximity_NothingNearby(t *testing.T) {
	visited := domain.NewVisitedSet("Q")
	res, err := usecases.CheckProximity(marienplatz, []domain.PointOfInterest{poi("Far", 48.20, 11.70)}, 0.3, visited, domain.FirstMatch)
	if err != nil {
		t.Fatal(err)
	}
	if res.Nearby != nil {
		t.Errorf("expected nothing nearby, got %s", res.Nearby.Name)
	}
	if res.State != domain.NothingNearby {
		t.Errorf("expected nothing_nearby, got %s", res.State)
	}
	if !reflect.DeepEqual(res.Visited.Names(), []string{"Q"}) {
		t.Errorf("expected visited set passed through, got %v", res.Visited.Names())
	}
}

func TestCheckProximity_EmptyCandidates(t *testing.T) {
	res, err := usecases.CheckProximity(marienplatz, nil, 0.3, domain.NewVisitedSet(), domain.FirstMatch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Nearby != nil || res.State != domain.NothingNearby {
		t.Errorf("expected no match, got %+v", res)
	}
}

func TestCheckProximity_ThresholdIsStrict(t *testing.T) {
	p := poi("P", 48.1351, 11.5762)
	d := km(marienplatz, p.Location)

	res, err := usecases.CheckProximity(marienplatz, []domain.PointOfInterest{p}, d, domain.NewVisitedSet(), domain.FirstMatch)
	if err != nil {
		t.Fatal(err)
	}
	if res.Nearby != nil {
		t.Errorf("point at exactly the threshold must not match")
	}

	res, err = usecases.CheckProximity(marienplatz, []domain.PointOfInterest{p}, d+1e-6, domain.NewVisitedSet(), domain.FirstMatch)
	if err != nil {
		t.Fatal(err)
	}
	if res.Nearby == nil {
		t.Errorf("point just inside the threshold must match")
	}
}

func TestCheckProximity_Policies(t *testing.T) {
	// Both are within 300 m of Marienplatz; Alter Peter is the closer one.
	residenz := poi("Residenz", 48.1390, 11.5770)
	alterPeter := poi("Alter Peter", 48.1364, 11.5751)
	candidates := []domain.PointOfInterest{residenz, alterPeter}

	first, err := usecases.CheckProximity(marienplatz, candidates, 0.3, domain.NewVisitedSet(), domain.FirstMatch)
	if err != nil {
		t.Fatal(err)
	}
	if first.Nearby.Name != "Residenz" {
		t.Errorf("first-match policy: expected Residenz, got %s", first.Nearby.Name)
	}

	closest, err := usecases.CheckProximity(marienplatz, candidates, 0.3, domain.NewVisitedSet(), domain.ClosestMatch)
	if err != nil {
		t.Fatal(err)
	}
	if closest.Nearby.Name != "Alter Peter" {
		t.Errorf("closest policy: expected Alter Peter, got %s", closest.Nearby.Name)
	}
}

func TestCheckProximity_InvalidInput(t *testing.T) {
	good := []domain.PointOfInterest{poi("P", 48.1, 11.5)}
	tests := []struct {
		name       string
		pos        domain.GeoPoint
		candidates []domain.PointOfInterest
		threshold  float64
	}{
		{"latitude out of range", domain.GeoPoint{Lat: 95, Lon: 11}, good, 0.3},
		{"longitude out of range", domain.GeoPoint{Lat: 48, Lon: -200}, good, 0.3},
		{"zero threshold", marienplatz, good, 0},
		{"negative threshold", marienplatz, good, -1},
		{"NaN threshold", marienplatz, good, math.NaN()},
		{"bad candidate", marienplatz, []domain.PointOfInterest{poi("Bad", 48, 500)}, 0.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := usecases.CheckProximity(tt.pos, tt.candidates, tt.threshold, domain.NewVisitedSet(), domain.FirstMatch)
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}
