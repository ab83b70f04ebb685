package usecases_test

import (
	"errors"
	"math"
	"reflect"
	"sort"
	"testing"

	"github.com/samirrijal/walkguide/internal/core/domain"
	"github.com/samirrijal/walkguide/internal/core/usecases"
	"github.com/samirrijal/walkguide/internal/pkg/geospatial"
)

var marienplatz = domain.GeoPoint{Lat: 48.1372, Lon: 11.5755}

func poi(name string, lat, lon float64) domain.PointOfInterest {
	return domain.PointOfInterest{Name: name, Category: "Test", Location: domain.GeoPoint{Lat: lat, Lon: lon}}
}

func names(points []domain.PointOfInterest) []string {
	out := make([]string, len(points))
	for i, p := range points {
		out[i] = p.Name
	}
	return out
}

func km(a, b domain.GeoPoint) float64 {
	return geospatial.GeodesicKm(a.Lat, a.Lon, b.Lat, b.Lon)
}

func TestSequenceStops_MarienplatzScenario(t *testing.T) {
	a := poi("A", 48.1351, 11.5762)
	b := poi("B", 48.1539, 11.5963)
	c := poi("C", 48.1550, 11.5940)

	got, err := usecases.SequenceStops([]domain.PointOfInterest{c, b, a}, marienplatz)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"A", "B", "C"}
	if !reflect.DeepEqual(names(got), want) {
		t.Fatalf("expected %v, got %v", want, names(got))
	}
}

func TestSequenceStops_EmptyInput(t *testing.T) {
	got, err := usecases.SequenceStops(nil, marienplatz)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty route, got %v", names(got))
	}
}

func TestSequenceStops_FewerThanThreeKeepsInputOrder(t *testing.T) {
	far := poi("Far", 48.20, 11.70)
	near := poi("Near", 48.1373, 11.5756)

	for _, in := range [][]domain.PointOfInterest{
		{far},
		{far, near},
	} {
		got, err := usecases.SequenceStops(in, marienplatz)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(names(got), names(in)) {
			t.Errorf("expected input order %v, got %v", names(in), names(got))
		}
	}
}

func TestSequenceStops_PermutationAndGreedySteps(t *testing.T) {
	in := []domain.PointOfInterest{
		poi("Eisbachwelle", 48.1435, 11.5877),
		poi("Monopteros", 48.1539, 11.5963),
		poi("Kleinhesseloher See", 48.1607, 11.5977),
		poi("Nymphenburger Schlosspark", 48.1582, 11.5036),
		poi("Flaucher", 48.1077, 11.5628),
		poi("Residenz München", 48.1411, 11.5780),
		poi("Alter Peter", 48.1364, 11.5751),
		poi("Asamkirche", 48.1351, 11.5695),
	}

	got, err := usecases.SequenceStops(in, marienplatz)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	gotNames, inNames := names(got), names(in)
	sort.Strings(gotNames)
	sort.Strings(inNames)
	if !reflect.DeepEqual(gotNames, inNames) {
		t.Fatalf("expected a permutation of %v, got %v", inNames, gotNames)
	}

	// The first stop is the one nearest the anchor.
	for _, p := range in {
		if km(marienplatz, p.Location) < km(marienplatz, got[0].Location) {
			t.Errorf("%s is closer to the anchor than the first stop %s", p.Name, got[0].Name)
		}
	}

	// Every later stop is the nearest of the ones still unplaced.
	for i := 1; i < len(got); i++ {
		prev := got[i-1].Location
		chosen := km(prev, got[i].Location)
		for _, rest := range got[i+1:] {
			if km(prev, rest.Location) < chosen {
				t.Errorf("step %d: %s is nearer to %s than the chosen %s", i, rest.Name, got[i-1].Name, got[i].Name)
			}
		}
	}

	if got[0].Name != "Alter Peter" {
		t.Errorf("expected walk to start at Alter Peter, got %s", got[0].Name)
	}
}

func TestSequenceStops_TieBreakIsInputOrder(t *testing.T) {
	anchor := domain.GeoPoint{Lat: 48.0, Lon: 11.0}
	east := poi("East", 48.0, 11.01)
	west := poi("West", 48.0, 10.99)
	north := poi("North", 48.1, 11.0)

	if d1, d2 := km(anchor, east.Location), km(anchor, west.Location); math.Abs(d1-d2) > 1e-9 {
		t.Fatalf("fixture is not equidistant: %f vs %f", d1, d2)
	}

	for run := 0; run < 5; run++ {
		got, err := usecases.SequenceStops([]domain.PointOfInterest{east, west, north}, anchor)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got[0].Name != "East" {
			t.Fatalf("run %d: expected East first, got %s", run, got[0].Name)
		}
	}

	got, _ := usecases.SequenceStops([]domain.PointOfInterest{west, east, north}, anchor)
	if got[0].Name != "West" {
		t.Errorf("expected West first when it comes first in input, got %s", got[0].Name)
	}
}

func TestSequenceStops_TieBreakAfterFirstStop(t *testing.T) {
	anchor := domain.GeoPoint{Lat: 48.0, Lon: 11.0}
	hub := poi("Hub", 48.0, 11.0005)
	east := poi("East", 48.0, 11.0105)
	west := poi("West", 48.0, 10.9905)
	north := poi("North", 48.05, 11.0005)

	// East and West tie from Hub, not from the anchor.
	if d1, d2 := km(hub.Location, east.Location), km(hub.Location, west.Location); math.Abs(d1-d2) > 1e-9 {
		t.Fatalf("fixture is not equidistant from Hub: %f vs %f", d1, d2)
	}
	if km(anchor, east.Location) == km(anchor, west.Location) {
		t.Fatal("fixture should not tie from the anchor")
	}

	tests := []struct {
		in   []domain.PointOfInterest
		want []string
	}{
		{[]domain.PointOfInterest{north, east, west, hub}, []string{"Hub", "East", "West", "North"}},
		{[]domain.PointOfInterest{north, west, east, hub}, []string{"Hub", "West", "East", "North"}},
		{[]domain.PointOfInterest{hub, west, north, east}, []string{"Hub", "West", "East", "North"}},
	}
	for _, tt := range tests {
		got, err := usecases.SequenceStops(tt.in, anchor)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(names(got), tt.want) {
			t.Errorf("input %v: expected %v, got %v", names(tt.in), tt.want, names(got))
		}
	}
}

func TestSequenceStops_DoesNotModifyInput(t *testing.T) {
	in := []domain.PointOfInterest{
		poi("C", 48.1550, 11.5940),
		poi("B", 48.1539, 11.5963),
		poi("A", 48.1351, 11.5762),
	}
	before := names(in)
	if _, err := usecases.SequenceStops(in, marienplatz); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(names(in), before) {
		t.Errorf("input reordered: %v", names(in))
	}
}

func TestSequenceStops_InvalidCoordinates(t *testing.T) {
	tests := []struct {
		name   string
		points []domain.PointOfInterest
		anchor domain.GeoPoint
	}{
		{"latitude out of range", []domain.PointOfInterest{poi("X", 91, 11)}, marienplatz},
		{"longitude out of range", []domain.PointOfInterest{poi("X", 48, 181)}, marienplatz},
		{"NaN latitude", []domain.PointOfInterest{poi("X", math.NaN(), 11)}, marienplatz},
		{"bad anchor", []domain.PointOfInterest{poi("X", 48, 11)}, domain.GeoPoint{Lat: -100}},
		{"empty name", []domain.PointOfInterest{poi(" ", 48, 11)}, marienplatz},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := usecases.SequenceStops(tt.points, tt.anchor)
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestRouteStats(t *testing.T) {
	if d, m := usecases.RouteStats(nil); d != 0 || m != 0 {
		t.Errorf("expected 0, 0 for no stops, got %f, %d", d, m)
	}
	if d, m := usecases.RouteStats([]domain.PointOfInterest{poi("A", 48.1, 11.5)}); d != 0 || m != 0 {
		t.Errorf("expected 0, 0 for one stop, got %f, %d", d, m)
	}

	// 0.05 degrees of latitude is about 5.56 km, a little over an hour at 5 km/h.
	stops := []domain.PointOfInterest{poi("A", 48.10, 11.5), poi("B", 48.125, 11.5), poi("C", 48.15, 11.5)}
	d, m := usecases.RouteStats(stops)
	if d < 5.5 || d > 5.6 {
		t.Errorf("expected about 5.56 km, got %f", d)
	}
	if want := int(d / 5 * 60); m != want {
		t.Errorf("expected %d minutes, got %d", want, m)
	}
}
