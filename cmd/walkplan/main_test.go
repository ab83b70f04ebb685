package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/samirrijal/walkguide/internal/adapters/memory"
	"github.com/samirrijal/walkguide/internal/core/domain"
	"github.com/samirrijal/walkguide/internal/core/usecases"
)

func TestGuidedCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--catalog", "../../data/places-in-munich.csv", "guided", "--category", "Art"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	lines := strings.Split(out.String(), "\n")
	if !strings.HasPrefix(lines[0], "Art walk, 5 stops") {
		t.Errorf("unexpected header %q", lines[0])
	}
	if !strings.Contains(lines[1], "Street Art Museum (MUCA)") {
		t.Errorf("expected MUCA first, got %q", lines[1])
	}
	if !strings.Contains(out.String(), "Estimated Time:") {
		t.Error("expected route summary")
	}
}

func TestReplay(t *testing.T) {
	catalogPath = "../../data/places-in-munich.csv"
	walks, err := openWalks()
	if err != nil {
		t.Fatal(err)
	}
	discovery, err := usecases.NewDiscoveryService(walks, memory.NewSessionStore(0), nil, usecases.DiscoveryOptions{
		ThresholdKm:     0.3,
		SimulationStart: domain.GeoPoint{Lat: 48.1351, Lon: 11.575},
	})
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := replay(context.Background(), &out, discovery, "", 1); err != nil {
		t.Fatal(err)
	}
	got := out.String()
	if !strings.Contains(got, "step   0") || !strings.Contains(got, "discovered Alter Peter") {
		t.Errorf("expected discovery at step 0, got:\n%s", got)
	}
	if !strings.Contains(got, "near Alter Peter again") {
		t.Errorf("expected revisit at step 1, got:\n%s", got)
	}
	if !strings.Contains(got, "visited 1: Alter Peter") {
		t.Errorf("unexpected summary:\n%s", got)
	}
}
