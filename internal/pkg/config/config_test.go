package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/samirrijal/walkguide/internal/core/domain"
	"github.com/samirrijal/walkguide/internal/pkg/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("walkguide-test")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Discovery.ThresholdKm != 0.3 {
		t.Errorf("expected threshold 0.3, got %v", cfg.Discovery.ThresholdKm)
	}
	if cfg.City.Anchor() != (domain.GeoPoint{Lat: 48.1372, Lon: 11.5755}) {
		t.Errorf("unexpected anchor %+v", cfg.City.Anchor())
	}
	if cfg.Routing.Timeout != 2*time.Second || cfg.Routing.Profile != "foot" {
		t.Errorf("unexpected routing defaults %+v", cfg.Routing)
	}
	if cfg.Telemetry.ServiceName != "walkguide-test" {
		t.Errorf("expected service name from argument, got %q", cfg.Telemetry.ServiceName)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("WALKGUIDE_DISCOVERY_THRESHOLD_KM", "0.15")
	t.Setenv("WALKGUIDE_DISCOVERY_POLICY", "closest")
	t.Setenv("WALKGUIDE_ROUTING_TIMEOUT", "500ms")

	cfg, err := config.Load("walkguide-test")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Discovery.ThresholdKm != 0.15 {
		t.Errorf("expected 0.15, got %v", cfg.Discovery.ThresholdKm)
	}
	if cfg.Discovery.Policy != "closest" {
		t.Errorf("expected closest, got %q", cfg.Discovery.Policy)
	}
	if cfg.Routing.Timeout != 500*time.Millisecond {
		t.Errorf("expected 500ms, got %v", cfg.Routing.Timeout)
	}
}

func validConfig() config.Config {
	return config.Config{
		Server:    config.ServerConfig{Port: 8080, ReadTimeout: 10, WriteTimeout: 10},
		Catalog:   config.CatalogConfig{Source: "file", Path: "data/places-in-munich.csv"},
		City:      config.CityConfig{AnchorLat: 48.1372, AnchorLon: 11.5755},
		Discovery: config.DiscoveryConfig{ThresholdKm: 0.3, Policy: "first", StartLat: 48.1351, StartLon: 11.575},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *config.Config)
		want   string
	}{
		{"ok", func(c *config.Config) {}, ""},
		{"bad port", func(c *config.Config) { c.Server.Port = 70000 }, "server.port"},
		{"zero threshold", func(c *config.Config) { c.Discovery.ThresholdKm = 0 }, "threshold_km"},
		{"unknown policy", func(c *config.Config) { c.Discovery.Policy = "nearest" }, "discovery.policy"},
		{"anchor out of range", func(c *config.Config) { c.City.AnchorLat = 120 }, "city anchor"},
		{"unknown source", func(c *config.Config) { c.Catalog.Source = "s3" }, "catalog.source"},
		{"postgres without db", func(c *config.Config) { c.Catalog.Source = "postgres" }, "database.host"},
		{"routing without url", func(c *config.Config) {
			c.Routing = config.RoutingConfig{Enabled: true, Timeout: time.Second}
		}, "routing.base_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	cfg.Discovery.ThresholdKm = -1

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "server.port") || !strings.Contains(err.Error(), "threshold_km") {
		t.Errorf("expected both problems reported, got %v", err)
	}
}
