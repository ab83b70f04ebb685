package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/samirrijal/walkguide/internal/core/domain"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Log       LogConfig       `mapstructure:"log"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	City      CityConfig      `mapstructure:"city"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Routing   RoutingConfig   `mapstructure:"routing"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// NATSConfig: an empty URL disables publishing.
type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Durable string `mapstructure:"durable"`
}

// ValkeyConfig: an empty Addr selects the in-memory cache and session store.
type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CatalogConfig selects where places are read from: "file" loads Path,
// "postgres" reads the places table.
type CatalogConfig struct {
	Source string `mapstructure:"source"`
	Path   string `mapstructure:"path"`
}

// CityConfig is the walk anchor. Guided walks start here.
type CityConfig struct {
	Name      string  `mapstructure:"name"`
	AnchorLat float64 `mapstructure:"anchor_lat"`
	AnchorLon float64 `mapstructure:"anchor_lon"`
}

func (c CityConfig) Anchor() domain.GeoPoint {
	return domain.GeoPoint{Lat: c.AnchorLat, Lon: c.AnchorLon}
}

type DiscoveryConfig struct {
	ThresholdKm float64       `mapstructure:"threshold_km"`
	Policy      string        `mapstructure:"policy"`
	SessionTTL  time.Duration `mapstructure:"session_ttl"`
	StartLat    float64       `mapstructure:"start_lat"`
	StartLon    float64       `mapstructure:"start_lon"`
}

func (d DiscoveryConfig) SimulationStart() domain.GeoPoint {
	return domain.GeoPoint{Lat: d.StartLat, Lon: d.StartLon}
}

type RoutingConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	BaseURL  string        `mapstructure:"base_url"`
	Profile  string        `mapstructure:"profile"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: WALKGUIDE_DISCOVERY_THRESHOLD_KM → discovery.threshold_km
	v.SetEnvPrefix("WALKGUIDE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "walkguide")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "walkguide")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.durable", "position-tracker")
	v.SetDefault("valkey.addr", "")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "walk-warmup")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("catalog.source", "file")
	v.SetDefault("catalog.path", "data/places-in-munich.csv")
	v.SetDefault("city.name", "Munich")
	v.SetDefault("city.anchor_lat", 48.1372)
	v.SetDefault("city.anchor_lon", 11.5755)
	v.SetDefault("discovery.threshold_km", 0.3)
	v.SetDefault("discovery.policy", string(domain.FirstMatch))
	v.SetDefault("discovery.session_ttl", 24*time.Hour)
	v.SetDefault("discovery.start_lat", 48.1351)
	v.SetDefault("discovery.start_lon", 11.575)
	v.SetDefault("routing.enabled", false)
	v.SetDefault("routing.base_url", "https://router.project-osrm.org")
	v.SetDefault("routing.profile", "foot")
	v.SetDefault("routing.timeout", 2*time.Second)
	v.SetDefault("routing.cache_ttl", 24*time.Hour)
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}

	switch c.Catalog.Source {
	case "file":
		if c.Catalog.Path == "" {
			errs = append(errs, "catalog.path is required when catalog.source is file")
		}
	case "postgres":
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required")
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("catalog.source must be file or postgres, got %q", c.Catalog.Source))
	}

	if err := c.City.Anchor().Validate(); err != nil {
		errs = append(errs, "city anchor: "+err.Error())
	}
	if err := c.Discovery.SimulationStart().Validate(); err != nil {
		errs = append(errs, "discovery start: "+err.Error())
	}
	if t := c.Discovery.ThresholdKm; math.IsNaN(t) || math.IsInf(t, 0) || t <= 0 {
		errs = append(errs, fmt.Sprintf("discovery.threshold_km must be positive, got %v", t))
	}
	if _, err := domain.ParseProximityPolicy(c.Discovery.Policy); err != nil {
		errs = append(errs, fmt.Sprintf("discovery.policy must be first or closest, got %q", c.Discovery.Policy))
	}
	if c.Discovery.SessionTTL < 0 {
		errs = append(errs, "discovery.session_ttl must not be negative")
	}

	if c.Routing.Enabled {
		if c.Routing.BaseURL == "" {
			errs = append(errs, "routing.base_url is required when routing is enabled")
		}
		if c.Routing.Timeout <= 0 {
			errs = append(errs, "routing.timeout must be positive")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
