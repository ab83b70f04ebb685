package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/walkguide/internal/adapters/catalog"
	handler "github.com/samirrijal/walkguide/internal/adapters/http"
	"github.com/samirrijal/walkguide/internal/adapters/memory"
	natsadapter "github.com/samirrijal/walkguide/internal/adapters/nats"
	"github.com/samirrijal/walkguide/internal/adapters/postgres"
	"github.com/samirrijal/walkguide/internal/adapters/routing"
	"github.com/samirrijal/walkguide/internal/adapters/valkey"
	"github.com/samirrijal/walkguide/internal/core/domain"
	"github.com/samirrijal/walkguide/internal/core/ports"
	"github.com/samirrijal/walkguide/internal/core/usecases"
	"github.com/samirrijal/walkguide/internal/pkg/config"
	"github.com/samirrijal/walkguide/internal/pkg/logging"
	"github.com/samirrijal/walkguide/internal/pkg/metrics"
	"github.com/samirrijal/walkguide/internal/pkg/telemetry"
)

var version = "dev"

func main() {
	cfg, err := config.Load("walkguide-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Place catalog
	var (
		places ports.PlaceRepository
		db     *postgres.DB
	)
	switch cfg.Catalog.Source {
	case "postgres":
		db, err = postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		places = postgres.NewPlaceRepo(db)
		go reportPoolStats(ctx, db)
	default:
		store, err := catalog.Open(cfg.Catalog.Path)
		if err != nil {
			log.Fatalf("catalog: %v", err)
		}
		places = store
	}

	// Cache and sessions
	var (
		cache    ports.CacheService
		sessions ports.SessionStore
		vk       *valkey.Cache
	)
	if cfg.Valkey.Addr != "" {
		vk, err = valkey.New(cfg.Valkey.Addr)
		if err != nil {
			slog.Warn("valkey unavailable, using in-memory cache and sessions", "error", err)
		} else {
			defer vk.Close()
			cache = vk
			sessions = vk.Sessions(cfg.Discovery.SessionTTL)
		}
	}
	if cache == nil {
		cache = memory.NewCache()
		sessions = memory.NewSessionStore(cfg.Discovery.SessionTTL)
	}

	// NATS
	var (
		publisher ports.EventPublisher
		pub       *natsadapter.Publisher
	)
	if cfg.NATS.URL != "" {
		pub, err = natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable", "error", err)
		} else {
			defer pub.Close()
			publisher = pub
		}
	}

	// Path shaping
	var shaper ports.PathShaper
	if cfg.Routing.Enabled {
		shaper = routing.NewOSRM(cfg.Routing.BaseURL, cfg.Routing.Profile, &http.Client{Timeout: 2 * cfg.Routing.Timeout})
		slog.Info("path shaping enabled", "base_url", cfg.Routing.BaseURL, "profile", cfg.Routing.Profile)
	}

	// Use cases
	walks := usecases.NewWalkService(places, shaper, cache, usecases.WalkServiceOptions{
		Anchor:        cfg.City.Anchor(),
		ShapeTimeout:  cfg.Routing.Timeout,
		ShapeCacheTTL: cfg.Routing.CacheTTL,
	})
	discovery, err := usecases.NewDiscoveryService(walks, sessions, publisher, usecases.DiscoveryOptions{
		ThresholdKm:     cfg.Discovery.ThresholdKm,
		Policy:          domain.ProximityPolicy(cfg.Discovery.Policy),
		SimulationStart: cfg.Discovery.SimulationStart(),
	})
	if err != nil {
		log.Fatalf("discovery: %v", err)
	}

	deps := &handler.Dependencies{
		Walks:     walks,
		Discovery: discovery,
		Positions: publisher,
		DB:        db,
		Cache:     vk,
		Version:   version,
	}
	if pub != nil {
		deps.NATS = pub.Conn()
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    64 * 1024,
		AppName:      "Walkguide API",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	handler.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "city", cfg.City.Name, "catalog", cfg.Catalog.Source)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

// reportPoolStats publishes pgx pool gauges until ctx is done.
func reportPoolStats(ctx context.Context, db *postgres.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.UpdateDBPoolMetrics(db.Stat())
		}
	}
}
