package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/samirrijal/walkguide/internal/adapters/catalog"
	natsadapter "github.com/samirrijal/walkguide/internal/adapters/nats"
	"github.com/samirrijal/walkguide/internal/adapters/postgres"
	"github.com/samirrijal/walkguide/internal/adapters/valkey"
	"github.com/samirrijal/walkguide/internal/core/domain"
	"github.com/samirrijal/walkguide/internal/core/ports"
	"github.com/samirrijal/walkguide/internal/core/usecases"
	"github.com/samirrijal/walkguide/internal/pkg/config"
	"github.com/samirrijal/walkguide/internal/pkg/logging"
	"github.com/samirrijal/walkguide/internal/pkg/telemetry"
)

// tracker consumes queued walker positions and runs the proximity check
// for each. Sessions live in valkey so the API sees the same visited sets.
func main() {
	cfg, err := config.Load("walkguide-tracker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	if cfg.NATS.URL == "" {
		log.Fatal("nats.url is required for the tracker")
	}
	if cfg.Valkey.Addr == "" {
		log.Fatal("valkey.addr is required for the tracker")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	var places ports.PlaceRepository
	if cfg.Catalog.Source == "postgres" {
		db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
		if err != nil {
			log.Fatalf("db: %v", err)
		}
		defer db.Close()
		places = postgres.NewPlaceRepo(db)
	} else {
		store, err := catalog.Open(cfg.Catalog.Path)
		if err != nil {
			log.Fatalf("catalog: %v", err)
		}
		places = store
	}

	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		log.Fatalf("valkey: %v", err)
	}
	defer cache.Close()

	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats publisher: %v", err)
	}
	defer pub.Close()

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL, cfg.NATS.Durable)
	if err != nil {
		log.Fatalf("nats subscriber: %v", err)
	}
	defer sub.Close()

	walks := usecases.NewWalkService(places, nil, cache, usecases.WalkServiceOptions{Anchor: cfg.City.Anchor()})
	discovery, err := usecases.NewDiscoveryService(walks, cache.Sessions(cfg.Discovery.SessionTTL), pub, usecases.DiscoveryOptions{
		ThresholdKm:     cfg.Discovery.ThresholdKm,
		Policy:          domain.ProximityPolicy(cfg.Discovery.Policy),
		SimulationStart: cfg.Discovery.SimulationStart(),
	})
	if err != nil {
		log.Fatalf("discovery: %v", err)
	}

	err = sub.SubscribePositions(ctx, func(ctx context.Context, u *domain.PositionUpdate) error {
		res, err := discovery.UpdatePosition(ctx, u.SessionID, u.Position)
		if err != nil {
			return err
		}
		slog.Debug("position processed", "session", u.SessionID, "state", res.State.String())
		return nil
	})
	if err != nil {
		log.Fatalf("subscribe positions: %v", err)
	}

	slog.Info("position tracker started", "durable", cfg.NATS.Durable, "threshold_km", cfg.Discovery.ThresholdKm)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("received signal, shutting down tracker", "signal", sig.String())
}
