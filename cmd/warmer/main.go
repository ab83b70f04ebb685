package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/samirrijal/walkguide/internal/adapters/catalog"
	"github.com/samirrijal/walkguide/internal/adapters/memory"
	"github.com/samirrijal/walkguide/internal/adapters/postgres"
	"github.com/samirrijal/walkguide/internal/adapters/routing"
	"github.com/samirrijal/walkguide/internal/adapters/valkey"
	"github.com/samirrijal/walkguide/internal/core/ports"
	"github.com/samirrijal/walkguide/internal/core/usecases"
	"github.com/samirrijal/walkguide/internal/pkg/config"
	"github.com/samirrijal/walkguide/internal/pkg/logging"
	"github.com/samirrijal/walkguide/internal/workflows"
)

func main() {
	trigger := flag.Bool("trigger", false, "start one warm-up run after the worker is up")
	flag.Parse()

	cfg, err := config.Load("walkguide-warmer")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	if !cfg.Routing.Enabled {
		log.Fatal("routing.enabled must be true to warm shaped walk paths")
	}

	ctx := context.Background()

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

	// The warmed paths only help the API when they land in the shared cache.
	var cache ports.CacheService = memory.NewCache()
	if cfg.Valkey.Addr != "" {
		vk, err := valkey.New(cfg.Valkey.Addr)
		if err != nil {
			log.Fatalf("valkey: %v", err)
		}
		defer vk.Close()
		cache = vk
	} else {
		slog.Warn("valkey not configured, warmed paths stay in this process")
	}

	shaper := routing.NewOSRM(cfg.Routing.BaseURL, cfg.Routing.Profile, &http.Client{Timeout: 2 * cfg.Routing.Timeout})
	walks := usecases.NewWalkService(places, shaper, cache, usecases.WalkServiceOptions{
		Anchor:        cfg.City.Anchor(),
		ShapeTimeout:  cfg.Routing.Timeout,
		ShapeCacheTTL: cfg.Routing.CacheTTL,
	})

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.WarmWalkPathsWorkflow)
	w.RegisterActivity(&workflows.WarmActivities{Walks: walks})

	if *trigger {
		run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
			ID:        "warm-walk-paths-" + time.Now().UTC().Format("20060102T150405"),
			TaskQueue: cfg.Temporal.TaskQueue,
		}, workflows.WarmWalkPathsWorkflow, workflows.WarmWalkPathsInput{})
		if err != nil {
			log.Fatalf("start workflow: %v", err)
		}
		slog.Info("warm-up started", "workflow_id", run.GetID(), "run_id", run.GetRunID())
	}

	slog.Info("warmer worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
