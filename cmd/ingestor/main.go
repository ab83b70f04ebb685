package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/samirrijal/walkguide/internal/adapters/catalog"
	"github.com/samirrijal/walkguide/internal/adapters/overpass"
	"github.com/samirrijal/walkguide/internal/adapters/postgres"
	"github.com/samirrijal/walkguide/internal/core/domain"
	"github.com/samirrijal/walkguide/internal/pkg/config"
	"github.com/samirrijal/walkguide/internal/pkg/geospatial"
	"github.com/samirrijal/walkguide/internal/pkg/logging"
)

func main() {
	fromOverpass := flag.Bool("overpass", false, "fetch places from OSM Overpass instead of a file")
	overpassURL := flag.String("overpass-url", overpass.DefaultURL, "Overpass interpreter endpoint")
	radius := flag.Float64("radius", 0, "fetch within this many meters of the city anchor instead of the default box")
	out := flag.String("out", "", "write the places to this CSV file instead of Postgres")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: ingestor [flags] [places.csv|places.yaml]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load("walkguide-ingestor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	var places []domain.PointOfInterest
	if *fromOverpass {
		bounds := overpass.MunichBounds
		if *radius > 0 {
			anchor := cfg.City.Anchor()
			minLat, minLon, maxLat, maxLon := geospatial.BoundingBox(anchor.Lat, anchor.Lon, *radius)
			bounds = domain.Bounds{MinLat: minLat, MinLon: minLon, MaxLat: maxLat, MaxLon: maxLon}
		}
		client := &overpass.Client{BaseURL: *overpassURL}
		places, err = client.FetchPlaces(ctx, bounds)
		if err != nil {
			log.Fatalf("overpass: %v", err)
		}
		slog.Info("fetched places from overpass", "count", len(places))
	} else {
		path := cfg.Catalog.Path
		if flag.NArg() > 0 {
			path = flag.Arg(0)
		}
		places, err = catalog.LoadFile(path)
		if err != nil {
			log.Fatalf("load %s: %v", path, err)
		}
		slog.Info("loaded places", "path", path, "count", len(places))
	}

	if *out != "" {
		if err := writeCSV(*out, places); err != nil {
			log.Fatalf("write %s: %v", *out, err)
		}
		log.Printf("wrote %d places to %s", len(places), *out)
		return
	}

	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	if err := postgres.NewPlaceRepo(db).UpsertBatch(ctx, places); err != nil {
		log.Fatalf("upsert places: %v", err)
	}
	log.Printf("upserted %d places", len(places))
}

func writeCSV(path string, places []domain.PointOfInterest) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := catalog.WriteCSV(f, places); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
