package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/walkguide/internal/core/domain"
)

// PlaceRepo implements ports.PlaceRepository with pgx and PostGIS. The seq
// column records insertion order; every list query sorts on it.
type PlaceRepo struct {
	db *DB
}

// NewPlaceRepo creates a new PlaceRepo.
func NewPlaceRepo(db *DB) *PlaceRepo {
	return &PlaceRepo{db: db}
}

const placeColumns = `name, category, COALESCE(description, ''),
       ST_Y(location::geometry) AS lat,
       ST_X(location::geometry) AS lon`

func (r *PlaceRepo) List(ctx context.Context) ([]domain.PointOfInterest, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+placeColumns+` FROM places ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	return collectPlaces(rows)
}

func (r *PlaceRepo) ListByCategory(ctx context.Context, category string) ([]domain.PointOfInterest, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+placeColumns+` FROM places WHERE category = $1 ORDER BY seq`, category)
	if err != nil {
		return nil, err
	}
	return collectPlaces(rows)
}

// Categories returns categories in order of their first place.
func (r *PlaceRepo) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT category FROM places
		GROUP BY category
		ORDER BY MIN(seq)
	`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r *PlaceRepo) GetByName(ctx context.Context, name string) (*domain.PointOfInterest, error) {
	var p domain.PointOfInterest
	err := r.db.Pool.QueryRow(ctx, `SELECT `+placeColumns+` FROM places WHERE name = $1`, name).Scan(
		&p.Name, &p.Category, &p.Description, &p.Location.Lat, &p.Location.Lon,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("place %q: %w", name, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertBatch inserts or updates places by name using pgx.Batch. Updated
// places keep their original position in the order.
func (r *PlaceRepo) UpsertBatch(ctx context.Context, places []domain.PointOfInterest) error {
	if len(places) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range places {
		batch.Queue(`
			INSERT INTO places (name, category, description, location)
			VALUES ($1, $2, NULLIF($3, ''), ST_SetSRID(ST_MakePoint($4, $5), 4326)::geography)
			ON CONFLICT (name) DO UPDATE
			SET category = EXCLUDED.category,
			    description = EXCLUDED.description,
			    location = EXCLUDED.location,
			    updated_at = now()
		`, p.Name, p.Category, p.Description, p.Location.Lon, p.Location.Lat)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for _, p := range places {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert place %q: %w", p.Name, err)
		}
	}
	return nil
}

func collectPlaces(rows pgx.Rows) ([]domain.PointOfInterest, error) {
	defer rows.Close()
	var places []domain.PointOfInterest
	for rows.Next() {
		var p domain.PointOfInterest
		if err := rows.Scan(&p.Name, &p.Category, &p.Description, &p.Location.Lat, &p.Location.Lon); err != nil {
			return nil, err
		}
		places = append(places, p)
	}
	return places, rows.Err()
}
