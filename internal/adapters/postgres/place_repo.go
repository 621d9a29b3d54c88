package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/poiguide/internal/core/domain"
)

// PlaceRepo implements ports.PlaceSearcher with pg_trgm similarity on city names.
type PlaceRepo struct {
	db *DB
}

// NewPlaceRepo creates a new PlaceRepo.
func NewPlaceRepo(db *DB) *PlaceRepo {
	return &PlaceRepo{db: db}
}

// Search returns places whose name contains or resembles keyword.
func (r *PlaceRepo) Search(ctx context.Context, keyword string, limit int) ([]domain.Place, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, name, COALESCE(region, ''),
		       ST_Y(location::geometry) AS lat,
		       ST_X(location::geometry) AS lon
		FROM places
		WHERE name ILIKE '%' || $1 || '%' OR name % $1
		ORDER BY similarity(name, $1) DESC, name
		LIMIT $2
	`, keyword, limit)
	if err != nil {
		return nil, domain.NewProviderError("postgis", "places search", 0, err)
	}
	defer rows.Close()

	var places []domain.Place
	for rows.Next() {
		var p domain.Place
		if err := rows.Scan(&p.ID, &p.Name, &p.Region, &p.Location.Lat, &p.Location.Lon); err != nil {
			return nil, fmt.Errorf("scan place: %w", err)
		}
		places = append(places, p)
	}
	return places, rows.Err()
}

// UpsertBatch inserts or refreshes many places.
func (r *PlaceRepo) UpsertBatch(ctx context.Context, places []domain.Place) error {
	if len(places) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range places {
		batch.Queue(`
			INSERT INTO places (id, name, region, location)
			VALUES ($1, $2, $3, ST_SetSRID(ST_MakePoint($4, $5), 4326)::geography)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, region = EXCLUDED.region, location = EXCLUDED.location
		`, p.ID, p.Name, p.Region, p.Location.Lon, p.Location.Lat)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range places {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}
