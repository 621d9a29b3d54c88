package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/poiguide/internal/core/domain"
)

// POIRepo implements ports.POIProvider on a PostGIS pois table.
type POIRepo struct {
	db *DB
}

// NewPOIRepo creates a new POIRepo.
func NewPOIRepo(db *DB) *POIRepo {
	return &POIRepo{db: db}
}

// Search returns POIs within radiusMeters of center, nearest first.
func (r *POIRepo) Search(ctx context.Context, center domain.GeoPoint, radiusMeters float64, limit int) ([]domain.PointOfInterest, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, name,
		       ST_Y(location::geometry) AS lat,
		       ST_X(location::geometry) AS lon,
		       COALESCE(category, ''), COALESCE(address, ''),
		       ST_Distance(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography) AS distance
		FROM pois
		WHERE ST_DWithin(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
		ORDER BY distance
		LIMIT $4
	`, center.Lon, center.Lat, radiusMeters, limit)
	if err != nil {
		return nil, domain.NewProviderError("postgis", "pois nearby", 0, err)
	}
	defer rows.Close()

	var pois []domain.PointOfInterest
	for rows.Next() {
		var p domain.PointOfInterest
		var dist float64
		if err := rows.Scan(
			&p.ID, &p.Name,
			&p.Location.Lat, &p.Location.Lon,
			&p.Category, &p.Address,
			&dist,
		); err != nil {
			return nil, fmt.Errorf("scan poi: %w", err)
		}
		p.Distance = &dist
		pois = append(pois, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewProviderError("postgis", "pois nearby", 0, err)
	}
	return pois, nil
}

// UpsertBatch inserts or refreshes many POIs using pgx.Batch.
func (r *POIRepo) UpsertBatch(ctx context.Context, pois []domain.PointOfInterest) error {
	if len(pois) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range pois {
		batch.Queue(`
			INSERT INTO pois (id, name, category, address, location)
			VALUES ($1, $2, $3, $4, ST_SetSRID(ST_MakePoint($5, $6), 4326)::geography)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, category = EXCLUDED.category,
			    address = EXCLUDED.address, location = EXCLUDED.location,
			    updated_at = NOW()
		`, p.ID, p.Name, p.Category, p.Address, p.Location.Lon, p.Location.Lat)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range pois {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}
