package ports

import (
	"context"

	"github.com/samirrijal/poiguide/internal/core/domain"
)

// POIProvider finds points of interest around a center.
type POIProvider interface {
	Search(ctx context.Context, center domain.GeoPoint, radiusMeters float64, limit int) ([]domain.PointOfInterest, error)
}

// PlaceSearcher resolves a free-text keyword to city/district candidates.
type PlaceSearcher interface {
	Search(ctx context.Context, keyword string, limit int) ([]domain.Place, error)
}

// AudioStore keeps synthesized audio so the client can fetch it by id.
type AudioStore interface {
	Put(ctx context.Context, id string, audio []byte) error
	Get(ctx context.Context, id string) ([]byte, error)
}
