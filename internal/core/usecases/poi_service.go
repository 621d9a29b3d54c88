package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/poiguide/internal/core/domain"
	"github.com/samirrijal/poiguide/internal/core/ports"
	"github.com/samirrijal/poiguide/internal/pkg/geospatial"
	"github.com/samirrijal/poiguide/internal/pkg/metrics"
	"github.com/samirrijal/poiguide/internal/pkg/telemetry"
)

// RadiusPolicy derives the POI search radius from the zoom level:
// radius = max(Min, Factor/zoom), capped at Max.
type RadiusPolicy struct {
	Factor float64
	Min    float64
	Max    float64
}

// DefaultRadiusPolicy yields 1000 m at zoom 15.
var DefaultRadiusPolicy = RadiusPolicy{Factor: 15000, Min: 200, Max: 50000}

// RadiusForZoom returns the search radius in meters for zoom.
func (p RadiusPolicy) RadiusForZoom(zoom float64) float64 {
	if zoom <= 0 {
		return p.Max
	}
	r := math.Max(p.Min, p.Factor/zoom)
	if p.Max > 0 {
		r = math.Min(r, p.Max)
	}
	return r
}

// POIService fetches nearby points of interest with read-through caching.
type POIService struct {
	provider ports.POIProvider
	cache    ports.CacheService
	policy   RadiusPolicy
	limit    int
	cacheTTL int
	log      *slog.Logger
}

// NewPOIService creates a new POIService.
func NewPOIService(provider ports.POIProvider, cache ports.CacheService, policy RadiusPolicy, limit int, log *slog.Logger) *POIService {
	if limit <= 0 {
		limit = 25
	}
	if log == nil {
		log = slog.Default()
	}
	return &POIService{
		provider: provider,
		cache:    cache,
		policy:   policy,
		limit:    limit,
		cacheTTL: 300,
		log:      log.With("component", "poi_service"),
	}
}

// SetCacheTTL overrides how long search results stay cached.
func (s *POIService) SetCacheTTL(seconds int) {
	if seconds > 0 {
		s.cacheTTL = seconds
	}
}

// RadiusForZoom applies the service's radius policy.
func (s *POIService) RadiusForZoom(zoom float64) float64 {
	return s.policy.RadiusForZoom(zoom)
}

// SearchViewport searches around the viewport center using the zoom-derived radius.
func (s *POIService) SearchViewport(ctx context.Context, v domain.Viewport) ([]domain.PointOfInterest, error) {
	return s.Search(ctx, v.Center, s.RadiusForZoom(v.Zoom))
}

// Search returns POIs within radiusMeters of center, nearest first.
func (s *POIService) Search(ctx context.Context, center domain.GeoPoint, radiusMeters float64) (pois []domain.PointOfInterest, err error) {
	ctx, span := telemetry.StartSpan(ctx, "POIService", "Search",
		attribute.Float64("lat", center.Lat),
		attribute.Float64("lon", center.Lon),
		attribute.Float64("radius", radiusMeters))
	defer func() { telemetry.EndSpan(span, err) }()

	cacheKey := fmt.Sprintf("pois:nearby:%.4f:%.4f:%.0f:%d", center.Lat, center.Lon, radiusMeters, s.limit)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var cached []domain.PointOfInterest
			if err := json.Unmarshal(data, &cached); err == nil {
				metrics.CacheLookup("pois_nearby", true)
				return cached, nil
			}
		}
		metrics.CacheLookup("pois_nearby", false)
	}

	found, err := s.provider.Search(ctx, center, radiusMeters, s.limit)
	if err != nil {
		return nil, fmt.Errorf("search pois: %w", err)
	}
	pois = normalizePOIs(center, found, s.limit)

	// POIs around a point rarely change; 5 minutes by default.
	if s.cache != nil {
		if data, err := json.Marshal(pois); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, s.cacheTTL)
		}
	}

	s.log.Debug("pois fetched", "count", len(pois), "radius", radiusMeters)
	return pois, nil
}

// normalizePOIs drops duplicate and unnamed entries, fills distances and
// sorts nearest first.
func normalizePOIs(center domain.GeoPoint, in []domain.PointOfInterest, limit int) []domain.PointOfInterest {
	seen := make(map[string]struct{}, len(in))
	out := make([]domain.PointOfInterest, 0, len(in))
	for _, p := range in {
		if p.ID == "" || p.Name == "" {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		if p.Distance == nil {
			d := geospatial.Haversine(center.Lat, center.Lon, p.Location.Lat, p.Location.Lon)
			p.Distance = &d
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return *out[i].Distance < *out[j].Distance })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
