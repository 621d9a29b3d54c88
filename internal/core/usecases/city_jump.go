package usecases

import (
	"context"

	"github.com/samirrijal/poiguide/internal/core/domain"
	"github.com/samirrijal/poiguide/internal/core/ports"
	"github.com/samirrijal/poiguide/internal/pkg/geospatial"
)

// DefaultCityZoom shows a whole city district.
const DefaultCityZoom = 12

// CityJump searches for a city and recenters the map on the chosen one.
// Recentering goes through the viewport model, so the usual debounced
// refresh follows.
type CityJump struct {
	places   *PlaceService
	viewport *ViewportModel
	engine   ports.MapEngine
	zoom     float64
	emit     func(domain.SessionEventType, string, string)
}

// NewCityJump creates a CityJump that jumps to zoom (DefaultCityZoom if <= 0).
func NewCityJump(places *PlaceService, viewport *ViewportModel, engine ports.MapEngine, zoom float64) *CityJump {
	if zoom <= 0 {
		zoom = DefaultCityZoom
	}
	return &CityJump{places: places, viewport: viewport, engine: engine, zoom: zoom}
}

// Search returns candidate places for keyword.
func (j *CityJump) Search(ctx context.Context, keyword string) ([]domain.Place, error) {
	return j.places.Search(ctx, keyword, 10)
}

// Select makes place the current city and moves the map there.
func (j *CityJump) Select(place domain.Place) domain.Viewport {
	v := domain.Viewport{
		Center: place.Location,
		Zoom:   j.zoom,
		Bounds: geospatial.ViewportBounds(place.Location, j.zoom, j.engine.Size()),
	}
	j.viewport.Replace(v, &place)
	j.engine.SetView(v.Center, v.Zoom)
	if j.emit != nil {
		j.emit(domain.EventCitySelected, "", place.Name)
	}
	return v
}
