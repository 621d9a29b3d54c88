package usecases

import (
	"log/slog"
	"sync"

	"github.com/samirrijal/poiguide/internal/core/domain"
	"github.com/samirrijal/poiguide/internal/core/ports"
	"github.com/samirrijal/poiguide/internal/pkg/metrics"
)

type placedMarker struct {
	poi    domain.PointOfInterest
	handle ports.MarkerHandle
}

// MarkerReconciler keeps the engine's markers equal to the latest POI result.
// Every Apply removes all markers and recreates them.
type MarkerReconciler struct {
	engine   ports.MapEngine
	onSelect func(domain.PointOfInterest)
	log      *slog.Logger

	mu         sync.Mutex
	markers    []placedMarker
	showLabels bool
}

// NewMarkerReconciler creates a reconciler whose markers call onSelect when clicked.
func NewMarkerReconciler(engine ports.MapEngine, onSelect func(domain.PointOfInterest), log *slog.Logger) *MarkerReconciler {
	if log == nil {
		log = slog.Default()
	}
	return &MarkerReconciler{
		engine:     engine,
		onSelect:   onSelect,
		log:        log.With("component", "markers"),
		showLabels: true,
	}
}

// Apply replaces every displayed marker with one marker per POI.
func (r *MarkerReconciler) Apply(pois []domain.PointOfInterest) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeAllLocked()

	placed := make([]placedMarker, 0, len(pois))
	for _, poi := range pois {
		poi := poi
		h, err := r.engine.AddMarker(poi, r.showLabels, func() {
			if r.onSelect != nil {
				r.onSelect(poi)
			}
		})
		if err != nil {
			r.log.Warn("add marker failed", "poi", poi.ID, "error", err)
			continue
		}
		placed = append(placed, placedMarker{poi: poi, handle: h})
	}
	r.markers = placed
	metrics.MarkersApplied.Observe(float64(len(placed)))
}

// SetShowLabels toggles visibility of every current marker without
// recreating them. Later markers honour the flag.
func (r *MarkerReconciler) SetShowLabels(show bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.showLabels = show
	for _, m := range r.markers {
		m.handle.SetVisible(show)
	}
}

// ShowLabels reports the current visibility flag.
func (r *MarkerReconciler) ShowLabels() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.showLabels
}

// Markers returns the POIs currently on the map.
func (r *MarkerReconciler) Markers() []domain.PointOfInterest {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.PointOfInterest, len(r.markers))
	for i, m := range r.markers {
		out[i] = m.poi
	}
	return out
}

// Clear removes every marker.
func (r *MarkerReconciler) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeAllLocked()
}

func (r *MarkerReconciler) removeAllLocked() {
	for _, m := range r.markers {
		m.handle.Remove()
	}
	r.markers = nil
}
