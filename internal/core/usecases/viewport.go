package usecases

import (
	"sync"

	"github.com/samirrijal/poiguide/internal/core/domain"
)

// ViewportModel holds the current viewport and notifies subscribers each
// time it settles. Subscribers run in mutation order and must not mutate the
// model from inside the callback.
type ViewportModel struct {
	emitMu sync.Mutex

	mu      sync.Mutex
	current domain.Viewport
	city    *domain.Place
	subs    map[uint64]func(domain.Viewport)
	nextSub uint64
}

// NewViewportModel creates a model starting at initial.
func NewViewportModel(initial domain.Viewport) *ViewportModel {
	return &ViewportModel{
		current: initial,
		subs:    make(map[uint64]func(domain.Viewport)),
	}
}

// Snapshot returns a copy of the current viewport.
func (m *ViewportModel) Snapshot() domain.Viewport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// City returns the city context set by the last city jump.
func (m *ViewportModel) City() (domain.Place, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.city == nil {
		return domain.Place{}, false
	}
	return *m.city, true
}

// SetCenter moves the center, keeping zoom and bounds.
func (m *ViewportModel) SetCenter(center domain.GeoPoint) {
	m.update(func(v *domain.Viewport) { v.Center = center })
}

// SetZoom changes the zoom, keeping center and bounds.
func (m *ViewportModel) SetZoom(zoom float64) {
	m.update(func(v *domain.Viewport) { v.Zoom = zoom })
}

// Settle records the viewport the map engine reported at end of movement.
func (m *ViewportModel) Settle(v domain.Viewport) {
	m.update(func(cur *domain.Viewport) { *cur = v })
}

// Replace swaps the whole viewport and city context, as a city jump does.
func (m *ViewportModel) Replace(v domain.Viewport, city *domain.Place) {
	m.update(func(cur *domain.Viewport) {
		*cur = v
		if city != nil {
			c := *city
			m.city = &c
		}
	})
}

// Subscribe registers fn for settled events and returns its release func.
func (m *ViewportModel) Subscribe(fn func(domain.Viewport)) (cancel func()) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}

func (m *ViewportModel) update(mutate func(*domain.Viewport)) {
	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	m.mu.Lock()
	mutate(&m.current)
	v := m.current
	subs := make([]func(domain.Viewport), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(v)
	}
}
