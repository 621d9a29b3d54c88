package usecases

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/facebookgo/clock"

	"github.com/samirrijal/poiguide/internal/core/domain"
	"github.com/samirrijal/poiguide/internal/core/ports"
	"github.com/samirrijal/poiguide/internal/pkg/geospatial"
)

// ErrEmptyPrompt is returned when no style prompt is given or configured.
var ErrEmptyPrompt = errors.New("overlay style prompt must not be empty")

type activeOverlay struct {
	layer  domain.OverlayLayer
	handle ports.LayerHandle
}

// OverlayManager replaces the visible map with at most one generated image
// layer, anchored to the viewport captured when generation was requested.
type OverlayManager struct {
	engine        ports.MapEngine
	stylizer      ports.ImageStylizer
	base          ports.BaseMapSource
	presenter     ports.Presenter
	defaultPrompt string
	clock         clock.Clock
	log           *slog.Logger
	async         *tasks
	emit          func(domain.SessionEventType, string, string)

	seq *TokenSequence

	mu      sync.Mutex
	active  *activeOverlay
	pending int
	closed  bool
}

// NewOverlayManager creates an overlay manager. presenter may be nil.
func NewOverlayManager(
	engine ports.MapEngine,
	stylizer ports.ImageStylizer,
	base ports.BaseMapSource,
	presenter ports.Presenter,
	defaultPrompt string,
	clk clock.Clock,
	log *slog.Logger,
) *OverlayManager {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = slog.Default()
	}
	return &OverlayManager{
		engine:        engine,
		stylizer:      stylizer,
		base:          base,
		presenter:     presenter,
		defaultPrompt: defaultPrompt,
		clock:         clk,
		log:           log.With("component", "overlay"),
		async:         &tasks{},
		seq:           NewTokenSequence("overlay"),
	}
}

// Generate captures v and the container size now, then asks the stylizer for
// an image. Later map movement does not affect where the image is anchored.
func (m *OverlayManager) Generate(ctx context.Context, v domain.Viewport, stylePrompt string) error {
	prompt := strings.TrimSpace(stylePrompt)
	if prompt == "" {
		prompt = m.defaultPrompt
	}
	if prompt == "" {
		return ErrEmptyPrompt
	}

	snap := domain.ViewportSnapshot{Viewport: v, Size: m.engine.Size()}
	if snap.Viewport.Bounds.IsZero() {
		snap.Viewport.Bounds = geospatial.ViewportBounds(v.Center, v.Zoom, snap.Size)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return domain.ErrNotMounted
	}
	t := m.seq.Next()
	m.pending++
	m.mu.Unlock()

	m.async.Go(func() {
		ref := m.base.BaseImageRef(snap)
		url, err := m.stylizer.Stylize(ctx, ref, prompt)
		m.apply(t, snap, prompt, url, err)
	})
	return nil
}

func (m *OverlayManager) apply(t RequestToken, snap domain.ViewportSnapshot, prompt, url string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending--

	if m.closed {
		return
	}
	if stale := m.seq.Check(t, m.log); stale != nil {
		return
	}
	if err != nil {
		m.log.Warn("overlay generation failed", "error", err)
		m.notice("The stylized map could not be generated. The current map is unchanged.")
		return
	}

	// The previous overlay stays on screen until its replacement is placed.
	h, err := m.engine.AddImageLayer(url, snap.Viewport.Bounds)
	if err != nil {
		m.log.Warn("add image layer failed", "error", err)
		m.notice("The stylized map could not be displayed.")
		return
	}
	m.removeLocked()
	m.active = &activeOverlay{
		layer: domain.OverlayLayer{
			ID:        h.ID(),
			ImageURL:  url,
			Bounds:    snap.Viewport.Bounds,
			Prompt:    prompt,
			CreatedAt: m.clock.Now(),
		},
		handle: h,
	}
	if m.emit != nil {
		m.emit(domain.EventOverlayApplied, "", h.ID())
	}
}

// Remove clears the active overlay and discards any generation in flight.
func (m *OverlayManager) Remove() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq.Invalidate()
	m.removeLocked()
}

// Active returns the active overlay, if any.
func (m *OverlayManager) Active() (domain.OverlayLayer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return domain.OverlayLayer{}, false
	}
	return m.active.layer, true
}

// Pending returns the number of generations in flight.
func (m *OverlayManager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}

// Teardown removes the overlay and rejects later results.
func (m *OverlayManager) Teardown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.seq.Invalidate()
	m.removeLocked()
}

// Wait blocks until every generation in flight has been applied or discarded.
func (m *OverlayManager) Wait() {
	m.async.Wait()
}

func (m *OverlayManager) removeLocked() {
	if m.active != nil {
		m.active.handle.Remove()
		m.active = nil
	}
}

func (m *OverlayManager) notice(msg string) {
	if m.presenter != nil {
		m.presenter.ShowNotice(domain.Notice{Kind: domain.NoticeOverlayError, Message: msg})
	}
}
