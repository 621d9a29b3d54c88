package usecases

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"github.com/google/uuid"

	"github.com/samirrijal/poiguide/internal/core/domain"
	"github.com/samirrijal/poiguide/internal/core/ports"
	"github.com/samirrijal/poiguide/internal/pkg/metrics"
)

// ErrAlreadyMounted is returned by a second Mount.
var ErrAlreadyMounted = errors.New("explorer already mounted")

// ExplorerDeps are the collaborators of one explorer session.
type ExplorerDeps struct {
	Engine    ports.MapEngine
	Player    ports.AudioPlayer
	Presenter ports.Presenter
	POIs      *POIService
	Places    *PlaceService
	Explainer ports.ExplanationProvider
	Speech    ports.SpeechSynthesizer
	Stylizer  ports.ImageStylizer
	BaseMap   ports.BaseMapSource
	Events    ports.EventPublisher // optional
	Clock     clock.Clock          // optional, wall time by default
	Logger    *slog.Logger         // optional
}

// ExplorerConfig tunes one explorer session.
type ExplorerConfig struct {
	Debounce      time.Duration
	DefaultCenter domain.GeoPoint
	DefaultZoom   float64
	CityZoom      float64
	OverlayPrompt string
	Guide         GuideConfig
}

// Explorer wires the viewport, debounced POI refresh, markers, guide session,
// overlay and city jump of one map view. It is mounted onto a map engine once
// and unmounted when the view goes away.
type Explorer struct {
	id     string
	deps   ExplorerDeps
	cfg    ExplorerConfig
	clock  clock.Clock
	log    *slog.Logger
	events tasks
	async  tasks

	viewport   *ViewportModel
	debounce   *Debouncer
	markers    *MarkerReconciler
	guide      *GuideController
	overlay    *OverlayManager
	city       *CityJump
	refreshSeq *TokenSequence

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	releases  []func()
	mounted   bool
	unmounted bool
}

// NewExplorer builds an unmounted explorer.
func NewExplorer(deps ExplorerDeps, cfg ExplorerConfig) *Explorer {
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.DefaultZoom <= 0 {
		cfg.DefaultZoom = 15
	}

	id := uuid.NewString()
	e := &Explorer{
		id:         id,
		deps:       deps,
		cfg:        cfg,
		clock:      deps.Clock,
		log:        deps.Logger.With("session", id),
		viewport:   NewViewportModel(domain.Viewport{}),
		debounce:   NewDebouncer(deps.Clock, cfg.Debounce),
		refreshSeq: NewTokenSequence("refresh"),
		ctx:        context.Background(),
	}

	e.markers = NewMarkerReconciler(deps.Engine, func(poi domain.PointOfInterest) {
		if err := e.SelectPOI(poi); err != nil {
			e.log.Debug("marker selection ignored", "poi", poi.ID, "error", err)
		}
	}, e.log)

	e.guide = NewGuideController(deps.Explainer, deps.Speech, deps.Player, deps.Presenter, cfg.Guide, e.log)
	e.guide.emit = e.publish

	e.overlay = NewOverlayManager(deps.Engine, deps.Stylizer, deps.BaseMap, deps.Presenter, cfg.OverlayPrompt, deps.Clock, e.log)
	e.overlay.emit = e.publish

	e.city = NewCityJump(deps.Places, e.viewport, deps.Engine, cfg.CityZoom)
	e.city.emit = e.publish

	return e
}

// ID identifies the session in logs and events.
func (e *Explorer) ID() string { return e.id }

// Mount attaches the explorer to its map engine, shows initial (or the
// default view when initial has no zoom) and loads its POIs.
func (e *Explorer) Mount(ctx context.Context, initial domain.Viewport) error {
	if initial.Zoom <= 0 {
		initial.Center = e.cfg.DefaultCenter
		initial.Zoom = e.cfg.DefaultZoom
	}

	e.mu.Lock()
	if e.mounted {
		e.mu.Unlock()
		return ErrAlreadyMounted
	}
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.viewport.Replace(initial, nil)
	e.releases = append(e.releases,
		e.viewport.Subscribe(func(v domain.Viewport) {
			e.debounce.Schedule(func() { e.refresh(v) })
		}),
		e.deps.Engine.OnMoveEnd(e.viewport.Settle),
	)
	e.mounted = true
	e.mu.Unlock()

	metrics.ActiveSessions.Inc()
	e.deps.Engine.SetView(initial.Center, initial.Zoom)
	e.refresh(initial)
	e.publish(domain.EventSessionMounted, "", "")
	e.log.Info("explorer mounted", "lat", initial.Center.Lat, "lon", initial.Center.Lon, "zoom", initial.Zoom)
	return nil
}

// Unmount releases every subscription together, stops playback and clears
// the map. Responses arriving afterwards are discarded.
func (e *Explorer) Unmount() {
	e.mu.Lock()
	if !e.mounted || e.unmounted {
		e.mu.Unlock()
		return
	}
	e.unmounted = true
	releases := e.releases
	e.releases = nil
	e.mu.Unlock()

	for i := len(releases) - 1; i >= 0; i-- {
		releases[i]()
	}
	e.debounce.Cancel()
	e.refreshSeq.Invalidate()
	e.guide.Teardown()
	e.overlay.Teardown()
	e.markers.Clear()

	e.publish(domain.EventSessionUnmounted, "", "")
	e.cancel()
	metrics.ActiveSessions.Dec()
	e.log.Info("explorer unmounted")
}

func (e *Explorer) active() (context.Context, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.mounted || e.unmounted {
		return nil, domain.ErrNotMounted
	}
	return e.ctx, nil
}

func (e *Explorer) refresh(v domain.Viewport) {
	ctx, err := e.active()
	if err != nil {
		return
	}
	metrics.DebouncedRefreshes.Inc()
	r := e.refreshSeq.Next()
	e.async.Go(func() {
		pois, err := e.deps.POIs.SearchViewport(ctx, v)
		e.applyRefresh(r, pois, err)
	})
}

func (e *Explorer) applyRefresh(r RequestToken, pois []domain.PointOfInterest, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.unmounted {
		return
	}
	if stale := e.refreshSeq.Check(r, e.log); stale != nil {
		return
	}
	if err != nil {
		// Keep the current markers; the next settle retries.
		e.log.Warn("poi refresh failed", "error", err)
		return
	}
	e.markers.Apply(pois)
}

// SelectPOI opens the guide for poi.
func (e *Explorer) SelectPOI(poi domain.PointOfInterest) error {
	ctx, err := e.active()
	if err != nil {
		return err
	}
	return e.guide.Select(ctx, poi)
}

// Play starts narration of the current explanation.
func (e *Explorer) Play() error {
	ctx, err := e.active()
	if err != nil {
		return err
	}
	return e.guide.Play(ctx)
}

// CloseGuide closes the detail view and returns the guide to idle.
func (e *Explorer) CloseGuide() { e.guide.Close() }

// AcknowledgeNotice dismisses a playback error.
func (e *Explorer) AcknowledgeNotice() { e.guide.AcknowledgeNotice() }

// SetShowLabels shows or hides every POI marker.
func (e *Explorer) SetShowLabels(show bool) { e.markers.SetShowLabels(show) }

// GenerateOverlay requests a stylized overlay of the current viewport.
func (e *Explorer) GenerateOverlay(stylePrompt string) error {
	ctx, err := e.active()
	if err != nil {
		return err
	}
	return e.overlay.Generate(ctx, e.viewport.Snapshot(), stylePrompt)
}

// RemoveOverlay restores the plain map.
func (e *Explorer) RemoveOverlay() { e.overlay.Remove() }

// SearchCity returns city candidates for keyword.
func (e *Explorer) SearchCity(ctx context.Context, keyword string) ([]domain.Place, error) {
	if _, err := e.active(); err != nil {
		return nil, err
	}
	return e.city.Search(ctx, keyword)
}

// SearchCityAsync runs a city search off the caller's goroutine and hands the
// result to done. The search is bound to the mounted session, so Unmount
// cancels it and Wait covers it.
func (e *Explorer) SearchCityAsync(keyword string, done func([]domain.Place, error)) error {
	ctx, err := e.active()
	if err != nil {
		return err
	}
	e.async.Go(func() {
		places, err := e.city.Search(ctx, keyword)
		done(places, err)
	})
	return nil
}

// SelectCity recenters on place; POIs refresh after the debounce window.
func (e *Explorer) SelectCity(place domain.Place) (domain.Viewport, error) {
	if _, err := e.active(); err != nil {
		return domain.Viewport{}, err
	}
	return e.city.Select(place), nil
}

// Viewport returns the current viewport.
func (e *Explorer) Viewport() domain.Viewport { return e.viewport.Snapshot() }

// City returns the city context of the last city jump.
func (e *Explorer) City() (domain.Place, bool) { return e.viewport.City() }

// Markers returns the POIs currently on the map.
func (e *Explorer) Markers() []domain.PointOfInterest { return e.markers.Markers() }

// Guide returns the current guide session.
func (e *Explorer) Guide() domain.GuideSession { return e.guide.Session() }

// Overlay returns the active overlay, if any.
func (e *Explorer) Overlay() (domain.OverlayLayer, bool) { return e.overlay.Active() }

// Wait blocks until in-flight provider calls and event publishes finish.
func (e *Explorer) Wait() {
	e.async.Wait()
	e.guide.Wait()
	e.overlay.Wait()
	e.events.Wait()
}

func (e *Explorer) publish(typ domain.SessionEventType, poiID, detail string) {
	if e.deps.Events == nil {
		return
	}
	ev := &domain.SessionEvent{
		SessionID: e.id,
		Type:      typ,
		POIID:     poiID,
		Detail:    detail,
		At:        e.clock.Now(),
	}
	e.mu.Lock()
	ctx := context.WithoutCancel(e.ctx)
	e.mu.Unlock()
	e.events.Go(func() {
		if err := e.deps.Events.PublishSessionEvent(ctx, ev); err != nil {
			e.log.Debug("publish session event failed", "type", typ, "error", err)
		}
	})
}
