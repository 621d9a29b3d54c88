package usecases_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samirrijal/poiguide/internal/core/domain"
	"github.com/samirrijal/poiguide/internal/core/ports"
)

// --- Map engine ---

type fakeMarker struct {
	eng      *fakeEngine
	id       string
	poi      domain.PointOfInterest
	visible  bool
	onSelect func()
}

func (m *fakeMarker) ID() string { return m.id }

func (m *fakeMarker) SetVisible(v bool) {
	m.eng.mu.Lock()
	defer m.eng.mu.Unlock()
	m.visible = v
}

func (m *fakeMarker) Remove() {
	m.eng.mu.Lock()
	defer m.eng.mu.Unlock()
	delete(m.eng.markers, m.id)
	m.eng.removedMarkers++
}

type fakeLayer struct {
	eng    *fakeEngine
	id     string
	url    string
	bounds domain.Bounds
}

func (l *fakeLayer) ID() string { return l.id }

func (l *fakeLayer) Remove() {
	l.eng.mu.Lock()
	defer l.eng.mu.Unlock()
	delete(l.eng.layers, l.id)
}

type fakeEngine struct {
	mu             sync.Mutex
	seq            int
	markers        map[string]*fakeMarker
	layers         map[string]*fakeLayer
	moveEnd        map[int]func(domain.Viewport)
	views          []domain.Viewport
	size           domain.PixelSize
	addLayerErr    error
	removedMarkers int
}

var _ ports.MapEngine = (*fakeEngine)(nil)

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		markers: make(map[string]*fakeMarker),
		layers:  make(map[string]*fakeLayer),
		moveEnd: make(map[int]func(domain.Viewport)),
		size:    domain.PixelSize{Width: 800, Height: 600},
	}
}

func (e *fakeEngine) AddMarker(poi domain.PointOfInterest, visible bool, onSelect func()) (ports.MarkerHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq++
	m := &fakeMarker{eng: e, id: fmt.Sprintf("m%d", e.seq), poi: poi, visible: visible, onSelect: onSelect}
	e.markers[m.id] = m
	return m, nil
}

func (e *fakeEngine) AddImageLayer(url string, bounds domain.Bounds) (ports.LayerHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.addLayerErr != nil {
		return nil, e.addLayerErr
	}
	e.seq++
	l := &fakeLayer{eng: e, id: fmt.Sprintf("l%d", e.seq), url: url, bounds: bounds}
	e.layers[l.id] = l
	return l, nil
}

func (e *fakeEngine) SetView(center domain.GeoPoint, zoom float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.views = append(e.views, domain.Viewport{Center: center, Zoom: zoom})
}

func (e *fakeEngine) Size() domain.PixelSize {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.size
}

func (e *fakeEngine) OnMoveEnd(fn func(domain.Viewport)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq++
	id := e.seq
	e.moveEnd[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.moveEnd, id)
	}
}

// move simulates the user finishing a pan/zoom.
func (e *fakeEngine) move(v domain.Viewport) {
	e.mu.Lock()
	fns := make([]func(domain.Viewport), 0, len(e.moveEnd))
	for _, fn := range e.moveEnd {
		fns = append(fns, fn)
	}
	e.mu.Unlock()
	for _, fn := range fns {
		fn(v)
	}
}

func (e *fakeEngine) subscriberCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.moveEnd)
}

func (e *fakeEngine) markerNames() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.markers))
	for _, m := range e.markers {
		names = append(names, m.poi.Name)
	}
	sort.Strings(names)
	return names
}

func (e *fakeEngine) markerIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.markers))
	for id := range e.markers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (e *fakeEngine) visibleCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, m := range e.markers {
		if m.visible {
			n++
		}
	}
	return n
}

func (e *fakeEngine) click(name string) {
	e.mu.Lock()
	var fn func()
	for _, m := range e.markers {
		if m.poi.Name == name {
			fn = m.onSelect
		}
	}
	e.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (e *fakeEngine) layerURLs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	urls := make([]string, 0, len(e.layers))
	for _, l := range e.layers {
		urls = append(urls, l.url)
	}
	sort.Strings(urls)
	return urls
}

// --- Audio player ---

type fakePlayback struct {
	mu      sync.Mutex
	url     string
	onEnd   func(error)
	stopped bool
}

func (p *fakePlayback) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
}

func (p *fakePlayback) isStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

type fakePlayer struct {
	mu    sync.Mutex
	plays []*fakePlayback
	err   error
}

func (p *fakePlayer) Play(url string, onEnd func(error)) (ports.Playback, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	pb := &fakePlayback{url: url, onEnd: onEnd}
	p.plays = append(p.plays, pb)
	return pb, nil
}

func (p *fakePlayer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.plays)
}

func (p *fakePlayer) last() *fakePlayback {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.plays) == 0 {
		return nil
	}
	return p.plays[len(p.plays)-1]
}

// --- Presenter ---

type fakePresenter struct {
	mu      sync.Mutex
	guides  []domain.GuideSession
	notices []domain.Notice
}

func (p *fakePresenter) ShowGuide(s domain.GuideSession) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.guides = append(p.guides, s)
}

func (p *fakePresenter) ShowNotice(n domain.Notice) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notices = append(p.notices, n)
}

func (p *fakePresenter) noticeKinds() []domain.NoticeKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	kinds := make([]domain.NoticeKind, len(p.notices))
	for i, n := range p.notices {
		kinds[i] = n.Kind
	}
	return kinds
}

// --- Providers ---

type mockPOIProvider struct {
	mu       sync.Mutex
	calls    []domain.GeoPoint
	radii    []float64
	searchFn func(ctx context.Context, center domain.GeoPoint, radius float64, limit int) ([]domain.PointOfInterest, error)
}

func (m *mockPOIProvider) Search(ctx context.Context, center domain.GeoPoint, radius float64, limit int) ([]domain.PointOfInterest, error) {
	m.mu.Lock()
	m.calls = append(m.calls, center)
	m.radii = append(m.radii, radius)
	m.mu.Unlock()
	if m.searchFn != nil {
		return m.searchFn(ctx, center, radius, limit)
	}
	return nil, nil
}

func (m *mockPOIProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *mockPOIProvider) lastCall() domain.GeoPoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[len(m.calls)-1]
}

type mockPlaceSearcher struct {
	searchFn func(ctx context.Context, keyword string, limit int) ([]domain.Place, error)
}

func (m *mockPlaceSearcher) Search(ctx context.Context, keyword string, limit int) ([]domain.Place, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, keyword, limit)
	}
	return nil, nil
}

type mockExplainer struct {
	explainFn func(ctx context.Context, poiName string) (string, error)
}

func (m *mockExplainer) Explain(ctx context.Context, poiName string) (string, error) {
	if m.explainFn != nil {
		return m.explainFn(ctx, poiName)
	}
	return "About " + poiName, nil
}

type mockSpeech struct {
	mu      sync.Mutex
	calls   int
	synthFn func(ctx context.Context, text, voiceID string) (string, error)
}

func (m *mockSpeech) Synthesize(ctx context.Context, text, voiceID string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.synthFn != nil {
		return m.synthFn(ctx, text, voiceID)
	}
	return "http://audio/1", nil
}

func (m *mockSpeech) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockStylizer struct {
	stylizeFn func(ctx context.Context, baseImageRef, prompt string) (string, error)
}

func (m *mockStylizer) Stylize(ctx context.Context, baseImageRef, prompt string) (string, error) {
	if m.stylizeFn != nil {
		return m.stylizeFn(ctx, baseImageRef, prompt)
	}
	return "http://img/" + prompt, nil
}

type fakeBaseMap struct{}

func (fakeBaseMap) BaseImageRef(s domain.ViewportSnapshot) string {
	return fmt.Sprintf("base:%.4f,%.4f@%.0f/%dx%d",
		s.Viewport.Center.Lat, s.Viewport.Center.Lon, s.Viewport.Zoom, s.Size.Width, s.Size.Height)
}

type mockGenerator struct {
	mu         sync.Mutex
	calls      int
	generateFn func(ctx context.Context, systemPrompt, prompt string) (string, error)
}

func (m *mockGenerator) Generate(ctx context.Context, systemPrompt, prompt string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.generateFn != nil {
		return m.generateFn(ctx, systemPrompt, prompt)
	}
	return "generated", nil
}

type mockAudioSynth struct {
	mu      sync.Mutex
	texts   []string
	synthFn func(ctx context.Context, text, voiceID string) ([]byte, error)
}

func (m *mockAudioSynth) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	m.mu.Lock()
	m.texts = append(m.texts, text)
	m.mu.Unlock()
	if m.synthFn != nil {
		return m.synthFn(ctx, text, voiceID)
	}
	return []byte(text), nil
}

type memAudioStore struct {
	mu    sync.Mutex
	data  map[string][]byte
	putFn func(id string, audio []byte) error
}

func (s *memAudioStore) Put(ctx context.Context, id string, audio []byte) error {
	if s.putFn != nil {
		if err := s.putFn(id, audio); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		s.data = make(map[string][]byte)
	}
	s.data[id] = audio
	return nil
}

func (s *memAudioStore) Get(ctx context.Context, id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.data[id]; ok {
		return b, nil
	}
	return nil, domain.ErrNotFound
}

// --- Cache ---

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (c *memCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.data[key]; ok {
		return b, nil
	}
	return nil, domain.ErrNotFound
}

func (c *memCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.sets++
	return nil
}

func (c *memCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// --- Event publisher ---

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.SessionEvent
}

func (p *recordingPublisher) PublishSessionEvent(ctx context.Context, ev *domain.SessionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *ev)
	return nil
}

func (p *recordingPublisher) types() []domain.SessionEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.SessionEventType, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

// --- Fixtures ---

const (
	timeoutShort = time.Second
	tick         = time.Millisecond
)

func poi(id, name string, lat, lon float64) domain.PointOfInterest {
	return domain.PointOfInterest{ID: id, Name: name, Location: domain.GeoPoint{Lat: lat, Lon: lon}}
}

var (
	forbiddenCity = poi("p1", "Forbidden City", 39.9163, 116.3972)
	templeX       = poi("p2", "Temple X", 39.8822, 116.4066)
	templeY       = poi("p3", "Temple Y", 39.9470, 116.4173)
)
