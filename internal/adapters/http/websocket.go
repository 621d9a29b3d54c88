package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/samirrijal/poiguide/internal/core/domain"
	"github.com/samirrijal/poiguide/internal/core/ports"
	"github.com/samirrijal/poiguide/internal/core/usecases"
)

const (
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

// clientMessage is sent by the browser. Which fields are set depends on Type.
type clientMessage struct {
	Type       string           `json:"type"`
	Viewport   domain.Viewport  `json:"viewport"`
	Size       domain.PixelSize `json:"size"`
	MarkerID   string           `json:"marker_id"`
	Show       bool             `json:"show"`
	Prompt     string           `json:"prompt"`
	Keyword    string           `json:"keyword"`
	Place      domain.Place     `json:"place"`
	PlaybackID string           `json:"playback_id"`
	Error      string           `json:"error"`
}

// serverMessage drives the browser's map, audio element and panels.
type serverMessage struct {
	Type       string                  `json:"type"`
	MarkerID   string                  `json:"marker_id,omitempty"`
	POI        *domain.PointOfInterest `json:"poi,omitempty"`
	Visible    *bool                   `json:"visible,omitempty"`
	LayerID    string                  `json:"layer_id,omitempty"`
	ImageURL   string                  `json:"image_url,omitempty"`
	Bounds     *domain.Bounds          `json:"bounds,omitempty"`
	Center     *domain.GeoPoint        `json:"center,omitempty"`
	Zoom       float64                 `json:"zoom,omitempty"`
	PlaybackID string                  `json:"playback_id,omitempty"`
	URL        string                  `json:"url,omitempty"`
	Session    *domain.GuideSession    `json:"session,omitempty"`
	Notice     *domain.Notice          `json:"notice,omitempty"`
	Places     []domain.Place          `json:"places,omitempty"`
	Message    string                  `json:"message,omitempty"`
}

type pendingPlayback struct {
	url   string
	onEnd func(error)
}

// session is the server side of one explorer connection. It implements the
// map engine, audio player and presenter ports by sending commands to the
// browser and turning the browser's reports back into callbacks.
// Callbacks always run outside mu.
type session struct {
	send   func([]byte) error
	log    *slog.Logger
	ex     *usecases.Explorer
	closed atomic.Bool

	mu        sync.Mutex
	size      domain.PixelSize
	markers   map[string]func()
	moveEnd   map[int]func(domain.Viewport)
	nextSub   int
	playbacks map[string]pendingPlayback
}

var (
	_ ports.MapEngine   = (*session)(nil)
	_ ports.AudioPlayer = (*session)(nil)
	_ ports.Presenter   = (*session)(nil)
)

func newSession(deps *Dependencies, send func([]byte) error, log *slog.Logger) *session {
	s := &session{
		send:      send,
		log:       log,
		markers:   make(map[string]func()),
		moveEnd:   make(map[int]func(domain.Viewport)),
		playbacks: make(map[string]pendingPlayback),
	}

	exDeps := deps.Explorer
	exDeps.Engine = s
	exDeps.Player = s
	exDeps.Presenter = s
	if exDeps.Logger == nil {
		exDeps.Logger = log
	}
	s.ex = usecases.NewExplorer(exDeps, deps.ExplorerConfig)
	return s
}

func (s *session) write(msg serverMessage) error {
	if s.closed.Load() {
		return nil
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Type, err)
	}
	if err := s.send(data); err != nil {
		s.log.Debug("ws write failed", "type", msg.Type, "error", err)
		return err
	}
	return nil
}

func (s *session) fail(err error) {
	_ = s.write(serverMessage{Type: "error", Message: err.Error()})
}

// handle applies one client message.
func (s *session) handle(ctx context.Context, raw []byte) {
	var m clientMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		s.fail(errors.New("invalid JSON"))
		return
	}

	var err error
	switch m.Type {
	case "mount":
		s.setSize(m.Size)
		err = s.ex.Mount(ctx, m.Viewport)
	case "viewport_settled":
		s.settled(m.Viewport)
	case "resize":
		s.setSize(m.Size)
	case "marker_click":
		s.mu.Lock()
		onSelect := s.markers[m.MarkerID]
		s.mu.Unlock()
		if onSelect == nil {
			err = fmt.Errorf("unknown marker %q", m.MarkerID)
			break
		}
		onSelect()
	case "play":
		err = s.ex.Play()
	case "close_guide":
		s.ex.CloseGuide()
	case "ack_notice":
		s.ex.AcknowledgeNotice()
	case "toggle_labels":
		s.ex.SetShowLabels(m.Show)
	case "overlay_generate":
		err = s.ex.GenerateOverlay(m.Prompt)
	case "overlay_remove":
		s.ex.RemoveOverlay()
	case "city_search":
		// Searches reach the geocoder; keep the read loop free meanwhile.
		err = s.ex.SearchCityAsync(m.Keyword, func(places []domain.Place, err error) {
			if err != nil {
				s.fail(err)
				return
			}
			_ = s.write(serverMessage{Type: "city_results", Places: places})
		})
	case "city_select":
		_, err = s.ex.SelectCity(m.Place)
	case "playback_ended":
		s.finishPlayback(m.PlaybackID, "")
	case "playback_error":
		reason := m.Error
		if reason == "" {
			reason = "unknown error"
		}
		s.finishPlayback(m.PlaybackID, reason)
	default:
		err = fmt.Errorf("unknown message type %q", m.Type)
	}

	if err != nil {
		s.fail(err)
	}
}

func (s *session) setSize(size domain.PixelSize) {
	s.mu.Lock()
	s.size = size
	s.mu.Unlock()
}

func (s *session) settled(v domain.Viewport) {
	s.mu.Lock()
	subs := make([]func(domain.Viewport), 0, len(s.moveEnd))
	for _, fn := range s.moveEnd {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(v)
	}
}

// finishPlayback reports the end of a playback; a non-empty reason is a failure.
// Reports for stopped or unknown playbacks are ignored.
func (s *session) finishPlayback(id, reason string) {
	s.mu.Lock()
	pb, ok := s.playbacks[id]
	delete(s.playbacks, id)
	s.mu.Unlock()
	if !ok {
		return
	}

	if reason == "" {
		pb.onEnd(nil)
		return
	}
	pb.onEnd(&domain.PlaybackError{URL: pb.url, Reason: reason})
}

// close unmounts the explorer and waits for its in-flight work to settle.
func (s *session) close() {
	s.closed.Store(true)
	s.ex.Unmount()
	s.ex.Wait()
}

func (s *session) subscriptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.moveEnd)
}

// --- ports.MapEngine ---

type wsMarker struct {
	s  *session
	id string
}

func (m *wsMarker) ID() string { return m.id }

func (m *wsMarker) SetVisible(visible bool) {
	_ = m.s.write(serverMessage{Type: "marker_visibility", MarkerID: m.id, Visible: &visible})
}

func (m *wsMarker) Remove() {
	m.s.mu.Lock()
	delete(m.s.markers, m.id)
	m.s.mu.Unlock()
	_ = m.s.write(serverMessage{Type: "marker_remove", MarkerID: m.id})
}

func (s *session) AddMarker(poi domain.PointOfInterest, visible bool, onSelect func()) (ports.MarkerHandle, error) {
	id := uuid.NewString()
	s.mu.Lock()
	s.markers[id] = onSelect
	s.mu.Unlock()

	if err := s.write(serverMessage{Type: "marker_add", MarkerID: id, POI: &poi, Visible: &visible}); err != nil {
		s.mu.Lock()
		delete(s.markers, id)
		s.mu.Unlock()
		return nil, err
	}
	return &wsMarker{s: s, id: id}, nil
}

type wsLayer struct {
	s  *session
	id string
}

func (l *wsLayer) ID() string { return l.id }

func (l *wsLayer) Remove() {
	_ = l.s.write(serverMessage{Type: "layer_remove", LayerID: l.id})
}

func (s *session) AddImageLayer(imageURL string, bounds domain.Bounds) (ports.LayerHandle, error) {
	id := uuid.NewString()
	if err := s.write(serverMessage{Type: "layer_add", LayerID: id, ImageURL: imageURL, Bounds: &bounds}); err != nil {
		return nil, err
	}
	return &wsLayer{s: s, id: id}, nil
}

func (s *session) SetView(center domain.GeoPoint, zoom float64) {
	_ = s.write(serverMessage{Type: "set_view", Center: &center, Zoom: zoom})
}

func (s *session) Size() domain.PixelSize {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

func (s *session) OnMoveEnd(fn func(domain.Viewport)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.moveEnd[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.moveEnd, id)
		s.mu.Unlock()
	}
}

// --- ports.AudioPlayer ---

type wsPlayback struct {
	s  *session
	id string
}

func (p *wsPlayback) Stop() {
	p.s.mu.Lock()
	_, playing := p.s.playbacks[p.id]
	delete(p.s.playbacks, p.id)
	p.s.mu.Unlock()
	if playing {
		_ = p.s.write(serverMessage{Type: "audio_stop", PlaybackID: p.id})
	}
}

func (s *session) Play(url string, onEnd func(error)) (ports.Playback, error) {
	id := uuid.NewString()
	s.mu.Lock()
	s.playbacks[id] = pendingPlayback{url: url, onEnd: onEnd}
	s.mu.Unlock()

	if err := s.write(serverMessage{Type: "audio_play", PlaybackID: id, URL: url}); err != nil {
		s.mu.Lock()
		delete(s.playbacks, id)
		s.mu.Unlock()
		return nil, err
	}
	return &wsPlayback{s: s, id: id}, nil
}

// --- ports.Presenter ---

func (s *session) ShowGuide(g domain.GuideSession) {
	_ = s.write(serverMessage{Type: "guide", Session: &g})
}

func (s *session) ShowNotice(n domain.Notice) {
	_ = s.write(serverMessage{Type: "notice", Notice: &n})
}

// WebSocketHandler serves one explorer session per connection. The explorer
// is unmounted when the connection closes.
func WebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		log := slog.Default().With("remote", c.RemoteAddr().String())

		var writeMu sync.Mutex
		send := func(data []byte) error {
			writeMu.Lock()
			defer writeMu.Unlock()
			_ = c.SetWriteDeadline(time.Now().Add(writeWait))
			return c.WriteMessage(websocket.TextMessage, data)
		}

		s := newSession(deps, send, log)
		log = log.With("session", s.ex.ID())
		log.Info("ws client connected")

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Keep-alive ping
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(pingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					writeMu.Lock()
					_ = c.SetWriteDeadline(time.Now().Add(writeWait))
					err := c.WriteMessage(websocket.PingMessage, nil)
					writeMu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}
			s.handle(ctx, msg)
		}

		close(done)
		s.close()
		log.Info("ws client disconnected")
	}
}
