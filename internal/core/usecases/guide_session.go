package usecases

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/samirrijal/poiguide/internal/core/domain"
	"github.com/samirrijal/poiguide/internal/core/ports"
)

// GuideConfig tunes the guide session.
type GuideConfig struct {
	VoiceID      string
	FallbackText string
}

// GuideController runs the explanation/audio state machine for the single
// current guide session. Responses are applied only when their token is the
// latest of their class.
type GuideController struct {
	explainer ports.ExplanationProvider
	speech    ports.SpeechSynthesizer
	player    ports.AudioPlayer
	presenter ports.Presenter
	cfg       GuideConfig
	log       *slog.Logger
	async     *tasks
	emit      func(domain.SessionEventType, string, string)

	explainSeq *TokenSequence
	audioSeq   *TokenSequence

	mu       sync.Mutex
	session  domain.GuideSession
	playback ports.Playback
	pending  int
	closed   bool
}

// NewGuideController creates an idle controller. presenter may be nil.
func NewGuideController(
	explainer ports.ExplanationProvider,
	speech ports.SpeechSynthesizer,
	player ports.AudioPlayer,
	presenter ports.Presenter,
	cfg GuideConfig,
	log *slog.Logger,
) *GuideController {
	if log == nil {
		log = slog.Default()
	}
	return &GuideController{
		explainer:  explainer,
		speech:     speech,
		player:     player,
		presenter:  presenter,
		cfg:        cfg,
		log:        log.With("component", "guide"),
		async:      &tasks{},
		explainSeq: NewTokenSequence("explanation"),
		audioSeq:   NewTokenSequence("audio"),
		session:    domain.GuideSession{Status: domain.GuideIdle},
	}
}

// Select starts a new session for poi, superseding any current one.
func (c *GuideController) Select(ctx context.Context, poi domain.PointOfInterest) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrNotMounted
	}
	t := c.explainSeq.Next()
	c.audioSeq.Invalidate()
	c.stopPlaybackLocked()
	c.session = domain.GuideSession{POI: &poi, Status: domain.GuideFetchingExplanation}
	c.pending++
	c.showLocked()
	c.emitEvent(domain.EventPOISelected, poi.ID, poi.Name)
	c.mu.Unlock()

	c.async.Go(func() {
		text, err := c.explainer.Explain(ctx, poi.Name)
		c.applyExplanation(t, poi, text, err)
	})
	return nil
}

func (c *GuideController) applyExplanation(t RequestToken, poi domain.PointOfInterest, text string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending--

	if c.closed {
		return
	}
	if stale := c.explainSeq.Check(t, c.log); stale != nil {
		return
	}
	if err != nil {
		c.log.Warn("explanation failed", "poi", poi.ID, "error", err)
		c.session.Status = domain.GuideError
		c.session.ExplanationText = c.cfg.FallbackText
		c.showLocked()
		c.noticeLocked(domain.NoticeProviderError, "The explanation could not be loaded. Please try again later.")
		return
	}

	c.session.Status = domain.GuideExplanationReady
	c.session.ExplanationText = text
	c.showLocked()
	c.emitEvent(domain.EventExplanationReady, poi.ID, "")
}

// Play synthesizes and plays the current explanation. It is a no-op while
// audio is already being synthesized or played.
func (c *GuideController) Play(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return domain.ErrNotMounted
	}
	switch c.session.Status {
	case domain.GuideSynthesizingAudio, domain.GuidePlaying:
		return nil
	case domain.GuideExplanationReady:
	default:
		return domain.ErrNotReady
	}
	if c.session.PlaybackBlocked {
		return domain.ErrPlaybackBlocked
	}

	u := c.audioSeq.Next()
	c.session.Status = domain.GuideSynthesizingAudio
	c.pending++
	c.showLocked()

	text, voice := c.session.ExplanationText, c.cfg.VoiceID
	c.async.Go(func() {
		url, err := c.speech.Synthesize(ctx, text, voice)
		c.applyAudio(u, url, err)
	})
	return nil
}

func (c *GuideController) applyAudio(u RequestToken, url string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending--

	if c.closed {
		return
	}
	if stale := c.audioSeq.Check(u, c.log); stale != nil {
		return
	}
	if err != nil {
		c.log.Warn("speech synthesis failed", "error", err)
		c.session.Status = domain.GuideExplanationReady
		c.showLocked()
		if errors.Is(err, domain.ErrNoAudio) {
			c.noticeLocked(domain.NoticeNoAudio, "No audio is available for this explanation.")
		} else {
			c.noticeLocked(domain.NoticeProviderError, "Audio could not be generated. Please try again.")
		}
		return
	}

	// onEnd may fire on any goroutine, including inside Play.
	pb, perr := c.player.Play(url, func(playErr error) {
		c.async.Go(func() { c.playbackEnded(u, url, playErr) })
	})
	if perr != nil {
		c.failPlaybackLocked(url, perr)
		return
	}
	c.playback = pb
	c.session.Status = domain.GuidePlaying
	c.session.AudioURL = url
	c.showLocked()
	if c.session.POI != nil {
		c.emitEvent(domain.EventAudioStarted, c.session.POI.ID, url)
	}
}

func (c *GuideController) playbackEnded(u RequestToken, url string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || !c.audioSeq.IsLatest(u) || c.session.Status != domain.GuidePlaying {
		return
	}
	c.playback = nil
	if err != nil {
		c.failPlaybackLocked(url, err)
		return
	}
	c.session.Status = domain.GuideExplanationReady
	c.showLocked()
}

func (c *GuideController) failPlaybackLocked(url string, err error) {
	var pe *domain.PlaybackError
	if !errors.As(err, &pe) {
		pe = &domain.PlaybackError{URL: url, Reason: err.Error()}
	}
	c.log.Warn("playback failed", "error", pe)
	c.playback = nil
	c.session.Status = domain.GuideExplanationReady
	c.session.PlaybackBlocked = true
	c.showLocked()
	c.noticeLocked(domain.NoticePlaybackError, "Audio playback failed.")
}

// AcknowledgeNotice clears a playback block so Play works again.
func (c *GuideController) AcknowledgeNotice() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.session.PlaybackBlocked {
		return
	}
	c.session.PlaybackBlocked = false
	c.showLocked()
}

// Close returns to idle. In-flight requests are not cancelled; their
// responses are discarded on arrival.
func (c *GuideController) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.explainSeq.Invalidate()
	c.audioSeq.Invalidate()
	c.stopPlaybackLocked()
	c.session = domain.GuideSession{Status: domain.GuideIdle}
	c.showLocked()
}

// Teardown stops playback and rejects every later response.
func (c *GuideController) Teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.explainSeq.Invalidate()
	c.audioSeq.Invalidate()
	c.stopPlaybackLocked()
}

// Session returns a copy of the current session.
func (c *GuideController) Session() domain.GuideSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Pending returns the number of provider calls still in flight.
func (c *GuideController) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Wait blocks until every in-flight call has been applied or discarded.
func (c *GuideController) Wait() {
	c.async.Wait()
}

func (c *GuideController) snapshotLocked() domain.GuideSession {
	s := c.session
	if s.POI != nil {
		poi := *s.POI
		s.POI = &poi
	}
	return s
}

func (c *GuideController) stopPlaybackLocked() {
	if c.playback != nil {
		c.playback.Stop()
		c.playback = nil
	}
}

func (c *GuideController) showLocked() {
	if c.presenter != nil {
		c.presenter.ShowGuide(c.snapshotLocked())
	}
}

func (c *GuideController) noticeLocked(kind domain.NoticeKind, msg string) {
	if c.presenter != nil {
		c.presenter.ShowNotice(domain.Notice{Kind: kind, Message: msg})
	}
}

func (c *GuideController) emitEvent(typ domain.SessionEventType, poiID, detail string) {
	if c.emit != nil {
		c.emit(typ, poiID, detail)
	}
}
