package usecases

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/poiguide/internal/core/domain"
	"github.com/samirrijal/poiguide/internal/core/ports"
)

// DefaultSegmentRunes is the longest text sent in one synthesis call.
const DefaultSegmentRunes = 300

const segmentConcurrency = 3

// NarrationService turns guide text into a stored audio file and returns the
// URL the client plays it from.
type NarrationService struct {
	synth    ports.AudioSynthesizer
	store    ports.AudioStore
	baseURL  string
	maxRunes int
	log      *slog.Logger
}

// NewNarrationService creates a NarrationService serving audio under baseURL.
func NewNarrationService(synth ports.AudioSynthesizer, store ports.AudioStore, baseURL string, maxRunes int, log *slog.Logger) *NarrationService {
	if maxRunes <= 0 {
		maxRunes = DefaultSegmentRunes
	}
	if log == nil {
		log = slog.Default()
	}
	return &NarrationService{
		synth:    synth,
		store:    store,
		baseURL:  strings.TrimRight(baseURL, "/"),
		maxRunes: maxRunes,
		log:      log.With("component", "narration"),
	}
}

// Synthesize converts text to audio, segment by segment, and stores the
// concatenated result.
func (s *NarrationService) Synthesize(ctx context.Context, text, voiceID string) (string, error) {
	segments := SplitNarration(text, s.maxRunes)
	if len(segments) == 0 {
		return "", domain.ErrNoAudio
	}

	parts := make([][]byte, len(segments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(segmentConcurrency)
	for i, seg := range segments {
		g.Go(func() error {
			audio, err := s.synth.Synthesize(gctx, seg, voiceID)
			if err != nil {
				return fmt.Errorf("synthesize segment %d/%d: %w", i+1, len(segments), err)
			}
			parts[i] = audio
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	audio := bytes.Join(parts, nil)
	if len(audio) == 0 {
		return "", domain.ErrNoAudio
	}

	id := uuid.NewString()
	if err := s.store.Put(ctx, id, audio); err != nil {
		return "", fmt.Errorf("store audio: %w", err)
	}
	s.log.Debug("narration stored", "id", id, "segments", len(segments), "bytes", len(audio))
	return s.baseURL + "/v1/audio/" + id, nil
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '\n', '。', '！', '？', '.', '!', '?':
		return true
	}
	return false
}

// SplitNarration splits text at sentence ends into segments of at most
// maxRunes runes. Sentences longer than maxRunes are cut hard.
func SplitNarration(text string, maxRunes int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if maxRunes <= 0 {
		maxRunes = DefaultSegmentRunes
	}

	var sentences [][]rune
	var cur []rune
	for _, r := range text {
		cur = append(cur, r)
		if isSentenceEnd(r) {
			sentences = append(sentences, cur)
			cur = nil
		}
	}
	if len(cur) > 0 {
		sentences = append(sentences, cur)
	}

	var out []string
	var seg []rune
	flush := func() {
		if s := strings.TrimSpace(string(seg)); s != "" {
			out = append(out, s)
		}
		seg = nil
	}
	for _, sent := range sentences {
		if len(seg)+len(sent) <= maxRunes {
			seg = append(seg, sent...)
			continue
		}
		flush()
		for len(sent) > maxRunes {
			seg = sent[:maxRunes]
			flush()
			sent = sent[maxRunes:]
		}
		seg = append(seg, sent...)
	}
	flush()
	return out
}
