package usecases

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/samirrijal/poiguide/internal/core/domain"
	"github.com/samirrijal/poiguide/internal/pkg/metrics"
)

// RequestToken identifies one issued request within its class.
type RequestToken uint64

// TokenSequence issues monotonically increasing tokens for one request class.
// A response is applied only if its token is still the latest issued.
type TokenSequence struct {
	class  string
	latest atomic.Uint64
}

// NewTokenSequence creates a sequence labelled class in logs and metrics.
func NewTokenSequence(class string) *TokenSequence {
	return &TokenSequence{class: class}
}

// Next issues a new token, superseding every earlier one.
func (s *TokenSequence) Next() RequestToken {
	return RequestToken(s.latest.Add(1))
}

// Invalidate supersedes all outstanding tokens without issuing a request.
func (s *TokenSequence) Invalidate() {
	s.latest.Add(1)
}

// IsLatest reports whether t is the most recently issued token.
func (s *TokenSequence) IsLatest(t RequestToken) bool {
	return uint64(t) == s.latest.Load()
}

// Check returns domain.ErrStaleResponse if t was superseded and records the
// discard.
func (s *TokenSequence) Check(t RequestToken, log *slog.Logger) error {
	if s.IsLatest(t) {
		return nil
	}
	metrics.StaleResponses.WithLabelValues(s.class).Inc()
	if log != nil {
		log.Debug("stale response discarded",
			"class", s.class,
			"token", uint64(t),
			"latest", s.latest.Load())
	}
	return domain.ErrStaleResponse
}

// tasks tracks in-flight provider calls so callers can wait for them.
type tasks struct {
	wg sync.WaitGroup
}

func (t *tasks) Go(fn func()) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		fn()
	}()
}

func (t *tasks) Wait() {
	t.wg.Wait()
}
