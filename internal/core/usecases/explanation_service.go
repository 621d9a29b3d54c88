package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/samirrijal/poiguide/internal/core/ports"
	"github.com/samirrijal/poiguide/internal/pkg/metrics"
	"github.com/samirrijal/poiguide/internal/pkg/telemetry"
)

const guideSystemPrompt = `You are a warm, patient tour guide speaking to older travellers.
Explain the attraction you are given: what it is, its history, what is worth seeing,
and one practical tip for visiting at a relaxed pace.
Write plain spoken prose in short sentences, no lists or markdown, under 300 words.
Reply in the language of the attraction's name.`

// generateTimeout bounds a shared generator call, which no longer follows
// any single caller's context.
const generateTimeout = 90 * time.Second

// ExplanationService produces guide text for a POI. Concurrent requests for
// the same POI share one generator call and results are cached.
type ExplanationService struct {
	generator ports.ExplanationGenerator
	cache     ports.CacheService
	cacheTTL  int
	group     singleflight.Group
	log       *slog.Logger
}

// NewExplanationService creates a new ExplanationService.
func NewExplanationService(generator ports.ExplanationGenerator, cache ports.CacheService, cacheTTL int, log *slog.Logger) *ExplanationService {
	if cacheTTL <= 0 {
		cacheTTL = 86400
	}
	if log == nil {
		log = slog.Default()
	}
	return &ExplanationService{
		generator: generator,
		cache:     cache,
		cacheTTL:  cacheTTL,
		log:       log.With("component", "explanation"),
	}
}

// Explain returns guide text for the named POI.
func (s *ExplanationService) Explain(ctx context.Context, poiName string) (text string, err error) {
	name := strings.TrimSpace(poiName)
	if name == "" {
		return "", fmt.Errorf("poi name must not be empty")
	}

	ctx, span := telemetry.StartSpan(ctx, "ExplanationService", "Explain", attribute.String("poi", name))
	defer func() { telemetry.EndSpan(span, err) }()

	cacheKey := "explain:" + strings.ToLower(name)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil && len(data) > 0 {
			metrics.CacheLookup("explain", true)
			return string(data), nil
		}
		metrics.CacheLookup("explain", false)
	}

	ch := s.group.DoChan(cacheKey, func() (any, error) {
		// Callers that joined this call must not fail because the first one left.
		gctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), generateTimeout)
		defer cancel()

		prompt := fmt.Sprintf("Attraction: %s\nPlease introduce it as a tour guide.", name)
		out, err := s.generator.Generate(gctx, guideSystemPrompt, prompt)
		if err != nil {
			return "", err
		}
		out = strings.TrimSpace(out)
		if out == "" {
			return "", fmt.Errorf("empty explanation for %q", name)
		}
		if s.cache != nil {
			_ = s.cache.Set(gctx, cacheKey, []byte(out), s.cacheTTL)
		}
		return out, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("explain %q: %w", name, ctx.Err())
	case res = <-ch:
	}
	if res.Err != nil {
		return "", fmt.Errorf("explain %q: %w", name, res.Err)
	}
	if res.Shared {
		s.log.Debug("explanation shared with concurrent request", "poi", name)
	}
	return res.Val.(string), nil
}
