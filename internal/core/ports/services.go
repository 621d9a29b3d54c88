package ports

import (
	"context"

	"github.com/samirrijal/poiguide/internal/core/domain"
)

// ExplanationGenerator is a raw text-generation backend (an LLM).
type ExplanationGenerator interface {
	Generate(ctx context.Context, systemPrompt, prompt string) (string, error)
}

// ExplanationProvider returns guide text for a named POI.
type ExplanationProvider interface {
	Explain(ctx context.Context, poiName string) (string, error)
}

// AudioSynthesizer turns text into encoded audio bytes.
type AudioSynthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
}

// SpeechSynthesizer turns text into a playable audio URL.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) (string, error)
}

// ImageStylizer generates a stylized image from a base map image reference.
type ImageStylizer interface {
	Stylize(ctx context.Context, baseImageRef, prompt string) (string, error)
}

// BaseMapSource renders a frozen viewport into a base image reference.
type BaseMapSource interface {
	BaseImageRef(snap domain.ViewportSnapshot) string
}

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishSessionEvent(ctx context.Context, event *domain.SessionEvent) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
