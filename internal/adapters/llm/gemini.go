// Package llm adapts hosted model APIs to the explanation, speech and
// overlay ports.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/samirrijal/poiguide/internal/core/domain"
	"github.com/samirrijal/poiguide/internal/pkg/metrics"
)

// contentGenerator is the part of *genai.Models the explainer uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiExplainer implements ports.ExplanationGenerator with Gemini.
type GeminiExplainer struct {
	models      contentGenerator
	model       string
	maxTokens   int32
	temperature float32
}

// NewGeminiExplainer connects to the Gemini API.
func NewGeminiExplainer(ctx context.Context, apiKey, model string, maxTokens int, temperature float32) (*GeminiExplainer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return newGeminiExplainer(client.Models, model, maxTokens, temperature), nil
}

func newGeminiExplainer(models contentGenerator, model string, maxTokens int, temperature float32) *GeminiExplainer {
	return &GeminiExplainer{
		models:      models,
		model:       model,
		maxTokens:   int32(maxTokens),
		temperature: temperature,
	}
}

// Generate returns the model's text for prompt under systemPrompt.
func (g *GeminiExplainer) Generate(ctx context.Context, systemPrompt, prompt string) (text string, err error) {
	start := time.Now()
	defer func() { metrics.ObserveProvider("gemini", start, err) }()

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.temperature),
		MaxOutputTokens: g.maxTokens,
	}
	if systemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}}
	}

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", domain.NewProviderError("gemini", "generate", apiErr.Code, err)
		}
		return "", domain.NewProviderError("gemini", "generate", 0, err)
	}
	return responseText(resp), nil
}

// responseText joins the non-thought text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
	return sb.String()
}
