package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/samirrijal/poiguide/internal/core/domain"
	"github.com/samirrijal/poiguide/internal/pkg/metrics"
)

// OpenAIConfig configures every OpenAI-backed adapter.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	ChatModel   string
	TTSModel    string
	ImageModel  string
	ImageSize   string
	MaxTokens   int
	Temperature float32
}

// NewOpenAIClient builds a client for the OpenAI-compatible endpoint in cfg.
func NewOpenAIClient(cfg OpenAIConfig) *openai.Client {
	c := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return openai.NewClientWithConfig(c)
}

func openAIError(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return domain.NewProviderError("openai", op, apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return domain.NewProviderError("openai", op, reqErr.HTTPStatusCode, err)
	}
	return domain.NewProviderError("openai", op, 0, err)
}

// --- Explanations ---

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIExplainer implements ports.ExplanationGenerator with chat completions.
type OpenAIExplainer struct {
	client chatClient
	cfg    OpenAIConfig
}

// NewOpenAIExplainer creates an explainer on client.
func NewOpenAIExplainer(client chatClient, cfg OpenAIConfig) *OpenAIExplainer {
	return &OpenAIExplainer{client: client, cfg: cfg}
}

// Generate returns the assistant message for prompt under systemPrompt.
func (e *OpenAIExplainer) Generate(ctx context.Context, systemPrompt, prompt string) (text string, err error) {
	start := time.Now()
	defer func() { metrics.ObserveProvider("openai_chat", start, err) }()

	var msgs []openai.ChatCompletionMessage
	if systemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.cfg.ChatModel,
		Messages:    msgs,
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
	})
	if err != nil {
		return "", openAIError("chat", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// --- Speech ---

type speechClient interface {
	CreateSpeech(ctx context.Context, req openai.CreateSpeechRequest) (openai.RawResponse, error)
}

// OpenAISpeech implements ports.AudioSynthesizer with the speech endpoint.
type OpenAISpeech struct {
	client speechClient
	model  string
}

// NewOpenAISpeech creates a synthesizer using model.
func NewOpenAISpeech(client speechClient, model string) *OpenAISpeech {
	return &OpenAISpeech{client: client, model: model}
}

// Synthesize returns MP3 audio of text read by voiceID.
func (s *OpenAISpeech) Synthesize(ctx context.Context, text, voiceID string) (audio []byte, err error) {
	start := time.Now()
	defer func() { metrics.ObserveProvider("openai_speech", start, err) }()

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.model),
		Input:          text,
		Voice:          openai.SpeechVoice(voiceID),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, openAIError("speech", err)
	}
	defer resp.Close()

	audio, err = io.ReadAll(resp)
	if err != nil {
		return nil, openAIError("speech", fmt.Errorf("read audio: %w", err))
	}
	return audio, nil
}

// --- Overlay images ---

type imageClient interface {
	CreateEditImage(ctx context.Context, req openai.ImageEditRequest) (openai.ImageResponse, error)
}

// Fetcher downloads the base map image a stylization starts from.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// OpenAIStylizer implements ports.ImageStylizer with image edits: the base
// map is redrawn in the requested style.
type OpenAIStylizer struct {
	client  imageClient
	fetcher Fetcher
	model   string
	size    string
}

// NewOpenAIStylizer creates a stylizer that downloads base images with fetcher.
func NewOpenAIStylizer(client imageClient, fetcher Fetcher, model, size string) *OpenAIStylizer {
	return &OpenAIStylizer{client: client, fetcher: fetcher, model: model, size: size}
}

// Stylize returns a URL of baseImageRef redrawn per prompt.
func (s *OpenAIStylizer) Stylize(ctx context.Context, baseImageRef, prompt string) (imageURL string, err error) {
	start := time.Now()
	defer func() { metrics.ObserveProvider("openai_image", start, err) }()

	base, err := s.fetcher.Fetch(ctx, baseImageRef)
	if err != nil {
		return "", fmt.Errorf("fetch base map: %w", err)
	}

	resp, err := s.client.CreateEditImage(ctx, openai.ImageEditRequest{
		Image:          namedReader{Reader: bytes.NewReader(base), name: "basemap.png"},
		Prompt:         "Redraw this map as a " + prompt + ". Keep roads, rivers and landmarks where they are.",
		Model:          s.model,
		N:              1,
		Size:           s.size,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return "", openAIError("image edit", err)
	}
	if len(resp.Data) == 0 {
		return "", domain.NewProviderError("openai", "image edit", 0, errors.New("no image returned"))
	}
	d := resp.Data[0]
	switch {
	case d.URL != "":
		return d.URL, nil
	case d.B64JSON != "":
		return "data:image/png;base64," + d.B64JSON, nil
	}
	return "", domain.NewProviderError("openai", "image edit", 0, errors.New("empty image data"))
}

// namedReader gives the multipart upload a file name and type.
type namedReader struct {
	io.Reader
	name string
}

func (r namedReader) Name() string { return r.name }

func (r namedReader) ContentType() string { return "image/png" }
