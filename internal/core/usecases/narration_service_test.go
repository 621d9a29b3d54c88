package usecases_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/poiguide/internal/core/domain"
	"github.com/samirrijal/poiguide/internal/core/usecases"
)

func TestSplitNarration(t *testing.T) {
	tests := []struct {
		name string
		text string
		max  int
		want []string
	}{
		{"empty", "   ", 10, nil},
		{"short", "Hello there.", 300, []string{"Hello there."}},
		{"packs sentences", "One. Two. Three.", 10, []string{"One. Two.", "Three."}},
		{"cjk punctuation", "故宫很大。值得一看！", 6, []string{"故宫很大。", "值得一看！"}},
		{"hard split", "abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"newline ends sentence", "Line one\nLine two", 9, []string{"Line one", "Line two"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, usecases.SplitNarration(tt.text, tt.max))
		})
	}
}

func TestSplitNarration_RespectsLimit(t *testing.T) {
	text := strings.Repeat("The palace has nine thousand rooms. ", 40) + strings.Repeat("x", 700)
	for _, seg := range usecases.SplitNarration(text, 300) {
		assert.LessOrEqual(t, utf8.RuneCountInString(seg), 300)
	}
}

func TestNarration_StoresConcatenatedAudio(t *testing.T) {
	synth := &mockAudioSynth{}
	store := &memAudioStore{}
	svc := usecases.NewNarrationService(synth, store, "http://localhost:8080/", 10, nil)

	url, err := svc.Synthesize(context.Background(), "One. Two. Three.", "alloy")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "http://localhost:8080/v1/audio/"), url)

	id := strings.TrimPrefix(url, "http://localhost:8080/v1/audio/")
	audio, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	// Segments are joined in order regardless of completion order.
	assert.Equal(t, "One. Two.Three.", string(audio))
	assert.Len(t, synth.texts, 2)
}

func TestNarration_NoAudio(t *testing.T) {
	synth := &mockAudioSynth{synthFn: func(ctx context.Context, text, voice string) ([]byte, error) {
		return nil, nil
	}}
	svc := usecases.NewNarrationService(synth, &memAudioStore{}, "http://x", 0, nil)

	_, err := svc.Synthesize(context.Background(), "Hello.", "alloy")
	assert.ErrorIs(t, err, domain.ErrNoAudio)

	_, err = svc.Synthesize(context.Background(), "  ", "alloy")
	assert.ErrorIs(t, err, domain.ErrNoAudio)
}

func TestNarration_SegmentFailure(t *testing.T) {
	synth := &mockAudioSynth{synthFn: func(ctx context.Context, text, voice string) ([]byte, error) {
		if strings.HasPrefix(text, "Two") {
			return nil, domain.NewProviderError("openai", "speech", 429, nil)
		}
		return []byte(text), nil
	}}
	svc := usecases.NewNarrationService(synth, &memAudioStore{}, "http://x", 5, nil)

	_, err := svc.Synthesize(context.Background(), "One. Two. Three.", "alloy")
	var perr *domain.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 429, perr.StatusCode)
}

func TestNarration_StoreFailure(t *testing.T) {
	store := &memAudioStore{putFn: func(id string, audio []byte) error { return errors.New("valkey down") }}
	svc := usecases.NewNarrationService(&mockAudioSynth{}, store, "http://x", 0, nil)

	_, err := svc.Synthesize(context.Background(), "Hello.", "alloy")
	assert.ErrorContains(t, err, "store audio")
}

func TestExplanationService_CachesAndTrims(t *testing.T) {
	gen := &mockGenerator{generateFn: func(ctx context.Context, system, prompt string) (string, error) {
		assert.Contains(t, prompt, "Forbidden City")
		return "  The palace of emperors.  ", nil
	}}
	svc := usecases.NewExplanationService(gen, newMemCache(), 0, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		text, err := svc.Explain(ctx, "Forbidden City")
		require.NoError(t, err)
		assert.Equal(t, "The palace of emperors.", text)
	}
	assert.Equal(t, 1, gen.calls)
}

func TestExplanationService_SharesConcurrentCalls(t *testing.T) {
	release := make(chan struct{})
	gen := &mockGenerator{generateFn: func(ctx context.Context, system, prompt string) (string, error) {
		<-release
		return "shared", nil
	}}
	svc := usecases.NewExplanationService(gen, nil, 0, nil)

	var wg sync.WaitGroup
	results := make([]string, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = svc.Explain(context.Background(), "Temple X")
		}(i)
	}
	assert.Eventually(t, func() bool {
		gen.mu.Lock()
		defer gen.mu.Unlock()
		return gen.calls == 1
	}, timeoutShort, tick)
	close(release)
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, "shared", r)
	}
	gen.mu.Lock()
	defer gen.mu.Unlock()
	assert.LessOrEqual(t, gen.calls, 5)
}

func TestExplanationService_CallerCancelDoesNotFailOthers(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	gen := &mockGenerator{generateFn: func(ctx context.Context, system, prompt string) (string, error) {
		once.Do(func() { close(started) })
		<-release
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "text", nil
	}}
	svc := usecases.NewExplanationService(gen, nil, 0, nil)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Explain(firstCtx, "Temple X")
		firstErr <- err
	}()
	<-started

	type result struct {
		text string
		err  error
	}
	second := make(chan result, 1)
	go func() {
		text, err := svc.Explain(context.Background(), "Temple X")
		second <- result{text, err}
	}()

	cancelFirst()
	select {
	case err := <-firstErr:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(timeoutShort):
		require.FailNow(t, "cancelled caller did not return")
	}

	// Give the second caller time to join the in-flight generation.
	time.Sleep(20 * tick)
	close(release)

	select {
	case r := <-second:
		require.NoError(t, r.err)
		assert.Equal(t, "text", r.text)
	case <-time.After(timeoutShort):
		require.FailNow(t, "second caller did not return")
	}
	gen.mu.Lock()
	defer gen.mu.Unlock()
	assert.Equal(t, 1, gen.calls)
}

func TestExplanationService_Errors(t *testing.T) {
	svc := usecases.NewExplanationService(&mockGenerator{generateFn: func(ctx context.Context, system, prompt string) (string, error) {
		return " ", nil
	}}, nil, 0, nil)

	_, err := svc.Explain(context.Background(), "")
	assert.Error(t, err)
	_, err = svc.Explain(context.Background(), "Temple X")
	assert.ErrorContains(t, err, "empty explanation")
}
