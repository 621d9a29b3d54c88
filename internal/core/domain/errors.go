package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrStaleResponse marks a response whose request token was superseded.
	ErrStaleResponse = errors.New("stale response")
	// ErrNoAudio means synthesis succeeded but produced no audio.
	ErrNoAudio = errors.New("no audio available")
	// ErrEmptyKeyword is returned by place search for a blank keyword.
	ErrEmptyKeyword = errors.New("search keyword must not be empty")
	// ErrNotMounted is returned by explorer operations before Mount or after Unmount.
	ErrNotMounted = errors.New("explorer not mounted")
	// ErrNotFound is returned by stores for missing keys.
	ErrNotFound = errors.New("not found")
	// ErrPlaybackBlocked is returned by Play until a playback error is acknowledged.
	ErrPlaybackBlocked = errors.New("playback blocked until notice is acknowledged")
	// ErrNotReady is returned by Play when no explanation is ready.
	ErrNotReady = errors.New("no explanation ready")
)

// ProviderError wraps a failed call to an external provider.
type ProviderError struct {
	Provider   string
	Op         string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Provider, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError builds a ProviderError. A nil err yields a generic message.
func NewProviderError(provider, op string, status int, err error) *ProviderError {
	if err == nil {
		err = errors.New("unexpected response")
	}
	return &ProviderError{Provider: provider, Op: op, StatusCode: status, Err: err}
}

// PlaybackError reports an audio element failure on the client.
type PlaybackError struct {
	URL    string
	Reason string
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("playback of %s failed: %s", e.URL, e.Reason)
}
