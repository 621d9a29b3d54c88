package domain

import (
	"time"
)

// PointOfInterest is a nearby attraction returned by a POI provider.
type PointOfInterest struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Location GeoPoint `json:"location"`
	Category string   `json:"category,omitempty"`
	Address  string   `json:"address,omitempty"`
	Distance *float64 `json:"distance,omitempty"` // computed field
}

// Place is a city or district candidate from a place search.
type Place struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Location GeoPoint `json:"location"`
	Region   string   `json:"region,omitempty"`
}

// GuideStatus is the state of the guided-content session.
type GuideStatus string

const (
	GuideIdle                GuideStatus = "idle"
	GuideFetchingExplanation GuideStatus = "fetching_explanation"
	GuideExplanationReady    GuideStatus = "explanation_ready"
	GuideSynthesizingAudio   GuideStatus = "synthesizing_audio"
	GuidePlaying             GuideStatus = "playing"
	GuideError               GuideStatus = "error"
)

// GuideSession is the single current explanation/audio session.
type GuideSession struct {
	POI             *PointOfInterest `json:"poi,omitempty"`
	ExplanationText string           `json:"explanation_text,omitempty"`
	AudioURL        string           `json:"audio_url,omitempty"`
	Status          GuideStatus      `json:"status"`
	PlaybackBlocked bool             `json:"playback_blocked,omitempty"`
}

// OverlayLayer is a generated stylized image anchored to frozen bounds.
type OverlayLayer struct {
	ID        string    `json:"id"`
	ImageURL  string    `json:"image_url"`
	Bounds    Bounds    `json:"bounds"`
	Prompt    string    `json:"prompt"`
	CreatedAt time.Time `json:"created_at"`
}

// NoticeKind classifies a user-visible notice.
type NoticeKind string

const (
	NoticeProviderError NoticeKind = "provider_error"
	NoticePlaybackError NoticeKind = "playback_error"
	NoticeNoAudio       NoticeKind = "no_audio"
	NoticeOverlayError  NoticeKind = "overlay_error"
)

// Notice is a non-blocking message shown to the user.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
}

// SessionEventType names an explorer session event.
type SessionEventType string

const (
	EventSessionMounted   SessionEventType = "mounted"
	EventSessionUnmounted SessionEventType = "unmounted"
	EventPOISelected      SessionEventType = "poi_selected"
	EventExplanationReady SessionEventType = "explanation_ready"
	EventAudioStarted     SessionEventType = "audio_started"
	EventOverlayApplied   SessionEventType = "overlay_applied"
	EventCitySelected     SessionEventType = "city_selected"
)

// SessionEvent is published to the message broker for analytics.
type SessionEvent struct {
	SessionID string           `json:"session_id"`
	Type      SessionEventType `json:"type"`
	POIID     string           `json:"poi_id,omitempty"`
	Detail    string           `json:"detail,omitempty"`
	At        time.Time        `json:"at"`
}
