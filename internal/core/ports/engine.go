package ports

import (
	"github.com/samirrijal/poiguide/internal/core/domain"
)

// MarkerHandle is a marker placed on the map engine.
type MarkerHandle interface {
	ID() string
	SetVisible(visible bool)
	Remove()
}

// LayerHandle is an image layer placed on the map engine.
type LayerHandle interface {
	ID() string
	Remove()
}

// MapEngine is the map rendering capability a session is mounted on.
// Callbacks may be invoked from any goroutine.
type MapEngine interface {
	AddMarker(poi domain.PointOfInterest, visible bool, onSelect func()) (MarkerHandle, error)
	AddImageLayer(imageURL string, bounds domain.Bounds) (LayerHandle, error)
	SetView(center domain.GeoPoint, zoom float64)
	Size() domain.PixelSize
	// OnMoveEnd registers fn for end-of-movement events and returns its release func.
	OnMoveEnd(fn func(domain.Viewport)) (cancel func())
}

// Playback is a started audio playback.
type Playback interface {
	Stop()
}

// AudioPlayer plays audio URLs. onEnd receives nil on completion or the
// playback error; it is called at most once and never after Stop.
type AudioPlayer interface {
	Play(url string, onEnd func(error)) (Playback, error)
}

// Presenter renders session state to the user.
type Presenter interface {
	ShowGuide(session domain.GuideSession)
	ShowNotice(notice domain.Notice)
}
