package domain

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// Contains reports whether p lies inside the box, edges included.
func (b Bounds) Contains(p GeoPoint) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat &&
		p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// IsZero reports whether the box was never set.
func (b Bounds) IsZero() bool {
	return b == Bounds{}
}

// PixelSize is the on-screen size of the map container.
type PixelSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Viewport is the visible map region as reported by the map engine.
type Viewport struct {
	Center GeoPoint `json:"center"`
	Zoom   float64  `json:"zoom"`
	Bounds Bounds   `json:"bounds"`
}

// ViewportSnapshot freezes a viewport together with the container size.
// Overlay generation anchors its image to a snapshot, not to the live map.
type ViewportSnapshot struct {
	Viewport Viewport  `json:"viewport"`
	Size     PixelSize `json:"size"`
}
