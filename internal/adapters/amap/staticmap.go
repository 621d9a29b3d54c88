package amap

import (
	"math"
	"strconv"

	"github.com/valyala/fasthttp"

	"github.com/samirrijal/poiguide/internal/core/domain"
)

// AMap static maps accept zoom 1-17 and at most 1024*1024 pixels.
const (
	maxStaticSide = 1024
	maxStaticZoom = 17
)

// BaseImageRef returns a static map URL that renders snap.
func (c *Client) BaseImageRef(snap domain.ViewportSnapshot) string {
	w, h := clampSize(snap.Size)
	zoom := int(math.Round(snap.Viewport.Zoom))
	if zoom < 1 {
		zoom = 1
	}
	if zoom > maxStaticZoom {
		zoom = maxStaticZoom
	}

	args := fasthttp.AcquireArgs()
	defer fasthttp.ReleaseArgs(args)
	args.Set("location", formatLocation(snap.Viewport.Center))
	args.SetUint("zoom", zoom)
	args.Set("size", strconv.Itoa(w)+"*"+strconv.Itoa(h))
	args.Set("key", c.key)
	return c.baseURL + "/v3/staticmap?" + args.String()
}

// clampSize scales s down to fit the static map limit, keeping its aspect.
func clampSize(s domain.PixelSize) (int, int) {
	w, h := s.Width, s.Height
	if w <= 0 || h <= 0 {
		return 750, 500
	}
	if w > maxStaticSide || h > maxStaticSide {
		scale := float64(maxStaticSide) / float64(max(w, h))
		w = int(float64(w) * scale)
		h = int(float64(h) * scale)
	}
	return max(w, 1), max(h, 1)
}
