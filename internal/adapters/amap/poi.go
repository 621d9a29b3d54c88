package amap

import (
	"context"
	"strconv"

	"github.com/valyala/fasthttp"

	"github.com/samirrijal/poiguide/internal/core/domain"
)

// AMap caps place/around at 50 km and 25 results per page.
const (
	maxAroundRadius = 50000
	maxPageSize     = 25
)

type aroundResponse struct {
	envelope
	POIs []struct {
		ID       text `json:"id"`
		Name     text `json:"name"`
		Type     text `json:"type"`
		Address  text `json:"address"`
		Location text `json:"location"`
		Distance text `json:"distance"`
	} `json:"pois"`
}

// Search returns POIs around center via /v3/place/around.
func (c *Client) Search(ctx context.Context, center domain.GeoPoint, radiusMeters float64, limit int) ([]domain.PointOfInterest, error) {
	radius := int(radiusMeters)
	if radius > maxAroundRadius {
		radius = maxAroundRadius
	}
	if radius < 1 {
		radius = 1
	}
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}

	args := fasthttp.AcquireArgs()
	defer fasthttp.ReleaseArgs(args)
	args.Set("location", formatLocation(center))
	args.SetUint("radius", radius)
	args.SetUint("offset", limit)
	args.Set("page", "1")
	args.Set("sortrule", "distance")
	if c.types != "" {
		args.Set("types", c.types)
	}

	var resp aroundResponse
	if err := c.getJSON(ctx, "place/around", "/v3/place/around", args, &resp); err != nil {
		return nil, err
	}
	if err := resp.err("place/around"); err != nil {
		return nil, err
	}

	pois := make([]domain.PointOfInterest, 0, len(resp.POIs))
	for _, p := range resp.POIs {
		loc, ok := parseLocation(string(p.Location))
		if !ok {
			continue
		}
		poi := domain.PointOfInterest{
			ID:       string(p.ID),
			Name:     string(p.Name),
			Location: loc,
			Category: string(p.Type),
			Address:  string(p.Address),
		}
		if d, err := strconv.ParseFloat(string(p.Distance), 64); err == nil {
			poi.Distance = &d
		}
		pois = append(pois, poi)
	}
	return pois, nil
}
