package amap

import (
	"context"

	"github.com/valyala/fasthttp"

	"github.com/samirrijal/poiguide/internal/core/domain"
)

type districtResponse struct {
	envelope
	Districts []district `json:"districts"`
}

type district struct {
	Adcode    text       `json:"adcode"`
	Name      text       `json:"name"`
	Center    text       `json:"center"`
	Level     text       `json:"level"`
	Districts []district `json:"districts"`
}

// Places implements ports.PlaceSearcher via /v3/config/district.
type Places struct{ c *Client }

// Places returns the place searcher view of the client.
func (c *Client) Places() *Places { return &Places{c: c} }

// Search returns administrative areas matching keyword.
func (p *Places) Search(ctx context.Context, keyword string, limit int) ([]domain.Place, error) {
	args := fasthttp.AcquireArgs()
	defer fasthttp.ReleaseArgs(args)
	args.Set("keywords", keyword)
	args.Set("subdistrict", "0")
	args.Set("extensions", "base")

	var resp districtResponse
	if err := p.c.getJSON(ctx, "config/district", "/v3/config/district", args, &resp); err != nil {
		return nil, err
	}
	if err := resp.err("config/district"); err != nil {
		return nil, err
	}

	var places []domain.Place
	var walk func(ds []district)
	walk = func(ds []district) {
		for _, d := range ds {
			if limit > 0 && len(places) >= limit {
				return
			}
			if loc, ok := parseLocation(string(d.Center)); ok {
				places = append(places, domain.Place{
					ID:       string(d.Adcode),
					Name:     string(d.Name),
					Location: loc,
					Region:   string(d.Level),
				})
			}
			walk(d.Districts)
		}
	}
	walk(resp.Districts)
	return places, nil
}
