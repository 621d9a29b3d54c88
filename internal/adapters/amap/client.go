// Package amap talks to the AMap (Gaode) web-service API.
package amap

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/samirrijal/poiguide/internal/core/domain"
	"github.com/samirrijal/poiguide/internal/pkg/metrics"
)

const provider = "amap"

// Config configures the AMap client.
type Config struct {
	BaseURL  string
	Key      string
	POITypes string
	Timeout  time.Duration
}

// Client calls AMap over fasthttp. It implements ports.POIProvider,
// ports.PlaceSearcher and ports.BaseMapSource.
type Client struct {
	http    *fasthttp.Client
	baseURL string
	key     string
	types   string
	timeout time.Duration
}

// New creates a Client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Client{
		http: &fasthttp.Client{
			Name:                "poiguide",
			MaxConnsPerHost:     64,
			MaxIdleConnDuration: 30 * time.Second,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		key:     cfg.Key,
		types:   cfg.POITypes,
		timeout: cfg.Timeout,
	}
}

// envelope is the status block every AMap response carries.
type envelope struct {
	Status   string `json:"status"`
	Info     string `json:"info"`
	InfoCode string `json:"infocode"`
}

func (e envelope) err(op string) error {
	if e.Status == "1" {
		return nil
	}
	return domain.NewProviderError(provider, op, 0, fmt.Errorf("%s (infocode %s)", e.Info, e.InfoCode))
}

// get performs a GET and returns the body. Non-2xx is a ProviderError.
func (c *Client) get(ctx context.Context, op, uri string) (body []byte, err error) {
	start := time.Now()
	defer func() { metrics.ObserveProvider(provider, start, err) }()

	if err := ctx.Err(); err != nil {
		return nil, domain.NewProviderError(provider, op, 0, err)
	}
	timeout := c.timeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(uri)
	req.Header.SetMethod(fasthttp.MethodGet)

	if err := c.http.DoTimeout(req, resp, timeout); err != nil {
		return nil, domain.NewProviderError(provider, op, 0, err)
	}
	if code := resp.StatusCode(); code < 200 || code >= 300 {
		return nil, domain.NewProviderError(provider, op, code, nil)
	}
	// resp is released on return.
	return append([]byte(nil), resp.Body()...), nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, args *fasthttp.Args, out any) error {
	args.Set("key", c.key)
	body, err := c.get(ctx, op, c.baseURL+path+"?"+args.String())
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return domain.NewProviderError(provider, op, 0, fmt.Errorf("decode: %w", err))
	}
	return nil
}

// Fetch downloads an arbitrary resource, such as a static map image.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	return c.get(ctx, "fetch", url)
}

// parseLocation parses AMap's "lng,lat" pairs.
func parseLocation(s string) (domain.GeoPoint, bool) {
	lng, lat, ok := strings.Cut(s, ",")
	if !ok {
		return domain.GeoPoint{}, false
	}
	lon, err1 := strconv.ParseFloat(strings.TrimSpace(lng), 64)
	la, err2 := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err1 != nil || err2 != nil {
		return domain.GeoPoint{}, false
	}
	return domain.GeoPoint{Lat: la, Lon: lon}, true
}

func formatLocation(p domain.GeoPoint) string {
	return strconv.FormatFloat(p.Lon, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lat, 'f', 6, 64)
}

// text decodes fields AMap sends as a string, or as [] when empty.
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = text(s)
		return nil
	}
	*t = ""
	return nil
}
