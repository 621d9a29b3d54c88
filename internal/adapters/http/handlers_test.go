package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	handler "github.com/samirrijal/poiguide/internal/adapters/http"
	"github.com/samirrijal/poiguide/internal/adapters/memory"
	"github.com/samirrijal/poiguide/internal/adapters/postgres"
	"github.com/samirrijal/poiguide/internal/core/domain"
	"github.com/samirrijal/poiguide/internal/core/usecases"
)

// ---- Mocks ----

type mockPOIProvider struct {
	searchFn func(ctx context.Context, center domain.GeoPoint, radius float64, limit int) ([]domain.PointOfInterest, error)
}

func (m *mockPOIProvider) Search(ctx context.Context, center domain.GeoPoint, radius float64, limit int) ([]domain.PointOfInterest, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, center, radius, limit)
	}
	return nil, nil
}

type mockPlaces struct {
	searchFn func(ctx context.Context, keyword string, limit int) ([]domain.Place, error)
}

func (m *mockPlaces) Search(ctx context.Context, keyword string, limit int) ([]domain.Place, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, keyword, limit)
	}
	return nil, nil
}

type mockPinger struct{ err error }

func (m mockPinger) Ping(ctx context.Context) error { return m.err }

type mockPopular struct {
	since time.Time
	limit int
	top   []postgres.POICount
}

func (m *mockPopular) TopSelected(ctx context.Context, since time.Time, limit int) ([]postgres.POICount, error) {
	m.since, m.limit = since, limit
	return m.top, nil
}

// ---- Test helpers ----

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func makeDeps(opts ...func(*handler.Dependencies)) *handler.Dependencies {
	d := &handler.Dependencies{
		POIs:   usecases.NewPOIService(&mockPOIProvider{}, nil, usecases.DefaultRadiusPolicy, 25, nil),
		Places: usecases.NewPlaceService(&mockPlaces{}, nil),
		Audio:  memory.NewAudioStore(memory.New(), 60),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func withPOIs(fn func(ctx context.Context, center domain.GeoPoint, radius float64, limit int) ([]domain.PointOfInterest, error)) func(*handler.Dependencies) {
	return func(d *handler.Dependencies) {
		d.POIs = usecases.NewPOIService(&mockPOIProvider{searchFn: fn}, nil, usecases.DefaultRadiusPolicy, 25, nil)
	}
}

func get(t *testing.T, app *fiber.App, target string) (int, []byte) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", target, nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func decodeError(t *testing.T, body []byte) handler.APIError {
	t.Helper()
	var apiErr handler.APIError
	require.NoError(t, json.Unmarshal(body, &apiErr))
	return apiErr
}

var palace = domain.PointOfInterest{
	ID: "B000A8UIN8", Name: "Forbidden City", Category: "scenic",
	Location: domain.GeoPoint{Lat: 39.9163, Lon: 116.3972},
}

// ---- Health ----

func TestHealth(t *testing.T) {
	app := setupApp(makeDeps())
	status, body := get(t, app, "/v1/health")
	assert.Equal(t, 200, status)
	assert.Contains(t, string(body), `"status":"healthy"`)
}

func TestReady(t *testing.T) {
	type readiness struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}

	t.Run("all required backends up", func(t *testing.T) {
		app := setupApp(makeDeps(func(d *handler.Dependencies) {
			d.Cache = mockPinger{}
			d.Broker = mockPinger{}
		}))
		status, body := get(t, app, "/v1/ready")
		require.Equal(t, 200, status)

		var r readiness
		require.NoError(t, json.Unmarshal(body, &r))
		assert.Equal(t, "ready", r.Status)
		assert.Equal(t, "ok", r.Checks["cache"])
		assert.Equal(t, "not configured", r.Checks["database"])
	})

	t.Run("broker down", func(t *testing.T) {
		app := setupApp(makeDeps(func(d *handler.Dependencies) {
			d.Cache = mockPinger{}
			d.Broker = mockPinger{err: errors.New("nats disconnected")}
		}))
		status, body := get(t, app, "/v1/ready")
		require.Equal(t, 503, status)

		var r readiness
		require.NoError(t, json.Unmarshal(body, &r))
		assert.Equal(t, "not ready", r.Status)
		assert.Equal(t, "error: nats disconnected", r.Checks["nats"])
	})
}

// ---- POIs ----

func TestNearbyPOIs_RadiusFromZoom(t *testing.T) {
	var gotRadius float64
	var gotCenter domain.GeoPoint
	app := setupApp(makeDeps(withPOIs(func(ctx context.Context, center domain.GeoPoint, radius float64, limit int) ([]domain.PointOfInterest, error) {
		gotCenter, gotRadius = center, radius
		return []domain.PointOfInterest{palace}, nil
	})))

	status, body := get(t, app, "/v1/pois/nearby?lat=39.9042&lng=116.4038&zoom=15")
	require.Equal(t, 200, status, string(body))

	assert.Equal(t, 1000.0, gotRadius)
	assert.Equal(t, domain.GeoPoint{Lat: 39.9042, Lon: 116.4038}, gotCenter)

	var resp handler.NearbyPOIsResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, 1000.0, resp.Radius)
	require.Len(t, resp.POIs, 1)
	assert.Equal(t, "Forbidden City", resp.POIs[0].Name)
	require.NotNil(t, resp.POIs[0].Distance, "distance is filled in")
}

func TestNearbyPOIs_ExplicitRadiusAndLowZoom(t *testing.T) {
	var radii []float64
	app := setupApp(makeDeps(withPOIs(func(ctx context.Context, center domain.GeoPoint, radius float64, limit int) ([]domain.PointOfInterest, error) {
		radii = append(radii, radius)
		return nil, nil
	})))

	status, body := get(t, app, "/v1/pois/nearby?lat=30.27&lng=120.15&radius=2500")
	require.Equal(t, 200, status)
	assert.Contains(t, string(body), `"pois":[]`)

	status, _ = get(t, app, "/v1/pois/nearby?lat=30.27&lng=120.15&zoom=3")
	require.Equal(t, 200, status)

	assert.Equal(t, []float64{2500, 5000}, radii)
}

func TestNearbyPOIs_Validation(t *testing.T) {
	app := setupApp(makeDeps())

	for _, target := range []string{
		"/v1/pois/nearby",
		"/v1/pois/nearby?lat=39.9",
		"/v1/pois/nearby?lat=95&lng=116.4",
		"/v1/pois/nearby?lat=39.9&lng=116.4&radius=60000",
		"/v1/pois/nearby?lat=39.9&lng=116.4&zoom=-1",
	} {
		status, body := get(t, app, target)
		assert.Equal(t, 400, status, target)
		assert.Equal(t, "bad_request", decodeError(t, body).Code, target)
	}
}

func TestNearbyPOIs_ProviderError(t *testing.T) {
	app := setupApp(makeDeps(withPOIs(func(ctx context.Context, center domain.GeoPoint, radius float64, limit int) ([]domain.PointOfInterest, error) {
		return nil, domain.NewProviderError("amap", "place around", 500, errors.New("boom"))
	})))

	status, body := get(t, app, "/v1/pois/nearby?lat=39.9&lng=116.4")
	require.Equal(t, 502, status)
	apiErr := decodeError(t, body)
	assert.Equal(t, "upstream_error", apiErr.Code)
	assert.Equal(t, "amap place around failed", apiErr.Message)
}

func TestNearbyPOIs_ETag(t *testing.T) {
	app := setupApp(makeDeps(withPOIs(func(ctx context.Context, center domain.GeoPoint, radius float64, limit int) ([]domain.PointOfInterest, error) {
		return []domain.PointOfInterest{palace}, nil
	})))

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/pois/nearby?lat=39.9&lng=116.4", nil), -1)
	require.NoError(t, err)
	etag := resp.Header.Get("ETag")
	require.NotEmpty(t, etag)
	assert.Equal(t, "public, max-age=300", resp.Header.Get("Cache-Control"))

	req := httptest.NewRequest("GET", "/v1/pois/nearby?lat=39.9&lng=116.4", nil)
	req.Header.Set("If-None-Match", etag)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, 304, resp.StatusCode)
}

// ---- Places ----

func TestSearchPlaces(t *testing.T) {
	var gotKeyword string
	app := setupApp(makeDeps(func(d *handler.Dependencies) {
		d.Places = usecases.NewPlaceService(&mockPlaces{searchFn: func(ctx context.Context, keyword string, limit int) ([]domain.Place, error) {
			gotKeyword = keyword
			return []domain.Place{{ID: "330100", Name: "Hangzhou", Region: "city", Location: domain.GeoPoint{Lat: 30.27, Lon: 120.15}}}, nil
		}}, nil)
	}))

	status, body := get(t, app, "/v1/places/search?q=Hangzhou")
	require.Equal(t, 200, status)
	assert.Equal(t, "Hangzhou", gotKeyword)

	var places []domain.Place
	require.NoError(t, json.Unmarshal(body, &places))
	require.Len(t, places, 1)
	assert.Equal(t, "330100", places[0].ID)
}

func TestSearchPlaces_Validation(t *testing.T) {
	app := setupApp(makeDeps())

	status, _ := get(t, app, "/v1/places/search")
	assert.Equal(t, 400, status)

	status, _ = get(t, app, "/v1/places/search?q="+strings.Repeat("a", 201))
	assert.Equal(t, 400, status)

	status, body := get(t, app, "/v1/places/search?q=%20%20")
	assert.Equal(t, 400, status, "blank keyword")
	assert.Contains(t, decodeError(t, body).Message, "empty")
}

// ---- Audio ----

func TestAudio(t *testing.T) {
	deps := makeDeps()
	require.NoError(t, deps.Audio.Put(context.Background(), "abc", []byte("ID3mp3")))
	app := setupApp(deps)

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/audio/abc", nil), -1)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "audio/mpeg", resp.Header.Get("Content-Type"))
	assert.Empty(t, resp.Header.Get("ETag"))
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "ID3mp3", string(body))

	status, body := get(t, app, "/v1/audio/missing")
	assert.Equal(t, 404, status)
	assert.Equal(t, "not_found", decodeError(t, body).Code)
}

// ---- Stats ----

func TestPopularPOIs(t *testing.T) {
	t.Run("without database", func(t *testing.T) {
		status, _ := get(t, setupApp(makeDeps()), "/v1/stats/popular")
		assert.Equal(t, 503, status)
	})

	t.Run("top selections", func(t *testing.T) {
		pop := &mockPopular{top: []postgres.POICount{{POIID: "B000A8UIN8", Count: 12}}}
		app := setupApp(makeDeps(func(d *handler.Dependencies) { d.Popular = pop }))

		status, body := get(t, app, "/v1/stats/popular?days=3&limit=5")
		require.Equal(t, 200, status)
		assert.Contains(t, string(body), `"poi_id":"B000A8UIN8"`)
		assert.Equal(t, 5, pop.limit)
		assert.WithinDuration(t, time.Now().AddDate(0, 0, -3), pop.since, time.Minute)

		status, _ = get(t, app, "/v1/stats/popular?days=365")
		assert.Equal(t, 400, status)
	})
}

// ---- GraphQL ----

func TestGraphQL_NearbyPOIs(t *testing.T) {
	var gotRadius float64
	app := setupApp(makeDeps(withPOIs(func(ctx context.Context, center domain.GeoPoint, radius float64, limit int) ([]domain.PointOfInterest, error) {
		gotRadius = radius
		return []domain.PointOfInterest{palace}, nil
	})))

	query := `{"query":"{ nearbyPois(lat: 39.9042, lng: 116.4038, radius: 800) { id name location { lat lon } } }"}`
	req := httptest.NewRequest("POST", "/graphql", strings.NewReader(query))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	var result struct {
		Data struct {
			NearbyPois []struct {
				ID       string          `json:"id"`
				Name     string          `json:"name"`
				Location domain.GeoPoint `json:"location"`
			} `json:"nearbyPois"`
		} `json:"data"`
		Errors []json.RawMessage `json:"errors"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.Empty(t, result.Errors)
	require.Len(t, result.Data.NearbyPois, 1)
	assert.Equal(t, "Forbidden City", result.Data.NearbyPois[0].Name)
	assert.Equal(t, palace.Location, result.Data.NearbyPois[0].Location)
	assert.Equal(t, 800.0, gotRadius)
}

// ---- WebSocket ----

func TestExplorerWS_RequiresUpgrade(t *testing.T) {
	status, _ := get(t, setupApp(makeDeps()), "/v1/explorer/ws")
	assert.Equal(t, fiber.StatusUpgradeRequired, status)
}
