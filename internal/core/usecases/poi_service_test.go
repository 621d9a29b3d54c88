package usecases_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/poiguide/internal/core/domain"
	"github.com/samirrijal/poiguide/internal/core/usecases"
)

func TestRadiusPolicy(t *testing.T) {
	p := usecases.DefaultRadiusPolicy

	tests := []struct {
		zoom float64
		want float64
	}{
		{15, 1000},
		{10, 1500},
		{100, 200},   // clamped to min
		{0.1, 50000}, // clamped to max
		{0, 50000},
		{-3, 50000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.RadiusForZoom(tt.zoom), "zoom %v", tt.zoom)
	}

	assert.LessOrEqual(t, p.RadiusForZoom(16), p.RadiusForZoom(12), "radius must not grow when zooming in")
}

func TestPOIService_SearchViewport(t *testing.T) {
	provider := &mockPOIProvider{
		searchFn: func(ctx context.Context, center domain.GeoPoint, radius float64, limit int) ([]domain.PointOfInterest, error) {
			return []domain.PointOfInterest{templeY, forbiddenCity}, nil
		},
	}
	svc := usecases.NewPOIService(provider, nil, usecases.DefaultRadiusPolicy, 25, nil)

	pois, err := svc.SearchViewport(context.Background(), domain.Viewport{Center: forbiddenCity.Location, Zoom: 15})
	require.NoError(t, err)
	assert.Equal(t, 1000.0, provider.radii[0])

	require.Len(t, pois, 2)
	assert.Equal(t, "p1", pois[0].ID, "nearest first")
	require.NotNil(t, pois[0].Distance)
	assert.Zero(t, *pois[0].Distance)
}

func TestPOIService_DedupAndLimit(t *testing.T) {
	provider := &mockPOIProvider{
		searchFn: func(ctx context.Context, center domain.GeoPoint, radius float64, limit int) ([]domain.PointOfInterest, error) {
			return []domain.PointOfInterest{
				forbiddenCity, forbiddenCity, templeX,
				{ID: "blank", Location: forbiddenCity.Location},
				templeY,
			}, nil
		},
	}
	svc := usecases.NewPOIService(provider, nil, usecases.DefaultRadiusPolicy, 2, nil)

	pois, err := svc.Search(context.Background(), forbiddenCity.Location, 1000)
	require.NoError(t, err)
	require.Len(t, pois, 2)
	assert.NotEqual(t, pois[0].ID, pois[1].ID)
}

func TestPOIService_CachesResults(t *testing.T) {
	provider := &mockPOIProvider{
		searchFn: func(ctx context.Context, center domain.GeoPoint, radius float64, limit int) ([]domain.PointOfInterest, error) {
			return []domain.PointOfInterest{forbiddenCity}, nil
		},
	}
	svc := usecases.NewPOIService(provider, newMemCache(), usecases.DefaultRadiusPolicy, 25, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		pois, err := svc.Search(ctx, forbiddenCity.Location, 1000)
		require.NoError(t, err)
		require.Len(t, pois, 1)
	}
	assert.Equal(t, 1, provider.callCount())
}

func TestPOIService_ProviderError(t *testing.T) {
	perr := domain.NewProviderError("amap", "place/around", 502, nil)
	provider := &mockPOIProvider{
		searchFn: func(ctx context.Context, center domain.GeoPoint, radius float64, limit int) ([]domain.PointOfInterest, error) {
			return nil, perr
		},
	}
	svc := usecases.NewPOIService(provider, newMemCache(), usecases.DefaultRadiusPolicy, 25, nil)

	_, err := svc.Search(context.Background(), forbiddenCity.Location, 1000)
	var got *domain.ProviderError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, 502, got.StatusCode)
}

func TestPlaceService_Search(t *testing.T) {
	calls := 0
	places := &mockPlaceSearcher{
		searchFn: func(ctx context.Context, keyword string, limit int) ([]domain.Place, error) {
			calls++
			return []domain.Place{{ID: "c1", Name: keyword}}, nil
		},
	}
	svc := usecases.NewPlaceService(places, newMemCache())
	ctx := context.Background()

	_, err := svc.Search(ctx, "   ", 10)
	require.ErrorIs(t, err, domain.ErrEmptyKeyword)

	got, err := svc.Search(ctx, " Hangzhou ", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Hangzhou", got[0].Name)

	_, err = svc.Search(ctx, "hangzhou", 10)
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "case-insensitive cache hit")
}

func TestPlaceService_KeywordTooLong(t *testing.T) {
	svc := usecases.NewPlaceService(&mockPlaceSearcher{}, nil)
	long := make([]rune, 201)
	for i := range long {
		long[i] = '城'
	}
	_, err := svc.Search(context.Background(), string(long), 10)
	assert.Error(t, err)
}
