package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/samirrijal/poiguide/internal/core/domain"
	"github.com/samirrijal/poiguide/internal/core/ports"
	"github.com/samirrijal/poiguide/internal/pkg/metrics"
)

const maxKeywordRunes = 200

// PlaceService resolves city keywords to candidate places.
type PlaceService struct {
	places ports.PlaceSearcher
	cache  ports.CacheService
}

// NewPlaceService creates a new PlaceService.
func NewPlaceService(places ports.PlaceSearcher, cache ports.CacheService) *PlaceService {
	return &PlaceService{places: places, cache: cache}
}

// Search returns up to limit candidates for keyword.
func (s *PlaceService) Search(ctx context.Context, keyword string, limit int) ([]domain.Place, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, domain.ErrEmptyKeyword
	}
	if utf8.RuneCountInString(keyword) > maxKeywordRunes {
		return nil, fmt.Errorf("search keyword longer than %d characters", maxKeywordRunes)
	}
	if limit <= 0 || limit > 20 {
		limit = 10
	}

	cacheKey := fmt.Sprintf("places:search:%s:%d", strings.ToLower(keyword), limit)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var places []domain.Place
			if err := json.Unmarshal(data, &places); err == nil {
				metrics.CacheLookup("places_search", true)
				return places, nil
			}
		}
		metrics.CacheLookup("places_search", false)
	}

	places, err := s.places.Search(ctx, keyword, limit)
	if err != nil {
		return nil, fmt.Errorf("search places: %w", err)
	}

	// City names are stable; cache for an hour.
	if s.cache != nil {
		if data, err := json.Marshal(places); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 3600)
		}
	}

	return places, nil
}
