package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/poiguide/internal/adapters/amap"
	"github.com/samirrijal/poiguide/internal/adapters/postgres"
	"github.com/samirrijal/poiguide/internal/core/domain"
	"github.com/samirrijal/poiguide/internal/pkg/config"
	"github.com/samirrijal/poiguide/internal/pkg/logging"
)

// Manifest lists what to copy from AMap into PostGIS.
type Manifest struct {
	Areas  []AreaEntry `json:"areas"`
	Cities []string    `json:"cities"`
}

// AreaEntry is one circular POI harvest.
type AreaEntry struct {
	Name   string  `json:"name"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Radius float64 `json:"radius"`
	Limit  int     `json:"limit"`
}

func main() {
	cfg, err := config.LoadStorage("poiguide-ingestor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	if cfg.AMap.Key == "" {
		log.Fatal("amap.key is required for ingestion")
	}

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	manifestPath := "manifest.json"
	if len(os.Args) > 1 {
		manifestPath = os.Args[1]
	}
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		log.Fatalf("read manifest: %v", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		log.Fatalf("parse manifest: %v", err)
	}

	// Optional CLI arg: comma separated area names.
	areaFilter := map[string]bool{}
	if len(os.Args) > 2 {
		for _, s := range strings.Split(os.Args[2], ",") {
			areaFilter[strings.TrimSpace(s)] = true
		}
	}

	client := amap.New(amap.Config{
		BaseURL:  cfg.AMap.BaseURL,
		Key:      cfg.AMap.Key,
		POITypes: cfg.AMap.POITypes,
		Timeout:  cfg.AMap.Timeout,
	})
	in := &ingestor{
		pois:    client,
		places:  client.Places(),
		poiRepo: postgres.NewPOIRepo(db),
		plRepo:  postgres.NewPlaceRepo(db),
		log:     logger,
	}

	logger.Info("ingestion starting", "areas", len(manifest.Areas), "cities", len(manifest.Cities))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, area := range manifest.Areas {
		if len(areaFilter) > 0 && !areaFilter[area.Name] {
			continue
		}
		g.Go(func() error {
			in.ingestArea(gctx, area)
			return nil
		})
	}
	for _, city := range manifest.Cities {
		g.Go(func() error {
			in.ingestCity(gctx, city)
			return nil
		})
	}
	_ = g.Wait()

	logger.Info("ingestion complete")
}

type poiSource interface {
	Search(ctx context.Context, center domain.GeoPoint, radiusMeters float64, limit int) ([]domain.PointOfInterest, error)
}

type placeSource interface {
	Search(ctx context.Context, keyword string, limit int) ([]domain.Place, error)
}

type poiSink interface {
	UpsertBatch(ctx context.Context, pois []domain.PointOfInterest) error
}

type placeSink interface {
	UpsertBatch(ctx context.Context, places []domain.Place) error
}

type ingestor struct {
	pois    poiSource
	places  placeSource
	poiRepo poiSink
	plRepo  placeSink
	log     *slog.Logger
}

// ingestArea copies one area's POIs. Failures are logged so the other
// areas still load.
func (in *ingestor) ingestArea(ctx context.Context, a AreaEntry) int {
	radius := a.Radius
	if radius <= 0 {
		radius = 3000
	}
	limit := a.Limit
	if limit <= 0 {
		limit = 25
	}

	pois, err := in.pois.Search(ctx, domain.GeoPoint{Lat: a.Lat, Lon: a.Lon}, radius, limit)
	if err != nil {
		in.log.Error("fetch pois failed", "area", a.Name, "error", err)
		return 0
	}
	if err := in.poiRepo.UpsertBatch(ctx, pois); err != nil {
		in.log.Error("store pois failed", "area", a.Name, "error", err)
		return 0
	}
	in.log.Info("area ingested", "area", a.Name, "pois", len(pois))
	return len(pois)
}

func (in *ingestor) ingestCity(ctx context.Context, keyword string) int {
	places, err := in.places.Search(ctx, keyword, 20)
	if err != nil {
		in.log.Error("fetch places failed", "keyword", keyword, "error", err)
		return 0
	}
	if err := in.plRepo.UpsertBatch(ctx, places); err != nil {
		in.log.Error("store places failed", "keyword", keyword, "error", err)
		return 0
	}
	in.log.Info("city ingested", "keyword", keyword, "places", len(places))
	return len(places)
}
