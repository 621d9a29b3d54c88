package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/samirrijal/poiguide/internal/adapters/amap"
	"github.com/samirrijal/poiguide/internal/adapters/http"
	"github.com/samirrijal/poiguide/internal/adapters/llm"
	"github.com/samirrijal/poiguide/internal/adapters/memory"
	natsadapter "github.com/samirrijal/poiguide/internal/adapters/nats"
	"github.com/samirrijal/poiguide/internal/adapters/postgres"
	"github.com/samirrijal/poiguide/internal/adapters/valkey"
	"github.com/samirrijal/poiguide/internal/core/domain"
	"github.com/samirrijal/poiguide/internal/core/ports"
	"github.com/samirrijal/poiguide/internal/core/usecases"
	"github.com/samirrijal/poiguide/internal/pkg/config"
	"github.com/samirrijal/poiguide/internal/pkg/logging"
	"github.com/samirrijal/poiguide/internal/pkg/metrics"
	"github.com/samirrijal/poiguide/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("poiguide-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	deps := &http.Dependencies{}

	// Cache: Valkey, or in-process when Valkey is down.
	var cache ports.CacheService
	if vc, err := valkey.New(cfg.Valkey.Addr); err != nil {
		slog.Warn("valkey unavailable, using in-process cache", "error", err)
		mem := memory.New()
		cache = mem
		deps.Audio = memory.NewAudioStore(mem, cfg.Audio.TTL)
		deps.Cache = mem
	} else {
		defer vc.Close()
		cache = vc
		deps.Audio = valkey.NewAudioStore(vc, cfg.Audio.TTL)
		deps.Cache = vc
	}

	// Session events
	var events ports.EventPublisher
	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable, session events disabled", "error", err)
	} else {
		defer pub.Close()
		events = pub
		deps.Broker = pub
	}

	// Database
	var db *postgres.DB
	if cfg.Database.Enabled || cfg.POI.Source == "postgis" {
		db, err = postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		deps.DB = db
		deps.Popular = postgres.NewEventRepo(db)
		go reportPoolStats(ctx, db)
	}

	// POIs and places
	amapClient := amap.New(amap.Config{
		BaseURL:  cfg.AMap.BaseURL,
		Key:      cfg.AMap.Key,
		POITypes: cfg.AMap.POITypes,
		Timeout:  cfg.AMap.Timeout,
	})
	if cfg.AMap.Key == "" {
		slog.Warn("amap.key not set, stylized overlays will fail to load their base map")
	}

	var (
		poiProvider ports.POIProvider
		placeSource ports.PlaceSearcher
	)
	switch cfg.POI.Source {
	case "postgis":
		poiProvider = postgres.NewPOIRepo(db)
		placeSource = postgres.NewPlaceRepo(db)
	default:
		poiProvider = amapClient
		placeSource = amapClient.Places()
	}

	policy := usecases.RadiusPolicy{
		Factor: cfg.Explorer.RadiusFactor,
		Min:    cfg.Explorer.MinRadius,
		Max:    cfg.Explorer.MaxRadius,
	}
	deps.POIs = usecases.NewPOIService(poiProvider, cache, policy, cfg.Explorer.MaxPOIs, logger)
	deps.POIs.SetCacheTTL(cfg.POI.CacheTTL)
	deps.Places = usecases.NewPlaceService(placeSource, cache)

	// Model providers
	oaCfg := llm.OpenAIConfig{
		APIKey:      cfg.OpenAI.APIKey,
		BaseURL:     cfg.OpenAI.BaseURL,
		ChatModel:   cfg.OpenAI.ChatModel,
		TTSModel:    cfg.OpenAI.TTSModel,
		ImageModel:  cfg.OpenAI.ImageModel,
		ImageSize:   cfg.OpenAI.ImageSize,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	}
	oa := llm.NewOpenAIClient(oaCfg)

	var generator ports.ExplanationGenerator
	switch cfg.LLM.Provider {
	case "gemini":
		generator, err = llm.NewGeminiExplainer(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.LLM.MaxTokens, cfg.LLM.Temperature)
		if err != nil {
			log.Fatalf("gemini: %v", err)
		}
	default:
		generator = llm.NewOpenAIExplainer(oa, oaCfg)
	}

	explainer := usecases.NewExplanationService(generator, cache, cfg.LLM.CacheTTL, logger)
	narration := usecases.NewNarrationService(
		llm.NewOpenAISpeech(oa, cfg.OpenAI.TTSModel),
		deps.Audio,
		cfg.Audio.PublicBaseURL,
		cfg.Audio.SegmentMaxRunes,
		logger,
	)
	stylizer := llm.NewOpenAIStylizer(oa, amapClient, cfg.OpenAI.ImageModel, cfg.OpenAI.ImageSize)

	deps.Explorer = usecases.ExplorerDeps{
		POIs:      deps.POIs,
		Places:    deps.Places,
		Explainer: explainer,
		Speech:    narration,
		Stylizer:  stylizer,
		BaseMap:   amapClient,
		Events:    events,
		Logger:    logger,
	}
	deps.ExplorerConfig = usecases.ExplorerConfig{
		Debounce:      cfg.Explorer.Debounce,
		DefaultCenter: domain.GeoPoint{Lat: cfg.Explorer.DefaultLat, Lon: cfg.Explorer.DefaultLon},
		DefaultZoom:   cfg.Explorer.DefaultZoom,
		CityZoom:      cfg.Explorer.CityZoom,
		OverlayPrompt: cfg.Explorer.OverlayPrompt,
		Guide: usecases.GuideConfig{
			VoiceID:      cfg.Explorer.VoiceID,
			FallbackText: cfg.Explorer.FallbackText,
		},
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "POI Guide API",
	})
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
		MaxAge:       3600,
	}))

	http.SetupRoutes(app, deps)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "poi_source", cfg.POI.Source, "llm", cfg.LLM.Provider)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

func reportPoolStats(ctx context.Context, db *postgres.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.UpdateDBPoolMetrics(db.Pool.Stat())
		}
	}
}
