package http

import (
	"context"
	"time"

	"github.com/samirrijal/poiguide/internal/adapters/postgres"
	"github.com/samirrijal/poiguide/internal/core/ports"
	"github.com/samirrijal/poiguide/internal/core/usecases"
)

// Pinger is a backing service the readiness check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PopularityReader reports the most selected POIs.
type PopularityReader interface {
	TopSelected(ctx context.Context, since time.Time, limit int) ([]postgres.POICount, error)
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	POIs   *usecases.POIService
	Places *usecases.PlaceService
	Audio  ports.AudioStore

	// Explorer holds the shared collaborators of every WebSocket session.
	// Engine, Player and Presenter are filled in per connection.
	Explorer       usecases.ExplorerDeps
	ExplorerConfig usecases.ExplorerConfig

	Popular PopularityReader // optional, needs the database

	// Readiness probes; nil means not configured.
	DB     Pinger
	Cache  Pinger
	Broker Pinger
}
