package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	natsadapter "github.com/samirrijal/poiguide/internal/adapters/nats"
	"github.com/samirrijal/poiguide/internal/adapters/postgres"
	"github.com/samirrijal/poiguide/internal/core/domain"
	"github.com/samirrijal/poiguide/internal/pkg/config"
	"github.com/samirrijal/poiguide/internal/pkg/logging"
)

// eventlog persists explorer session events from JetStream into session_events.
func main() {
	cfg, err := config.LoadStorage("poiguide-eventlog")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	// The publisher declares the stream, so connect it once before subscribing.
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	pub.Close()

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer sub.Close()

	repo := postgres.NewEventRepo(db)
	if err := sub.SubscribeSessionEvents(ctx, "eventlog", store(repo, logger)); err != nil {
		log.Fatalf("subscribe: %v", err)
	}

	logger.Info("event log running", "nats", cfg.NATS.URL)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("event log stopped")
}

type eventInserter interface {
	Insert(ctx context.Context, ev *domain.SessionEvent) error
}

func store(repo eventInserter, log *slog.Logger) func(context.Context, *domain.SessionEvent) error {
	return func(ctx context.Context, ev *domain.SessionEvent) error {
		if err := repo.Insert(ctx, ev); err != nil {
			log.Error("store session event failed", "session", ev.SessionID, "type", ev.Type, "error", err)
			return err
		}
		log.Debug("session event stored", "session", ev.SessionID, "type", ev.Type)
		return nil
	}
}
