// The dispatcher drains the outbox table to Kafka. It runs as a separate
// process so broker downtime never slows the mutation path.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"fiat/internal/outbox/dispatcher"
	outboxpg "fiat/internal/outbox/store/postgres"
	"fiat/internal/platform/config"
	"fiat/internal/platform/logger"
	"fiat/internal/platform/metrics"
)

func main() {
	log := logger.New()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		log.Error("FIAT_DATABASE_URL is required for the dispatcher")
		os.Exit(1)
	}
	if len(cfg.KafkaBrokers) == 0 {
		log.Error("FIAT_KAFKA_BROKERS is required for the dispatcher")
		os.Exit(1)
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		log.Error("database open failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		cancel()
		log.Error("database unreachable", slog.String("error", err.Error()))
		os.Exit(1)
	}
	cancel()

	publisher, err := dispatcher.NewKafkaPublisher(cfg.KafkaBrokers, cfg.OutboxTopic)
	if err != nil {
		log.Error("kafka client failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer publisher.Close()

	d := dispatcher.New(
		outboxpg.New(db),
		publisher,
		cfg.DispatchInterval,
		cfg.DispatchBatch,
		dispatcher.WithLogger(log),
		dispatcher.WithMetrics(metrics.New()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting fiat dispatcher",
		slog.String("topic", cfg.OutboxTopic),
		slog.Duration("interval", cfg.DispatchInterval))
	if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("dispatcher exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
