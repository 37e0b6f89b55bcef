package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"fiat/internal/audit"
	auditmem "fiat/internal/audit/store/memory"
	auditpg "fiat/internal/audit/store/postgres"
	"fiat/internal/authtoken"
	"fiat/internal/capability"
	"fiat/internal/mutation/executor"
	"fiat/internal/mutation/planner"
	"fiat/internal/mutation/service"
	"fiat/internal/mutation/store/entity"
	"fiat/internal/mutation/store/idempotency"
	"fiat/internal/outbox"
	outboxmem "fiat/internal/outbox/store/memory"
	outboxpg "fiat/internal/outbox/store/postgres"
	"fiat/internal/platform/config"
	"fiat/internal/platform/httpserver"
	"fiat/internal/platform/logger"
	"fiat/internal/platform/metrics"
	platformredis "fiat/internal/platform/redis"
	"fiat/internal/policy"
	"fiat/internal/ratelimit"
	httptransport "fiat/internal/transport/http"
)

// main wires the kernel's dependencies and keeps the server lifecycle small.
// Business logic lives in the internal packages.
func main() {
	log := logger.New()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// A broken catalog must never serve authorization decisions.
	catalog, err := capability.Default()
	if err != nil {
		log.Error("capability catalog failed to load", slog.String("error", err.Error()))
		os.Exit(1)
	}

	m := metrics.New()

	var (
		entities entity.Store
		ledger   audit.Store
		intents  outbox.Store
		replays  idempotency.Store
		txRunner executor.TxRunner
		db       *sql.DB
		redisCli *goredis.Client
	)

	if cfg.DatabaseURL != "" {
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			log.Error("database open failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := db.PingContext(pingCtx); err != nil {
			cancel()
			log.Error("database unreachable", slog.String("error", err.Error()))
			os.Exit(1)
		}
		cancel()

		entities = entity.NewPostgresStore(db)
		ledger = auditpg.New(db)
		intents = outboxpg.New(db)
		replays = idempotency.NewPostgresStore(db)
		txRunner = newKernelPostgresTx(db, cfg.TxTimeout)
	} else {
		log.Warn("no database configured, using in-memory stores")
		memEntities := entity.NewInMemoryStore()
		memLedger := auditmem.NewInMemoryStore()
		memIntents := outboxmem.NewInMemoryStore()
		memReplays := idempotency.NewInMemoryStore()
		entities = memEntities
		ledger = memLedger
		intents = memIntents
		replays = memReplays
		txRunner = executor.NewMemoryTxRunner(memEntities, memLedger, memIntents, memReplays)
	}

	var limiter ratelimit.Limiter = ratelimit.NewInMemoryLimiter(cfg.MutationRateLimit, cfg.RateLimitWindow)
	if cfg.RedisAddr != "" {
		redisCli, err = platformredis.Connect(context.Background(), cfg.RedisAddr)
		if err != nil {
			log.Error("redis unreachable", slog.String("error", err.Error()))
			os.Exit(1)
		}
		replays = idempotency.NewRedisCache(replays, redisCli, cfg.IdempotencyCacheTTL, log)
		limiter = ratelimit.NewRedisLimiter(redisCli, cfg.MutationRateLimit, cfg.RateLimitWindow)
	}

	exec := executor.New(txRunner, executor.Stores{
		Entities:    entities,
		Audit:       ledger,
		Outbox:      intents,
		Idempotency: replays,
	}, executor.WithLogger(log), executor.WithMetrics(m))

	kernel := service.New(
		planner.New(catalog, policy.NewDecider(), replays),
		exec,
		entities,
		ledger,
		service.WithLogger(log),
	)

	tokens := authtoken.NewService(cfg.JWTSigningKey, "fiat", "fiat-api")
	router := httptransport.NewRouter(httptransport.RouterConfig{
		Kernel:    kernel,
		Validator: tokens,
		Limiter:   limiter,
		Metrics:   m,
		Logger:    log,
	})
	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting fiat server",
			slog.String("addr", cfg.Addr),
			slog.Int("catalog_entries", catalog.Len()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if db != nil {
		_ = db.Close()
	}
	if redisCli != nil {
		_ = redisCli.Close()
	}
	log.Info("shutdown complete")
}
