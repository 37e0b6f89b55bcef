// Package config centralizes environment-driven configuration so main stays lean.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures process-level configuration for the server and dispatcher.
// When DatabaseURL is empty the server falls back to in-memory stores, which
// keeps local development and tests free of external services.
type Config struct {
	Addr        string `env:"FIAT_ADDR" envDefault:":8080"`
	DatabaseURL string `env:"FIAT_DATABASE_URL"`
	RedisAddr   string `env:"FIAT_REDIS_ADDR"`

	KafkaBrokers []string `env:"FIAT_KAFKA_BROKERS" envSeparator:","`
	OutboxTopic  string   `env:"FIAT_OUTBOX_TOPIC" envDefault:"fiat.outbox.intents"`

	JWTSigningKey string `env:"FIAT_JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`

	MutationRateLimit int           `env:"FIAT_MUTATION_RATE_LIMIT" envDefault:"120"`
	RateLimitWindow   time.Duration `env:"FIAT_RATE_LIMIT_WINDOW" envDefault:"1m"`

	TxTimeout        time.Duration `env:"FIAT_TX_TIMEOUT" envDefault:"5s"`
	DispatchInterval time.Duration `env:"FIAT_DISPATCH_INTERVAL" envDefault:"500ms"`
	DispatchBatch    int           `env:"FIAT_DISPATCH_BATCH" envDefault:"100"`

	IdempotencyCacheTTL time.Duration `env:"FIAT_IDEMPOTENCY_CACHE_TTL" envDefault:"24h"`
}

// FromEnv builds a Config from environment variables.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
