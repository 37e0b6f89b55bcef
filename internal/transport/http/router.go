package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fiat/internal/platform/metrics"
	"fiat/internal/ratelimit"
)

// RouterConfig bundles the dependencies of the public router.
type RouterConfig struct {
	Kernel    Kernel
	Validator TokenValidator
	Limiter   ratelimit.Limiter
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	Timeout   time.Duration
}

// NewRouter wires the public endpoints. Mutations and audit reads sit behind
// auth; health and metrics do not.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	handler := NewHandler(cfg.Kernel, cfg.Logger)

	r := chi.NewRouter()
	r.Use(Recovery(cfg.Logger))
	r.Use(RequestID)
	r.Use(RequestTime)
	r.Use(ClientMetadata)
	r.Use(Logger(cfg.Logger))
	r.Use(Timeout(cfg.Timeout))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(RequireActor(cfg.Validator, cfg.Logger))

		r.Group(func(r chi.Router) {
			if cfg.Limiter != nil {
				r.Use(RateLimit(cfg.Limiter, cfg.Metrics, cfg.Logger))
			}
			r.Post("/mutations", handler.handleSubmit)
		})

		r.Get("/entities/{type}/{id}/audit", handler.handleAuditTrail)
	})

	return r
}
