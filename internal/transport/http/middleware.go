package httptransport

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/mssola/useragent"

	"fiat/internal/authtoken"
	"fiat/internal/platform/metrics"
	"fiat/internal/policy"
	"fiat/internal/ratelimit"
	"fiat/internal/transport/http/shared"
	"fiat/pkg/requestcontext"
)

type actorKey struct{}

// ContextKeyActor stores the resolved actor for handlers.
var ContextKeyActor = actorKey{}

// GetActor retrieves the authenticated actor from the context.
func GetActor(ctx context.Context) (policy.Actor, bool) {
	actor, ok := ctx.Value(ContextKeyActor).(policy.Actor)
	return actor, ok
}

// TokenValidator validates a bearer token into actor claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (*authtoken.Claims, error)
}

// Recovery converts panics into 500 responses instead of dropped connections.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.ErrorContext(r.Context(), "panic in handler",
						slog.Any("panic", rec),
						slog.String("path", r.URL.Path))
					shared.WriteFailure(w, r, http.StatusInternalServerError,
						"INTERNAL_ERROR", "internal server error", nil)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RequestID assigns each request an id, honoring one supplied by the caller.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestTime freezes one timestamp for the whole attempt so the audit entry,
// the outbox rows, and the receipt agree on when it happened.
func RequestTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientMetadata records the caller's IP, user agent, and channel for audit.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.Header.Get("X-Forwarded-For")
		if ip != "" {
			// First hop in the chain is the original client.
			if idx := strings.IndexByte(ip, ','); idx > 0 {
				ip = ip[:idx]
			}
			ip = strings.TrimSpace(ip)
		} else if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			ip = host
		} else {
			ip = r.RemoteAddr
		}

		ctx := requestcontext.WithClientMetadata(r.Context(), ip, r.UserAgent())
		channel := r.Header.Get("X-Channel")
		if channel == "" && r.UserAgent() != "" {
			// Classify unlabelled traffic from the user agent; plain API
			// clients keep the default channel.
			ua := useragent.New(r.UserAgent())
			switch {
			case ua.Bot():
				channel = "bot"
			case ua.Mozilla() != "":
				channel = "ui"
			}
		}
		if channel != "" {
			ctx = requestcontext.WithChannel(ctx, channel)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Logger emits one structured line per request.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.InfoContext(r.Context(), "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.String("request_id", requestcontext.RequestID(r.Context())),
				slog.Duration("duration", time.Since(start)))
		})
	}
}

// Timeout bounds each request's context.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireActor validates the bearer token and stores the resolved actor.
func RequireActor(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "missing bearer token",
					slog.String("request_id", requestcontext.RequestID(ctx)))
				shared.WriteFailure(w, r, http.StatusUnauthorized,
					"UNAUTHORIZED", "missing or malformed Authorization header", nil)
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "invalid bearer token",
					slog.String("request_id", requestcontext.RequestID(ctx)),
					slog.String("error", err.Error()))
				shared.WriteFailure(w, r, http.StatusUnauthorized,
					"UNAUTHORIZED", "invalid or expired token", nil)
				return
			}
			actor, err := claims.Actor()
			if err != nil {
				shared.WriteFailure(w, r, http.StatusUnauthorized,
					"UNAUTHORIZED", err.Error(), nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, ContextKeyActor, actor)))
		})
	}
}

// RateLimit throttles mutation submissions per org.
func RateLimit(limiter ratelimit.Limiter, m *metrics.Metrics, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			actor, ok := GetActor(ctx)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			result, err := limiter.Allow(ctx, actor.OrgID.String())
			if err != nil {
				// Admission control must not take the write path down with it.
				logger.WarnContext(ctx, "rate limiter unavailable, admitting request",
					slog.String("error", err.Error()))
				next.ServeHTTP(w, r)
				return
			}
			if !result.Allowed {
				if m != nil {
					m.RateLimited.Inc()
				}
				retryAfter := result.RetryAfter(time.Now())
				retryAfterMS := retryAfter.Milliseconds()
				w.Header().Set("Retry-After", strconv.FormatInt(int64(retryAfter.Seconds())+1, 10))
				shared.WriteFailure(w, r, http.StatusTooManyRequests,
					"RATE_LIMITED", "mutation rate limit exceeded for organization",
					map[string]any{"retryAfterMs": retryAfterMS})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
