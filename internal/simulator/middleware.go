package simulator

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"skctl/internal/auth"
)

// tokenKey is the context key for the caller's token fingerprint.
type tokenKey struct{}

// TokenFromContext returns the fingerprint of the caller's token.
func TokenFromContext(ctx context.Context) (string, bool) {
	fp, ok := ctx.Value(tokenKey{}).(string)
	return fp, ok
}

// requireToken rejects requests without an accepted bearer token.
func (b *Backend) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			httpError(w, "Missing authorization header", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			httpError(w, "Invalid authorization header", http.StatusUnauthorized)
			return
		}

		token := parts[1]
		if len(b.tokens) > 0 {
			if _, ok := b.tokens[auth.HashToken(token)]; !ok {
				httpError(w, "Invalid authorization token", http.StatusUnauthorized)
				return
			}
		}

		ctx := context.WithValue(r.Context(), tokenKey{}, auth.Fingerprint(token))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type cachedLimiter struct {
	limiter   *rate.Limiter
	expiresAt time.Time
}

// rateLimiter keeps one limiter per token. Idle limiters expire after ttl.
type rateLimiter struct {
	limit    rate.Limit
	burst    int
	ttl      time.Duration
	limiters sync.Map // fingerprint -> *cachedLimiter
}

func (rl *rateLimiter) get(fp string) *rate.Limiter {
	if v, ok := rl.limiters.Load(fp); ok {
		cached := v.(*cachedLimiter)
		if time.Now().Before(cached.expiresAt) {
			return cached.limiter
		}
	}
	limiter := rate.NewLimiter(rl.limit, rl.burst)
	rl.limiters.Store(fp, &cachedLimiter{
		limiter:   limiter,
		expiresAt: time.Now().Add(rl.ttl),
	})
	return limiter
}

// Middleware must run after requireToken.
func (rl *rateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.limit == rate.Inf {
			next.ServeHTTP(w, r)
			return
		}
		fp, ok := TokenFromContext(r.Context())
		if !ok {
			httpError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if !rl.get(fp).Allow() {
			w.Header().Set("Retry-After", "1")
			httpError(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// traced starts a server span named after the route, continuing the
// caller's trace when the request carries one.
func traced(route string, next http.Handler) http.Handler {
	tracer := otel.Tracer("skctl/simulator")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := tracer.Start(ctx, route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("http.route", route)),
		)
		defer span.End()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
