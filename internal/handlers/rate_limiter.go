package handlers

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/hanko-field/namegen/internal/platform/httpx"
	"github.com/hanko-field/namegen/internal/platform/requestctx"
)

const (
	rateLimitMessage = "Too many requests, please try again later"
	// maxRateLimitKeys bounds the store; new clients are refused once it is
	// full until expired windows are pruned.
	maxRateLimitKeys = 100_000
	maxPruneInterval = time.Minute
)

type rateLimiter interface {
	Allow(key string) rateDecision
}

type rateDecision struct {
	allowed   bool
	limit     int
	remaining int
	reset     time.Time
}

// simpleRateLimiter is a fixed-window counter keyed by client identity.
type simpleRateLimiter struct {
	limit    int
	window   time.Duration
	clock    func() time.Time
	maxKeys  int
	interval time.Duration

	mu        sync.Mutex
	store     map[string]rateEntry
	nextPrune time.Time
}

type rateEntry struct {
	count int
	reset time.Time
}

func newSimpleRateLimiter(limit int, window time.Duration, clock func() time.Time) rateLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &simpleRateLimiter{
		limit:    limit,
		window:   window,
		clock:    clock,
		maxKeys:  maxRateLimitKeys,
		interval: min(window, maxPruneInterval),
		store:    make(map[string]rateEntry),
	}
}

func (l *simpleRateLimiter) Allow(key string) rateDecision {
	key = strings.TrimSpace(key)
	if key == "" {
		key = "anonymous"
	}
	now := l.clock()
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.store[key]
	if !ok || !now.Before(entry.reset) {
		if !now.Before(l.nextPrune) {
			l.pruneExpiredLocked(now)
			l.nextPrune = now.Add(l.interval)
		}
		if !ok && len(l.store) >= l.maxKeys {
			return rateDecision{limit: l.limit, reset: l.nextPrune}
		}
		entry = rateEntry{count: 1, reset: now.Add(l.window)}
		l.store[key] = entry
		return rateDecision{allowed: true, limit: l.limit, remaining: l.limit - 1, reset: entry.reset}
	}

	if entry.count >= l.limit {
		return rateDecision{limit: l.limit, reset: entry.reset}
	}
	entry.count++
	l.store[key] = entry
	return rateDecision{allowed: true, limit: l.limit, remaining: l.limit - entry.count, reset: entry.reset}
}

func (l *simpleRateLimiter) pruneExpiredLocked(now time.Time) {
	for key, entry := range l.store {
		if !now.Before(entry.reset) {
			delete(l.store, key)
		}
	}
}

// rateLimitMiddleware applies limiter per client IP and advertises the quota
// through the draft-standard RateLimit-* headers.
func rateLimitMiddleware(limiter rateLimiter, clock func() time.Time, rejected metric.Int64Counter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			decision := limiter.Allow(requestctx.ClientIP(ctx))

			resetIn := int(math.Ceil(decision.reset.Sub(clock()).Seconds()))
			if resetIn < 0 {
				resetIn = 0
			}
			h := w.Header()
			h.Set("RateLimit-Limit", strconv.Itoa(decision.limit))
			h.Set("RateLimit-Remaining", strconv.Itoa(decision.remaining))
			h.Set("RateLimit-Reset", strconv.Itoa(resetIn))

			if !decision.allowed {
				h.Set("Retry-After", strconv.Itoa(resetIn))
				recordRejection(ctx, rejected)
				requestctx.Logger(ctx).Info("rate limit exceeded")
				httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeRateLimitExceeded, rateLimitMessage, http.StatusTooManyRequests))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func recordRejection(ctx context.Context, counter metric.Int64Counter) {
	if counter != nil {
		counter.Add(ctx, 1)
	}
}
