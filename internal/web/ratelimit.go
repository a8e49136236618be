package web

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/lesterapp/lester/internal/errors"
)

// idleLimiterTTL is how long a client's bucket survives without requests.
const idleLimiterTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedRateLimiter hands out one token bucket per client key.
type KeyedRateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*clientLimiter
	limit     rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

// NewKeyedRateLimiter allows rps requests per second per key, with bursts up to burst.
func NewKeyedRateLimiter(rps float64, burst int) *KeyedRateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &KeyedRateLimiter{
		limiters: make(map[string]*clientLimiter),
		limit:    rate.Limit(rps),
		burst:    burst,
		now:      time.Now,
	}
}

// Allow reports whether a request for key may proceed now.
func (k *KeyedRateLimiter) Allow(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	if now.Sub(k.lastSweep) > idleLimiterTTL {
		for client, cl := range k.limiters {
			if now.Sub(cl.lastSeen) > idleLimiterTTL {
				delete(k.limiters, client)
			}
		}
		k.lastSweep = now
	}

	cl, ok := k.limiters[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(k.limit, k.burst)}
		k.limiters[key] = cl
	}
	cl.lastSeen = now
	return cl.limiter.AllowN(now, 1)
}

// size returns the number of tracked clients.
func (k *KeyedRateLimiter) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.limiters)
}

// rateLimit rejects requests over the per-client budget with 429.
func rateLimit(limiter *KeyedRateLimiter, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)
			if !limiter.Allow(key) {
				log.Warn("rate limit exceeded", "ip", key, "path", r.URL.Path)
				w.Header().Set("Retry-After", "1")
				renderError(w, errors.NewRateLimited())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the client address, preferring X-Forwarded-For and
// X-Real-IP over RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
