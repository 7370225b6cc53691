package server

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultRateLimit is the default sustained requests per second per client IP.
	DefaultRateLimit = 10

	// DefaultRateLimitBurst is the default burst size per client IP.
	DefaultRateLimitBurst = 20

	defaultLimiterCleanup = 5 * time.Minute
	defaultLimiterIdle    = 10 * time.Minute
)

// RateLimiter applies a token bucket per client IP address.
type RateLimiter struct {
	mu         sync.Mutex
	limiters   map[string]*clientLimiter
	rate       rate.Limit
	burst      int
	trustProxy bool
	idle       time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a rate limiter allowing perSecond requests per
// second with the given burst for every client IP. trustProxy makes the
// limiter key on X-Forwarded-For / X-Real-IP; only enable it behind a
// trusted proxy. Call Stop to release the cleanup goroutine.
func NewRateLimiter(perSecond float64, burst int, trustProxy bool) *RateLimiter {
	rl := &RateLimiter{
		limiters:   make(map[string]*clientLimiter),
		rate:       rate.Limit(perSecond),
		burst:      burst,
		trustProxy: trustProxy,
		idle:       defaultLimiterIdle,
		stop:       make(chan struct{}),
	}

	go rl.cleanupLoop(defaultLimiterCleanup)

	return rl
}

// Allow reports whether a request from ip may proceed.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	cl, ok := rl.limiters[ip]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[ip] = cl
	}
	cl.lastSeen = time.Now()
	rl.mu.Unlock()

	return cl.limiter.Allow()
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.evictIdle(now)
		}
	}
}

// evictIdle drops limiters not used since now minus the idle period.
func (rl *RateLimiter) evictIdle(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, cl := range rl.limiters {
		if now.Sub(cl.lastSeen) > rl.idle {
			delete(rl.limiters, ip)
		}
	}
}

// Middleware rejects requests over the limit with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	if rl == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := getClientIP(r, rl.trustProxy)
		if !rl.Allow(ip) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":             "rate_limit_exceeded",
				"error_description": "Rate limit exceeded. Please try again later",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// getClientIP extracts the client IP address from the request.
// Proxy headers are only consulted when trustProxy is set.
func getClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
