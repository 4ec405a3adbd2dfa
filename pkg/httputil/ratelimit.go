package httputil

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// RateLimitConfig defines per-client rate limiting
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate allowed for one client
	RequestsPerSecond float64
	// Burst is the number of requests a client may make at once
	Burst int
	// MaxClients bounds the number of tracked clients; the least recently
	// seen client is forgotten first
	MaxClients int
	// IdleTimeout forgets clients that made no request for this long
	IdleTimeout time.Duration
}

// DefaultRateLimitConfig returns default rate limit settings
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 50,
		Burst:             100,
		MaxClients:        10000,
		IdleTimeout:       10 * time.Minute,
	}
}

// RateLimiter keeps a token bucket per client key
type RateLimiter struct {
	config  RateLimitConfig
	mu      sync.Mutex
	buckets *expirable.LRU[string, *rate.Limiter]
}

// NewRateLimiter creates a rate limiter. Zero fields take their defaults.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	def := DefaultRateLimitConfig()
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = def.RequestsPerSecond
	}
	if config.Burst <= 0 {
		config.Burst = def.Burst
	}
	if config.MaxClients <= 0 {
		config.MaxClients = def.MaxClients
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = def.IdleTimeout
	}
	return &RateLimiter{
		config:  config,
		buckets: expirable.NewLRU[string, *rate.Limiter](config.MaxClients, nil, config.IdleTimeout),
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	l, ok := rl.buckets.Get(key)
	if !ok {
		l = rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.Burst)
	}
	// re-adding refreshes the idle expiry
	rl.buckets.Add(key, l)
	return l
}

// Allow reports whether a request from key may proceed now
func (rl *RateLimiter) Allow(key string) bool {
	return rl.limiter(key).Allow()
}

// Remaining returns the whole tokens currently left for key
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.Lock()
	l, ok := rl.buckets.Peek(key)
	rl.mu.Unlock()
	if !ok {
		return rl.config.Burst
	}
	return int(math.Max(0, math.Floor(l.Tokens())))
}

// Middleware rejects clients over their rate with 429 and reports the limit
// in X-RateLimit-* headers
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := ClientIP(r)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.config.Burst))

		if !rl.Allow(key) {
			retryAfter := int(math.Ceil(1 / rl.config.RequestsPerSecond))
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			WriteErrorMessage(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(rl.Remaining(key)))
		next.ServeHTTP(w, r)
	})
}

// ClientIP returns the originating client address: the first
// X-Forwarded-For entry, then X-Real-IP, then the connection's host.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
