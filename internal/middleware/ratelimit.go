package middleware

import (
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/nostalgiatan/see/internal/config"
)

// RateLimiter applies a global token bucket first, then a per-IP bucket
// at a tenth of the global rate (floors: 1 req/s, burst 2). Requests
// without a resolvable client IP consume from the global bucket only.
// Per-IP buckets live for the process lifetime.
type RateLimiter struct {
	global *rate.Limiter

	mu    sync.Mutex
	perIP map[string]*rate.Limiter

	ipRate  rate.Limit
	ipBurst int

	onLimited func()
	logger    *slog.Logger
}

// NewRateLimiter creates the limiter (defaults: 100 req/s, burst 200).
func NewRateLimiter(cfg config.RateLimitConfig, logger *slog.Logger) *RateLimiter {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 100
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 200
	}
	ipRate := rps / 10
	if ipRate < 1 {
		ipRate = 1
	}
	ipBurst := burst / 10
	if ipBurst < 2 {
		ipBurst = 2
	}
	return &RateLimiter{
		global:  rate.NewLimiter(rate.Limit(rps), burst),
		perIP:   make(map[string]*rate.Limiter),
		ipRate:  rate.Limit(ipRate),
		ipBurst: ipBurst,
		logger:  logger.With("component", "rate_limit"),
	}
}

func (rl *RateLimiter) limiterFor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	lim := rl.perIP[ip]
	if lim == nil {
		lim = rate.NewLimiter(rl.ipRate, rl.ipBurst)
		rl.perIP[ip] = lim
	}
	return lim
}

// AllowRequest consumes one token for ip; "" means anonymous and only
// the global bucket applies.
func (rl *RateLimiter) AllowRequest(ip string) bool {
	if !rl.global.Allow() {
		return false
	}
	if ip == "" {
		return true
	}
	return rl.limiterFor(ip).Allow()
}

// TrackedIPs returns how many per-IP buckets exist.
func (rl *RateLimiter) TrackedIPs() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.perIP)
}

// OnLimited registers a hook invoked on every rejection. Set before
// serving; used by the metrics collector.
func (rl *RateLimiter) OnLimited(fn func()) { rl.onLimited = fn }

// Middleware rejects over-limit requests with 429 and Retry-After: 60.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)
		if !rl.AllowRequest(ip) {
			if rl.onLimited != nil {
				rl.onLimited()
			}
			rl.logger.Debug("request rate limited", "ip", ip)
			w.Header().Set("Retry-After", "60")
			WriteError(w, http.StatusTooManyRequests, CodeRateLimited, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
