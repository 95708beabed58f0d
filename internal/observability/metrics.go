// Package observability feeds two views of the same traffic: a private
// Prometheus registry for scraping and a cheap realtime snapshot for
// the dashboard endpoint.
package observability

import (
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RealtimeMetrics is the JSON snapshot served next to the Prometheus
// exposition. avg_response_time_ms is a cumulative average.
type RealtimeMetrics struct {
	TotalRequests       uint64  `json:"total_requests"`
	SuccessfulRequests  uint64  `json:"successful_requests"`
	FailedRequests      uint64  `json:"failed_requests"`
	AvgResponseTimeMs   float64 `json:"avg_response_time_ms"`
	ActiveConnections   uint64  `json:"active_connections"`
	RateLimited         uint64  `json:"rate_limited"`
	CircuitBreakerTrips uint64  `json:"circuit_breaker_trips"`
	IPBlocked           uint64  `json:"ip_blocked"`
	UptimeSeconds       uint64  `json:"uptime_seconds"`
}

// Collector tracks request outcomes and ingress rejections. Counters
// use atomic adds; only the running average takes a lock, and only for
// the duration of one update.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal   prometheus.Counter
	requestsSuccess prometheus.Counter
	requestsFailed  prometheus.Counter
	rateLimited     prometheus.Counter
	breakerTrips    prometheus.Counter
	ipBlocked       prometheus.Counter
	activeConns     prometheus.Gauge
	responseTime    prometheus.Histogram

	// Realtime shadows. Prometheus counters cannot be read back
	// cheaply, so the snapshot keeps its own.
	total   atomic.Uint64
	success atomic.Uint64
	failed  atomic.Uint64
	limited atomic.Uint64
	trips   atomic.Uint64
	blocked atomic.Uint64
	active  atomic.Int64

	avgMu sync.Mutex
	avgMs float64
	avgN  uint64

	started time.Time
	now     func() time.Time
	logger  *slog.Logger
}

// NewCollector creates a collector with its own registry so tests and
// the exposition endpoint see only this service's metrics.
func NewCollector(logger *slog.Logger) *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	c := &Collector{
		registry: reg,
		requestsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "see", Name: "requests_total",
			Help: "Total number of requests.",
		}),
		requestsSuccess: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "see", Name: "requests_success",
			Help: "Number of successful requests.",
		}),
		requestsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "see", Name: "requests_failed",
			Help: "Number of failed requests.",
		}),
		rateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "see", Name: "rate_limited",
			Help: "Number of rate limited requests.",
		}),
		breakerTrips: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "see", Name: "circuit_breaker_trips",
			Help: "Number of circuit breaker trips.",
		}),
		ipBlocked: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "see", Name: "ip_blocked",
			Help: "Number of requests blocked by the IP filter.",
		}),
		activeConns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "see", Name: "active_connections",
			Help: "Current active connections.",
		}),
		responseTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "see", Name: "response_time_ms",
			Help:    "Response time in milliseconds.",
			Buckets: prometheus.ExponentialBuckets(5, 2, 12),
		}),
		started: time.Now(),
		now:     time.Now,
		logger:  logger.With("component", "metrics"),
	}
	return c
}

// Handler serves the registry in Prometheus text exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordRequest notes one finished request and folds its latency into
// the cumulative average.
func (c *Collector) RecordRequest(success bool, elapsedMs float64) {
	c.requestsTotal.Inc()
	c.total.Add(1)
	if success {
		c.requestsSuccess.Inc()
		c.success.Add(1)
	} else {
		c.requestsFailed.Inc()
		c.failed.Add(1)
	}
	c.responseTime.Observe(elapsedMs)

	c.avgMu.Lock()
	c.avgN++
	c.avgMs += (elapsedMs - c.avgMs) / float64(c.avgN)
	c.avgMu.Unlock()
}

// RecordRateLimited notes one rate-limiter rejection.
func (c *Collector) RecordRateLimited() {
	c.rateLimited.Inc()
	c.limited.Add(1)
}

// RecordBreakerTrip notes one circuit-breaker transition to open.
func (c *Collector) RecordBreakerTrip() {
	c.breakerTrips.Inc()
	c.trips.Add(1)
}

// RecordIPBlocked notes one IP-filter rejection.
func (c *Collector) RecordIPBlocked() {
	c.ipBlocked.Inc()
	c.blocked.Add(1)
}

// Realtime returns the snapshot with uptime stamped at call time.
func (c *Collector) Realtime() RealtimeMetrics {
	c.avgMu.Lock()
	avg := c.avgMs
	c.avgMu.Unlock()

	active := c.active.Load()
	if active < 0 {
		active = 0
	}
	return RealtimeMetrics{
		TotalRequests:       c.total.Load(),
		SuccessfulRequests:  c.success.Load(),
		FailedRequests:      c.failed.Load(),
		AvgResponseTimeMs:   avg,
		ActiveConnections:   uint64(active),
		RateLimited:         c.limited.Load(),
		CircuitBreakerTrips: c.trips.Load(),
		IPBlocked:           c.blocked.Load(),
		UptimeSeconds:       uint64(c.now().Sub(c.started).Seconds()),
	}
}

// Reset zeroes the realtime snapshot. The Prometheus counters stay
// monotonic; scrapers handle restarts, dashboards want a clean slate.
func (c *Collector) Reset() {
	c.total.Store(0)
	c.success.Store(0)
	c.failed.Store(0)
	c.limited.Store(0)
	c.trips.Store(0)
	c.blocked.Store(0)

	c.avgMu.Lock()
	c.avgMs = 0
	c.avgN = 0
	c.avgMu.Unlock()
}

// Middleware tracks every request flowing through a listener. Success
// is any status below 400; ingress rejections additionally land in
// their dedicated counters via the middleware hooks.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		c.active.Add(1)
		c.activeConns.Inc()
		defer func() {
			c.active.Add(-1)
			c.activeConns.Dec()
		}()

		rec := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		elapsed := time.Since(start).Seconds() * 1000
		c.RecordRequest(rec.status < http.StatusBadRequest, elapsed)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}
