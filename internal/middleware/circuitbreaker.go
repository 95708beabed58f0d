package middleware

import (
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/nostalgiatan/see/internal/config"
)

// CircuitState is the breaker's tri-state.
type CircuitState int32

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// CircuitBreaker isolates the service from cascading failures: it
// counts consecutive downstream 5xx responses and rejects requests
// while open. The state lives in one atomic word and the transition
// timestamp in another, so the request-path read never takes a lock;
// transitions race through compare-and-swap with exactly one winner.
type CircuitBreaker struct {
	state          atomic.Int32
	failures       atomic.Int64
	successes      atomic.Int64
	lastTransition atomic.Int64 // unix nanos

	failureThreshold int64
	successThreshold int64
	timeout          time.Duration

	onTrip func()
	logger *slog.Logger
	now    func() time.Time
}

// NewCircuitBreaker creates a closed breaker with the configured
// thresholds (defaults: 5 failures to open, 2 successes to close, 60s
// open window).
func NewCircuitBreaker(cfg config.BreakerConfig, logger *slog.Logger) *CircuitBreaker {
	failures := int64(cfg.FailureThreshold)
	if failures < 1 {
		failures = 5
	}
	successes := int64(cfg.SuccessThreshold)
	if successes < 1 {
		successes = 2
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	cb := &CircuitBreaker{
		failureThreshold: failures,
		successThreshold: successes,
		timeout:          timeout,
		logger:           logger.With("component", "circuit_breaker"),
		now:              time.Now,
	}
	cb.lastTransition.Store(cb.now().UnixNano())
	return cb
}

// State returns the current tri-state.
func (cb *CircuitBreaker) State() CircuitState {
	return CircuitState(cb.state.Load())
}

// OnTrip registers a hook invoked on every transition to open. Set
// before serving; used by the metrics collector.
func (cb *CircuitBreaker) OnTrip(fn func()) { cb.onTrip = fn }

// Allow reports whether a request may proceed. An open breaker whose
// window has elapsed flips to half-open as a side effect; the swap
// guarantees only one caller performs the transition, but every caller
// seeing the elapsed window passes.
func (cb *CircuitBreaker) Allow() bool {
	switch cb.State() {
	case CircuitClosed, CircuitHalfOpen:
		return true
	default:
		last := time.Unix(0, cb.lastTransition.Load())
		if cb.now().Sub(last) < cb.timeout {
			return false
		}
		if cb.state.CompareAndSwap(int32(CircuitOpen), int32(CircuitHalfOpen)) {
			cb.successes.Store(0)
			cb.lastTransition.Store(cb.now().UnixNano())
			cb.logger.Info("circuit breaker half-open")
		}
		return true
	}
}

// RecordSuccess notes a non-5xx response. Enough consecutive successes
// in half-open close the breaker; in closed it resets the failure run.
func (cb *CircuitBreaker) RecordSuccess() {
	switch cb.State() {
	case CircuitHalfOpen:
		if cb.successes.Add(1) >= cb.successThreshold {
			if cb.state.CompareAndSwap(int32(CircuitHalfOpen), int32(CircuitClosed)) {
				cb.failures.Store(0)
				cb.successes.Store(0)
				cb.lastTransition.Store(cb.now().UnixNano())
				cb.logger.Info("circuit breaker closed")
			}
		}
	case CircuitClosed:
		cb.failures.Store(0)
	}
}

// RecordFailure notes a 5xx response. Reaching the threshold while
// closed opens the breaker; any failure in half-open reopens it.
func (cb *CircuitBreaker) RecordFailure() {
	switch cb.State() {
	case CircuitClosed:
		if cb.failures.Add(1) >= cb.failureThreshold {
			if cb.state.CompareAndSwap(int32(CircuitClosed), int32(CircuitOpen)) {
				cb.trip()
			}
		}
	case CircuitHalfOpen:
		if cb.state.CompareAndSwap(int32(CircuitHalfOpen), int32(CircuitOpen)) {
			cb.trip()
		}
	}
}

func (cb *CircuitBreaker) trip() {
	cb.failures.Store(0)
	cb.successes.Store(0)
	cb.lastTransition.Store(cb.now().UnixNano())
	if cb.onTrip != nil {
		cb.onTrip()
	}
	cb.logger.Warn("circuit breaker open", "window", cb.timeout)
}

// Middleware rejects while open and classifies downstream responses:
// 5xx counts as failure, everything else as success.
func (cb *CircuitBreaker) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !cb.Allow() {
			WriteError(w, http.StatusServiceUnavailable, CodeCircuitOpen, "service temporarily unavailable")
			return
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if rec.status >= 500 {
			cb.RecordFailure()
		} else {
			cb.RecordSuccess()
		}
	})
}
