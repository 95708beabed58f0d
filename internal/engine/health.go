package engine

import (
	"log/slog"
	"sync"
	"time"
)

// zeroResultBase is the first back-off step for engines that answer
// successfully but return nothing. Each further empty answer multiplies
// the step by 5, capped at 5^5.
const zeroResultBase = 5 * time.Minute

// EngineState is the mutable health row for one engine. All fields are
// guarded by the row's own mutex so two engines never contend.
type EngineState struct {
	mu sync.Mutex

	Name string

	// Enabled is the operator toggle. A disabled engine never dispatches.
	Enabled bool

	// TemporarilyDisabled marks an automatic back-off window ending at
	// DisabledUntil. The window expires lazily on the next availability
	// check.
	TemporarilyDisabled bool
	DisabledUntil       time.Time

	ConsecutiveFailures int
	ZeroResultStreak    int

	SuccessCount  uint64
	FailureCount  uint64
	AvgResponseMs float64

	LastError string
	LastUsed  time.Time
}

// HealthSnapshot is a copyable view of one engine's state for listings.
type HealthSnapshot struct {
	Name                string    `json:"name"`
	Enabled             bool      `json:"enabled"`
	Available           bool      `json:"available"`
	TemporarilyDisabled bool      `json:"temporarily_disabled"`
	DisabledUntil       time.Time `json:"disabled_until,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	SuccessCount        uint64    `json:"success_count"`
	FailureCount        uint64    `json:"failure_count"`
	AvgResponseMs       float64   `json:"avg_response_ms"`
	LastError           string    `json:"last_error,omitempty"`
	LastUsed            time.Time `json:"last_used,omitempty"`
}

// HealthStore tracks per-engine health and applies the failure and
// zero-result back-off policies.
type HealthStore struct {
	mu     sync.RWMutex
	states map[string]*EngineState

	failureThreshold int
	disableDuration  time.Duration
	logger           *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewHealthStore creates a store with the given failure policy.
// threshold is the consecutive-failure count that triggers a disable
// window of disableFor.
func NewHealthStore(threshold int, disableFor time.Duration, logger *slog.Logger) *HealthStore {
	if threshold < 1 {
		threshold = 3
	}
	if disableFor <= 0 {
		disableFor = 300 * time.Second
	}
	return &HealthStore{
		states:           make(map[string]*EngineState),
		failureThreshold: threshold,
		disableDuration:  disableFor,
		logger:           logger.With("component", "engine_health"),
		now:              time.Now,
	}
}

// Track registers an engine row. Tracking twice is a no-op.
func (hs *HealthStore) Track(name string) {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	if _, ok := hs.states[name]; !ok {
		hs.states[name] = &EngineState{Name: name, Enabled: true}
	}
}

func (hs *HealthStore) state(name string) *EngineState {
	hs.mu.RLock()
	st := hs.states[name]
	hs.mu.RUnlock()
	if st != nil {
		return st
	}
	hs.mu.Lock()
	defer hs.mu.Unlock()
	if st = hs.states[name]; st == nil {
		st = &EngineState{Name: name, Enabled: true}
		hs.states[name] = st
	}
	return st
}

// IsAvailable reports whether an engine may dispatch right now. An
// expired back-off window is cleared as a side effect.
func (hs *HealthStore) IsAvailable(name string) bool {
	st := hs.state(name)
	st.mu.Lock()
	defer st.mu.Unlock()

	if !st.Enabled {
		return false
	}
	if st.TemporarilyDisabled {
		if hs.now().Before(st.DisabledUntil) {
			return false
		}
		st.TemporarilyDisabled = false
		st.DisabledUntil = time.Time{}
	}
	return true
}

// RecordSuccess resets failure counters, lifts any back-off, and folds
// the elapsed time into the running average.
func (hs *HealthStore) RecordSuccess(name string, elapsed time.Duration) {
	st := hs.state(name)
	st.mu.Lock()
	defer st.mu.Unlock()

	st.SuccessCount++
	st.ConsecutiveFailures = 0
	st.ZeroResultStreak = 0
	st.TemporarilyDisabled = false
	st.DisabledUntil = time.Time{}
	st.LastError = ""
	st.LastUsed = hs.now()

	x := float64(elapsed.Milliseconds())
	n := float64(st.SuccessCount)
	st.AvgResponseMs = (st.AvgResponseMs*(n-1) + x) / n
}

// RecordFailure counts a hard failure. Reaching the threshold opens a
// fixed disable window.
func (hs *HealthStore) RecordFailure(name string, err error) {
	st := hs.state(name)
	st.mu.Lock()
	defer st.mu.Unlock()

	st.FailureCount++
	st.ConsecutiveFailures++
	if err != nil {
		st.LastError = err.Error()
	}
	st.LastUsed = hs.now()

	if st.ConsecutiveFailures >= hs.failureThreshold {
		st.TemporarilyDisabled = true
		st.DisabledUntil = hs.now().Add(hs.disableDuration)
		hs.logger.Warn("engine disabled after repeated failures",
			"engine", name,
			"failures", st.ConsecutiveFailures,
			"until", st.DisabledUntil,
		)
	}
}

// RecordZeroResults counts a soft failure: the engine answered but
// produced nothing, which usually means it is rate-limiting or serving a
// degraded page. The back-off grows exponentially with the streak.
func (hs *HealthStore) RecordZeroResults(name string) {
	st := hs.state(name)
	st.mu.Lock()
	defer st.mu.Unlock()

	st.ZeroResultStreak++
	st.LastUsed = hs.now()

	exp := st.ZeroResultStreak - 1
	if exp > 5 {
		exp = 5
	}
	backoff := zeroResultBase
	for i := 0; i < exp; i++ {
		backoff *= 5
	}

	st.TemporarilyDisabled = true
	st.DisabledUntil = hs.now().Add(backoff)
	hs.logger.Info("engine backing off after empty results",
		"engine", name,
		"streak", st.ZeroResultStreak,
		"backoff", backoff,
	)
}

// SetEnabled is the operator toggle. Disabling also clears any automatic
// back-off so a re-enable starts clean.
func (hs *HealthStore) SetEnabled(name string, enabled bool) {
	st := hs.state(name)
	st.mu.Lock()
	defer st.mu.Unlock()

	st.Enabled = enabled
	if !enabled {
		st.TemporarilyDisabled = false
		st.DisabledUntil = time.Time{}
		st.ConsecutiveFailures = 0
		st.ZeroResultStreak = 0
	}
}

// Snapshot returns a copy of one engine's health row.
func (hs *HealthStore) Snapshot(name string) HealthSnapshot {
	st := hs.state(name)
	st.mu.Lock()
	defer st.mu.Unlock()

	available := st.Enabled && !(st.TemporarilyDisabled && hs.now().Before(st.DisabledUntil))
	return HealthSnapshot{
		Name:                st.Name,
		Enabled:             st.Enabled,
		Available:           available,
		TemporarilyDisabled: st.TemporarilyDisabled,
		DisabledUntil:       st.DisabledUntil,
		ConsecutiveFailures: st.ConsecutiveFailures,
		SuccessCount:        st.SuccessCount,
		FailureCount:        st.FailureCount,
		AvgResponseMs:       st.AvgResponseMs,
		LastError:           st.LastError,
		LastUsed:            st.LastUsed,
	}
}

// SnapshotAll returns health rows for every tracked engine.
func (hs *HealthStore) SnapshotAll() map[string]HealthSnapshot {
	hs.mu.RLock()
	names := make([]string, 0, len(hs.states))
	for name := range hs.states {
		names = append(names, name)
	}
	hs.mu.RUnlock()

	out := make(map[string]HealthSnapshot, len(names))
	for _, name := range names {
		out[name] = hs.Snapshot(name)
	}
	return out
}
