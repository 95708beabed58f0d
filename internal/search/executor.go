package search

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/nostalgiatan/see/internal/config"
	"github.com/nostalgiatan/see/internal/engine"
	"github.com/nostalgiatan/see/internal/types"
)

// Sink receives per-engine results in completion order during a
// streaming search. Calls are serialized; implementations need no lock.
type Sink func(*types.SearchResult)

// Executor fans one query out to engine adapters with bounded
// concurrency, applies per-task deadlines, and feeds the health store.
// The concurrency bound is shared across calls so parallel searches
// cannot multiply upstream pressure.
type Executor struct {
	registry       *engine.Registry
	stats          *Stats
	defaultTimeout time.Duration
	sem            *semaphore.Weighted // nil means unbounded
	logger         *slog.Logger
}

// NewExecutor creates an executor over the registry's catalog.
func NewExecutor(registry *engine.Registry, cfg config.SearchConfig, stats *Stats, logger *slog.Logger) *Executor {
	timeout := cfg.DefaultTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	var sem *semaphore.Weighted
	if cfg.MaxConcurrentEngines > 0 {
		sem = semaphore.NewWeighted(int64(cfg.MaxConcurrentEngines))
	}
	return &Executor{
		registry:       registry,
		stats:          stats,
		defaultTimeout: timeout,
		sem:            sem,
		logger:         logger.With("component", "executor"),
	}
}

// taskTimeout is the deadline for one engine task: the smallest of the
// request timeout, the engine's own timeout, and the configured
// default. Zero values mean "no opinion".
func (e *Executor) taskTimeout(requestTimeout, engineTimeout time.Duration) time.Duration {
	limit := e.defaultTimeout
	if requestTimeout > 0 && requestTimeout < limit {
		limit = requestTimeout
	}
	if engineTimeout > 0 && engineTimeout < limit {
		limit = engineTimeout
	}
	return limit
}

// Dispatch runs the query on every adapter and returns the successful
// results in completion order, empty ones included. Failures are
// recorded against engine health and the stats counters, then dropped
// from the result set. When sink is non-nil it is called for each
// non-empty result as it arrives.
func (e *Executor) Dispatch(ctx context.Context, adapters []engine.Adapter, q *types.Query, requestTimeout time.Duration, sink Sink) []*types.SearchResult {
	if len(adapters) == 0 {
		return nil
	}

	health := e.registry.Health()
	e.logger.Debug("dispatching query", "query", q.Text, "engines", len(adapters))

	var (
		mu      sync.Mutex
		results = make([]*types.SearchResult, 0, len(adapters))
		g       errgroup.Group
	)

	for _, a := range adapters {
		g.Go(func() error {
			if e.sem != nil {
				if err := e.sem.Acquire(ctx, 1); err != nil {
					return nil // cancelled while queued
				}
				defer e.sem.Release(1)
			}

			info := a.Info()
			timeout := e.taskTimeout(requestTimeout, info.Timeout)
			taskCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := time.Now()
			result, err := engine.Run(taskCtx, a, q)
			elapsed := time.Since(start)

			if err != nil {
				e.stats.RecordEngineFailure()
				if errors.Is(err, types.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
					e.stats.RecordTimeout()
				}
				// A failure caused by the caller abandoning the search
				// says nothing about the engine's health.
				if ctx.Err() == nil {
					health.RecordFailure(info.Name, err)
				}
				e.logger.Warn("engine search failed",
					"engine", info.Name,
					"elapsed", elapsed,
					"error", err,
				)
				return nil
			}

			if result.IsEmpty() {
				health.RecordZeroResults(info.Name)
			} else {
				health.RecordSuccess(info.Name, elapsed)
			}
			e.logger.Debug("engine answered",
				"engine", info.Name,
				"items", len(result.Items),
				"elapsed", elapsed,
			)

			mu.Lock()
			results = append(results, result)
			if sink != nil && !result.IsEmpty() {
				sink(result)
			}
			mu.Unlock()
			return nil
		})
	}

	// Tasks never propagate errors; failures are recorded and dropped.
	_ = g.Wait()
	return results
}
