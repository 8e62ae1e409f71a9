// Package fetch drives adapter calls: per-call timeouts, exponential backoff
// retry for transient failures, a global concurrency ceiling and per-source
// request spacing.
package fetch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"courtwatch/internal/monitor/sources"
	"courtwatch/internal/pkg/config"
	"courtwatch/internal/pkg/health"
	"courtwatch/internal/pkg/models"
)

// errNilSnapshot guards against adapters that return neither a snapshot nor
// an error; treated as a parse failure since the contract is broken.
var errNilSnapshot = errors.New("adapter returned nil snapshot without error")

// Result is the outcome of one source's fetch for one cycle.
type Result struct {
	Source   string
	Snapshot *models.Snapshot
	Err      error
	// Skipped means the source was not attempted this cycle (disabled, or
	// its availability probe failed). Skips do not touch failure counters.
	Skipped  bool
	Duration time.Duration
}

// Executor runs adapter fetches for the scheduler.
type Executor struct {
	timeout      time.Duration
	maxRetries   int
	baseDelay    time.Duration
	disableAfter int

	sem    chan struct{}
	health *health.Store

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	spacing  time.Duration
}

// NewExecutor builds an executor from config. The health store is shared
// with the web API so operators can see degraded sources.
func NewExecutor(cfg *config.FetchConfig, healthStore *health.Store) *Executor {
	return &Executor{
		timeout:      cfg.Timeout,
		maxRetries:   cfg.MaxRetries,
		baseDelay:    cfg.RetryBaseDelay,
		disableAfter: cfg.DisableAfterParseFailures,
		sem:          make(chan struct{}, cfg.MaxConcurrent),
		health:       healthStore,
		limiters:     make(map[string]*rate.Limiter),
		spacing:      cfg.MinRequestSpacing,
	}
}

// limiter returns the per-source politeness limiter, creating it on first
// use with a full token so the first request is not delayed.
func (e *Executor) limiter(source string) *rate.Limiter {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.limiters[source]
	if !ok {
		l = rate.NewLimiter(rate.Every(e.spacing), 1)
		e.limiters[source] = l
	}
	return l
}

// FetchAll runs every source concurrently (bounded by the configured
// ceiling) and returns once all of them have settled. A failed source yields
// a Result with Err set; the cycle proceeds with whatever succeeded.
func (e *Executor) FetchAll(ctx context.Context, srcs []sources.Source) []Result {
	results := make([]Result, len(srcs))
	var wg sync.WaitGroup

	for i, src := range srcs {
		wg.Add(1)
		go func(i int, src sources.Source) {
			defer wg.Done()
			results[i] = e.fetchOne(ctx, src)
		}(i, src)
	}

	wg.Wait()
	return results
}

func (e *Executor) fetchOne(ctx context.Context, src sources.Source) Result {
	name := src.Name()

	if e.health.IsDisabled(name) {
		slog.Debug("Skipping disabled source", "source", name)
		return Result{Source: name, Skipped: true}
	}

	// Concurrency ceiling across all simultaneous adapter calls.
	select {
	case e.sem <- struct{}{}:
		defer func() { <-e.sem }()
	case <-ctx.Done():
		return Result{Source: name, Err: sources.Transient(name, ctx.Err())}
	}

	// Per-source politeness spacing.
	if err := e.limiter(name).Wait(ctx); err != nil {
		return Result{Source: name, Err: sources.Transient(name, err)}
	}

	if probe, ok := src.(sources.AvailabilityChecker); ok {
		probeCtx, cancel := context.WithTimeout(ctx, e.timeout)
		available := probe.Available(probeCtx)
		cancel()
		if !available {
			slog.Warn("Source unavailable, skipping this cycle", "source", name)
			return Result{Source: name, Skipped: true}
		}
	}

	start := time.Now()
	snap, err := e.fetchWithRetry(ctx, src)
	dur := time.Since(start)

	if err != nil {
		return Result{Source: name, Err: err, Duration: dur}
	}
	e.health.RecordSuccess(name, len(snap.Matches), dur)
	return Result{Source: name, Snapshot: snap, Duration: dur}
}

// fetchWithRetry retries transient failures with exponential backoff
// (baseDelay * 2^attempt). Parse failures return immediately: the source
// format has changed and retrying cannot help.
func (e *Executor) fetchWithRetry(ctx context.Context, src sources.Source) (*models.Snapshot, error) {
	name := src.Name()
	attempts := e.maxRetries + 1
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		// The call context deliberately does not inherit ctx: once a fetch is
		// in flight, its own timeout is the only hard cancellation point. A
		// shutdown mid-fetch must not manufacture transient failures.
		callCtx, cancel := context.WithTimeout(context.Background(), e.timeout)
		snap, err := src.FetchSnapshot(callCtx)
		cancel()

		if err == nil {
			if snap == nil {
				err = sources.ParseFailure(name, errNilSnapshot)
			} else {
				return snap, nil
			}
		}

		if sources.IsParseFailure(err) {
			disabled := e.health.RecordParseFailure(name, err, e.disableAfter)
			slog.Error("Source parse failure", "source", name, "error", err, "disabled", disabled)
			return nil, err
		}

		lastErr = err
		e.health.RecordTransientFailure(name, err)
		slog.Warn("Source fetch failed",
			"source", name, "attempt", attempt+1, "max_attempts", attempts, "error", err)

		if attempt < attempts-1 {
			delay := e.baseDelay * (1 << attempt)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, sources.Transient(name, ctx.Err())
			}
		}
	}

	return nil, lastErr
}
