package fetch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courtwatch/internal/monitor/sources"
	"courtwatch/internal/pkg/config"
	"courtwatch/internal/pkg/health"
	"courtwatch/internal/pkg/models"
)

type fakeSource struct {
	name      string
	mu        sync.Mutex
	calls     int
	failUntil int // fail the first N calls
	failWith  func(name string) error
	delay     time.Duration
	available bool
	hasProbe  bool
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) FetchSnapshot(ctx context.Context) (*models.Snapshot, error) {
	f.mu.Lock()
	f.calls++
	calls := f.calls
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, sources.Transient(f.name, ctx.Err())
		}
	}
	if calls <= f.failUntil {
		return nil, f.failWith(f.name)
	}
	return &models.Snapshot{
		Source:    f.name,
		FetchedAt: time.Now(),
		Matches:   []models.MatchRecord{{ID: "m1", Source: f.name}},
	}, nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type probedSource struct {
	fakeSource
}

func (p *probedSource) Available(ctx context.Context) bool { return p.available }

func testConfig() *config.FetchConfig {
	return &config.FetchConfig{
		Timeout:                   time.Second,
		MaxRetries:                2,
		RetryBaseDelay:            time.Millisecond,
		MaxConcurrent:             2,
		MinRequestSpacing:         time.Millisecond,
		DisableAfterParseFailures: 2,
	}
}

func transientErr(name string) error {
	return sources.Transient(name, errors.New("connection reset"))
}

func parseErr(name string) error {
	return sources.ParseFailure(name, errors.New("selector matched nothing"))
}

func TestFetchAll_RetriesTransientThenSucceeds(t *testing.T) {
	src := &fakeSource{name: "sofascore", failUntil: 2, failWith: transientErr}
	e := NewExecutor(testConfig(), health.NewStore())

	results := e.FetchAll(context.Background(), []sources.Source{src})
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, 3, src.callCount(), "two failures then a success")
	assert.Len(t, results[0].Snapshot.Matches, 1)
}

func TestFetchAll_TransientExhaustionDoesNotCrashCycle(t *testing.T) {
	// Max 2 retries, source fails 3 times in a row: the cycle proceeds with
	// the remaining source and reports a per-source error, no panic.
	bad := &fakeSource{name: "flashscore", failUntil: 99, failWith: transientErr}
	good := &fakeSource{name: "sofascore"}
	store := health.NewStore()
	e := NewExecutor(testConfig(), store)

	results := e.FetchAll(context.Background(), []sources.Source{bad, good})
	require.Len(t, results, 2)

	assert.Error(t, results[0].Err)
	assert.True(t, sources.IsTransient(results[0].Err))
	assert.Equal(t, 3, bad.callCount(), "maxRetries=2 means 3 attempts")
	assert.NoError(t, results[1].Err)

	assert.False(t, store.IsDisabled("flashscore"), "transient failures never disable")
}

func TestFetchAll_ParseFailureNotRetried(t *testing.T) {
	src := &fakeSource{name: "flashscore", failUntil: 99, failWith: parseErr}
	store := health.NewStore()
	e := NewExecutor(testConfig(), store)

	results := e.FetchAll(context.Background(), []sources.Source{src})
	require.Error(t, results[0].Err)
	assert.True(t, sources.IsParseFailure(results[0].Err))
	assert.Equal(t, 1, src.callCount(), "parse failures must not be retried")
}

func TestFetchAll_SourceDisabledAfterRepeatedParseFailures(t *testing.T) {
	src := &fakeSource{name: "flashscore", failUntil: 99, failWith: parseErr}
	store := health.NewStore()
	e := NewExecutor(testConfig(), store) // disable after 2

	e.FetchAll(context.Background(), []sources.Source{src})
	assert.False(t, store.IsDisabled("flashscore"))

	e.FetchAll(context.Background(), []sources.Source{src})
	assert.True(t, store.IsDisabled("flashscore"))

	// A disabled source is skipped, not fetched.
	results := e.FetchAll(context.Background(), []sources.Source{src})
	assert.True(t, results[0].Skipped)
	assert.Equal(t, 2, src.callCount())
}

func TestFetchAll_ConcurrencyCeiling(t *testing.T) {
	var current, peak int64
	mkSource := func(name string) sources.Source {
		return &trackedSource{name: name, current: &current, peak: &peak}
	}

	cfg := testConfig()
	cfg.MaxConcurrent = 2
	e := NewExecutor(cfg, health.NewStore())

	srcs := []sources.Source{mkSource("a"), mkSource("b"), mkSource("c"), mkSource("d")}
	e.FetchAll(context.Background(), srcs)

	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(2),
		"concurrent fetches exceeded the ceiling")
}

type trackedSource struct {
	name    string
	current *int64
	peak    *int64
}

func (s *trackedSource) Name() string { return s.name }

func (s *trackedSource) FetchSnapshot(ctx context.Context) (*models.Snapshot, error) {
	n := atomic.AddInt64(s.current, 1)
	for {
		p := atomic.LoadInt64(s.peak)
		if n <= p || atomic.CompareAndSwapInt64(s.peak, p, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	atomic.AddInt64(s.current, -1)
	return &models.Snapshot{Source: s.name, FetchedAt: time.Now()}, nil
}

func TestFetchAll_UnavailableSourceSkipped(t *testing.T) {
	src := &probedSource{fakeSource{name: "flashscore", hasProbe: true, available: false}}
	store := health.NewStore()
	e := NewExecutor(testConfig(), store)

	results := e.FetchAll(context.Background(), []sources.Source{src})
	assert.True(t, results[0].Skipped)
	assert.Equal(t, 0, src.callCount())
	assert.Empty(t, store.Degraded(), "an availability skip is not a failure")
}

func TestFetchAll_InFlightFetchSettlesAfterCancel(t *testing.T) {
	// Cancelling the cycle context mid-fetch must not abort the call: only
	// the per-call timeout may. The source observes its own context and
	// reports whether cancellation reached it.
	src := &ctxWatchSource{name: "flashscore", delay: 60 * time.Millisecond}
	store := health.NewStore()
	e := NewExecutor(testConfig(), store)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(15 * time.Millisecond)
		cancel()
	}()

	results := e.FetchAll(ctx, []sources.Source{src})
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err, "the in-flight fetch must settle normally")
	require.NotNil(t, results[0].Snapshot)
	assert.False(t, src.sawCancel(), "cycle cancellation leaked into the fetch context")
	assert.Empty(t, store.Degraded(), "shutdown must not count as a source failure")
}

// ctxWatchSource sleeps, then records whether its fetch context was
// cancelled while it was working.
type ctxWatchSource struct {
	name      string
	delay     time.Duration
	cancelled atomic.Bool
}

func (s *ctxWatchSource) Name() string { return s.name }

func (s *ctxWatchSource) FetchSnapshot(ctx context.Context) (*models.Snapshot, error) {
	select {
	case <-ctx.Done():
		s.cancelled.Store(true)
		return nil, sources.Transient(s.name, ctx.Err())
	case <-time.After(s.delay):
	}
	return &models.Snapshot{Source: s.name, FetchedAt: time.Now()}, nil
}

func (s *ctxWatchSource) sawCancel() bool { return s.cancelled.Load() }

func TestFetchAll_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &fakeSource{name: "sofascore", delay: 100 * time.Millisecond}
	e := NewExecutor(testConfig(), health.NewStore())

	results := e.FetchAll(ctx, []sources.Source{src})
	require.Error(t, results[0].Err)
	assert.True(t, sources.IsTransient(results[0].Err))
}
