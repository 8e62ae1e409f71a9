// Package monitor drives polling cycles: fetch all sources, classify the
// results, reconcile them into the canonical match set and dispatch change
// events to subscribers.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"courtwatch/internal/monitor/classify"
	"courtwatch/internal/monitor/fetch"
	"courtwatch/internal/monitor/reconcile"
	"courtwatch/internal/monitor/sources"
	"courtwatch/internal/pkg/config"
	"courtwatch/internal/pkg/health"
	"courtwatch/internal/pkg/models"
)

// Subscriber receives the cycle results after reconciliation completes. The
// canonical slice is a copy; subscribers may keep it. Dispatch happens on
// the scheduler timeline, so implementations must return promptly and do
// slow work (network sends, inserts) on their own goroutines.
type Subscriber interface {
	Name() string
	OnCycleComplete(canonical []models.MatchRecord, events []models.ChangeEvent)
}

// CycleStats summarizes the most recent completed cycle.
type CycleStats struct {
	Number        int64         `json:"number"`
	Duration      time.Duration `json:"duration_ns"`
	SourcesOK     int           `json:"sources_ok"`
	SourcesFailed int           `json:"sources_failed"`
	SourcesSkip   int           `json:"sources_skipped"`
	Matches       int           `json:"matches"`
	Events        int           `json:"events"`
	CompletedAt   time.Time     `json:"completed_at"`
}

// Monitor owns the cycle timeline. Cycles are strictly sequential: a new
// cycle never starts before the previous one, including its dispatch, has
// finished.
type Monitor struct {
	interval time.Duration
	srcs     []sources.Source
	executor *fetch.Executor
	rules    classify.Rules
	engine   *reconcile.Engine
	health   *health.Store

	subsMu sync.Mutex
	subs   []Subscriber

	statsMu sync.RWMutex
	stats   CycleStats
}

// New wires a monitor from its collaborators.
func New(cfg *config.Config, srcs []sources.Source, executor *fetch.Executor, engine *reconcile.Engine, healthStore *health.Store) *Monitor {
	return &Monitor{
		interval: cfg.Monitor.Interval,
		srcs:     srcs,
		executor: executor,
		rules:    classify.RulesFromConfig(&cfg.Classify),
		engine:   engine,
		health:   healthStore,
	}
}

// Subscribe registers a cycle subscriber. Safe to call while running;
// takes effect from the next cycle.
func (m *Monitor) Subscribe(s Subscriber) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	m.subs = append(m.subs, s)
	slog.Info("Subscriber registered", "subscriber", s.Name())
}

// CanonicalMatches returns a copy of the current canonical match set.
func (m *Monitor) CanonicalMatches() []models.MatchRecord {
	return m.engine.Snapshot()
}

// LastCycle returns stats for the most recent completed cycle.
func (m *Monitor) LastCycle() CycleStats {
	m.statsMu.RLock()
	defer m.statsMu.RUnlock()
	return m.stats
}

// RunOnce executes a single polling cycle and returns the canonical set and
// the cycle's change events. Per-source failures are reflected in health
// counters, not returned: a cycle proceeds with whatever sources succeeded.
func (m *Monitor) RunOnce(ctx context.Context) ([]models.MatchRecord, []models.ChangeEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	view, events := m.runCycle(ctx)
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return view, events, nil
}

// Run polls continuously until the context is cancelled. The first cycle
// starts immediately. If a cycle overruns the interval, the next trigger
// fires as soon as the cycle (and its dispatch) completes; triggers are
// never queued more than one deep. On stop the canonical set is cleared and
// adapter resources released.
func (m *Monitor) Run(ctx context.Context) error {
	slog.Info("Monitor started", "interval", m.interval, "sources", len(m.srcs))

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			m.shutdown()
			return err
		}
		m.runCycle(ctx)

		select {
		case <-ctx.Done():
			m.shutdown()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (m *Monitor) shutdown() {
	m.engine.Reset()
	for _, src := range m.srcs {
		if c, ok := src.(sources.Closer); ok {
			if err := c.Close(); err != nil {
				slog.Warn("Failed to close source", "source", src.Name(), "error", err)
			}
		}
	}
	slog.Info("Monitor stopped, canonical set cleared")
}

func (m *Monitor) runCycle(ctx context.Context) ([]models.MatchRecord, []models.ChangeEvent) {
	start := time.Now()

	results := m.executor.FetchAll(ctx, m.srcs)

	// A stop during the fetch phase discards the cycle. Reconciling here
	// would age miss counters against sources that never got to answer and
	// push phantom removals into persistent sinks.
	if ctx.Err() != nil {
		slog.Info("Cycle interrupted by shutdown, discarding results")
		return nil, nil
	}

	var snaps []*models.Snapshot
	var ok, failed, skipped int
	for _, res := range results {
		switch {
		case res.Skipped:
			skipped++
		case res.Err != nil:
			failed++
		default:
			snap := &models.Snapshot{
				Source:    res.Snapshot.Source,
				FetchedAt: res.Snapshot.FetchedAt,
				Matches:   m.rules.ApplyAll(res.Snapshot.Matches),
			}
			snaps = append(snaps, snap)
			ok++
		}
	}

	events := m.engine.Reconcile(snaps)
	view := m.engine.Snapshot()

	m.dispatch(view, events)

	duration := time.Since(start)
	m.statsMu.Lock()
	m.stats = CycleStats{
		Number:        m.stats.Number + 1,
		Duration:      duration,
		SourcesOK:     ok,
		SourcesFailed: failed,
		SourcesSkip:   skipped,
		Matches:       len(view),
		Events:        len(events),
		CompletedAt:   time.Now(),
	}
	number := m.stats.Number
	m.statsMu.Unlock()

	slog.Info("Cycle completed",
		"cycle", number,
		"duration", duration,
		"sources_ok", ok,
		"sources_failed", failed,
		"sources_skipped", skipped,
		"matches", len(view),
		"events", len(events))

	if degraded := m.health.Degraded(); len(degraded) > 0 {
		slog.Warn("Degraded sources", "sources", degraded)
	}

	return view, events
}

// dispatch delivers cycle results to every subscriber. A panicking
// subscriber is logged and isolated; it cannot abort the scheduler or
// starve other subscribers.
func (m *Monitor) dispatch(view []models.MatchRecord, events []models.ChangeEvent) {
	m.subsMu.Lock()
	subs := make([]Subscriber, len(m.subs))
	copy(subs, m.subs)
	m.subsMu.Unlock()

	for _, sub := range subs {
		func(sub Subscriber) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("Subscriber panicked", "subscriber", sub.Name(), "panic", r)
				}
			}()
			sub.OnCycleComplete(view, events)
		}(sub)
	}
}
