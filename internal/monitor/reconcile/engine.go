// Package reconcile merges per-source snapshots into the canonical match set
// and computes per-cycle change events.
package reconcile

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"courtwatch/internal/pkg/models"
)

// InvariantViolation marks a match that could not be reconciled this cycle
// (typically an unresolvable source precedence collision). Fatal to that
// match for the cycle only, never to the process.
type InvariantViolation struct {
	MatchID string
	Reason  string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("reconciliation invariant violated for %s: %s", e.MatchID, e.Reason)
}

// Engine owns the canonical match set. All mutation happens on the
// scheduler's single cycle timeline; the mutex exists so external readers
// (web API) can take copies while a cycle is in progress.
type Engine struct {
	priorities      map[string]int
	missThreshold   int
	recencyTiebreak bool

	mu        sync.RWMutex
	canonical map[string]models.MatchRecord
	misses    map[string]int
}

// NewEngine creates an engine with an empty canonical set. Lower priority
// numbers outrank higher ones (priority 1 beats priority 2).
func NewEngine(priorities map[string]int, missThreshold int, recencyTiebreak bool) *Engine {
	if missThreshold <= 0 {
		missThreshold = 1
	}
	return &Engine{
		priorities:      priorities,
		missThreshold:   missThreshold,
		recencyTiebreak: recencyTiebreak,
		canonical:       make(map[string]models.MatchRecord),
		misses:          make(map[string]int),
	}
}

// candidate is one source's record for a match during selection.
type candidate struct {
	rec       models.MatchRecord
	priority  int
	fetchedAt time.Time
}

// Reconcile runs one cycle: source precedence selection, diff against the
// canonical set, miss accounting. Returns the cycle's change events in
// detection order.
func (e *Engine) Reconcile(snapshots []*models.Snapshot) []models.ChangeEvent {
	now := time.Now()

	selected := make(map[string]candidate)
	violated := make(map[string]bool)
	var order []string

	for _, snap := range snapshots {
		if snap == nil {
			continue
		}
		prio, ok := e.priorities[snap.Source]
		if !ok {
			// Unknown sources rank last but still contribute.
			prio = int(^uint(0) >> 1)
		}
		for _, rec := range snap.Matches {
			if rec.ID == "" {
				slog.Warn("Dropping match without ID", "source", snap.Source, "players", rec.PlayerA+" vs "+rec.PlayerB)
				continue
			}
			cand := candidate{rec: rec, priority: prio, fetchedAt: snap.FetchedAt}
			prev, seen := selected[cand.rec.ID]
			if !seen {
				selected[cand.rec.ID] = cand
				order = append(order, cand.rec.ID)
				continue
			}
			winner, err := pick(prev, cand, e.recencyTiebreak)
			if err != nil {
				slog.Error("Skipping match for this cycle", "error", err)
				violated[cand.rec.ID] = true
				continue
			}
			selected[cand.rec.ID] = winner
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var events []models.ChangeEvent

	for _, id := range order {
		if violated[id] {
			delete(selected, id)
			continue
		}
		cand := selected[id]
		rec := cand.rec

		old, existed := e.canonical[id]
		switch {
		case !existed:
			events = append(events, models.NewAddedEvent(rec, now))
		case !old.ContentEquals(&rec):
			events = append(events, models.NewUpdatedEvent(old, rec, now))
			// The tie-break transition is the high-priority alert and must
			// be detectable independently of the generic update.
			if old.Status != models.StatusTieBreak && rec.Status == models.StatusTieBreak {
				events = append(events, models.NewTieBreakEnteredEvent(rec, now))
			}
		}

		e.canonical[id] = rec
		delete(e.misses, id)
	}

	// Matches absent from every source this cycle. A single missed fetch
	// must not flap the set, so removal waits for the configured streak.
	// Matches skipped for a violation are neither refreshed nor aged.
	var absent []string
	for id := range e.canonical {
		if _, ok := selected[id]; ok {
			continue
		}
		if violated[id] {
			continue
		}
		absent = append(absent, id)
	}
	sort.Strings(absent)

	for _, id := range absent {
		e.misses[id]++
		if e.misses[id] >= e.missThreshold {
			events = append(events, models.NewRemovedEvent(e.canonical[id], now))
			delete(e.canonical, id)
			delete(e.misses, id)
		}
	}

	return events
}

// pick resolves a precedence collision between two candidates for the same
// match ID. Lower priority number wins; equal priorities resolve by most
// recent fetch when the recency tiebreak is enabled, falling back to source
// name so the result is deterministic either way.
func pick(a, b candidate, recencyTiebreak bool) (candidate, error) {
	if a.priority != b.priority {
		if a.priority < b.priority {
			return a, nil
		}
		return b, nil
	}
	if !recencyTiebreak {
		return candidate{}, &InvariantViolation{
			MatchID: a.rec.ID,
			Reason: fmt.Sprintf("sources %s and %s share priority %d and recency tiebreak is disabled",
				a.rec.Source, b.rec.Source, a.priority),
		}
	}
	if !a.fetchedAt.Equal(b.fetchedAt) {
		if a.fetchedAt.After(b.fetchedAt) {
			return a, nil
		}
		return b, nil
	}
	if a.rec.Source <= b.rec.Source {
		return a, nil
	}
	return b, nil
}

// Snapshot returns a sorted copy of the canonical match set. Callers never
// see the live map.
func (e *Engine) Snapshot() []models.MatchRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]models.MatchRecord, 0, len(e.canonical))
	for _, rec := range e.canonical {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of matches currently in the canonical set.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.canonical)
}

// Reset clears all state. Called when the scheduler stops.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.canonical = make(map[string]models.MatchRecord)
	e.misses = make(map[string]int)
}
