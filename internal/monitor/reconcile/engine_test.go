package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courtwatch/internal/pkg/models"
)

var baseTime = time.Date(2026, 5, 12, 14, 0, 0, 0, time.UTC)

func record(id, source string, status models.Status, score string) models.MatchRecord {
	return models.MatchRecord{
		ID:         id,
		Tournament: "M15 Cancun",
		Round:      "R16",
		PlayerA:    "Smith J.",
		PlayerB:    "Garcia P.",
		Score:      score,
		Status:     status,
		Source:     source,
		LastSeen:   baseTime,
	}
}

func snapshot(source string, at time.Time, recs ...models.MatchRecord) *models.Snapshot {
	return &models.Snapshot{Source: source, FetchedAt: at, Matches: recs}
}

func kinds(events []models.ChangeEvent) []models.EventKind {
	out := make([]models.EventKind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

func newTestEngine(missThreshold int) *Engine {
	return NewEngine(map[string]int{"flashscore": 1, "sofascore": 2}, missThreshold, true)
}

func TestReconcile_AddedThenIdempotent(t *testing.T) {
	e := newTestEngine(3)
	snap := snapshot("flashscore", baseTime, record("m1", "flashscore", models.StatusLive, "6-4 3-2"))

	events := e.Reconcile([]*models.Snapshot{snap})
	require.Len(t, events, 1)
	assert.Equal(t, models.EventAdded, events[0].Kind)
	assert.Equal(t, "m1", events[0].MatchID)

	// Same snapshot again: no change, no events.
	events = e.Reconcile([]*models.Snapshot{snap})
	assert.Empty(t, events, "identical snapshot must produce zero events")
	assert.Equal(t, 1, e.Len())
}

func TestReconcile_UpdateOnFieldChange(t *testing.T) {
	e := newTestEngine(3)
	e.Reconcile([]*models.Snapshot{
		snapshot("flashscore", baseTime, record("m1", "flashscore", models.StatusLive, "6-4 3-2")),
	})

	events := e.Reconcile([]*models.Snapshot{
		snapshot("flashscore", baseTime.Add(time.Minute), record("m1", "flashscore", models.StatusLive, "6-4 4-2")),
	})
	require.Len(t, events, 1)
	assert.Equal(t, models.EventUpdated, events[0].Kind)
	assert.Equal(t, "6-4 3-2", events[0].Old.Score)
	assert.Equal(t, "6-4 4-2", events[0].New.Score)
}

func TestReconcile_HigherPrioritySourceWins(t *testing.T) {
	// Source A (priority 1) says Live; source B (priority 2) says tie-break.
	// A outranks B, so the canonical record stays Live and no tie-break
	// event fires.
	e := newTestEngine(3)

	events := e.Reconcile([]*models.Snapshot{
		snapshot("flashscore", baseTime, record("m1", "flashscore", models.StatusLive, "6-4 6-4")),
		snapshot("sofascore", baseTime, record("m1", "sofascore", models.StatusTieBreak, "6-4 6-4")),
	})
	require.Equal(t, []models.EventKind{models.EventAdded}, kinds(events))

	canonical := e.Snapshot()
	require.Len(t, canonical, 1)
	assert.Equal(t, "flashscore", canonical[0].Source)
	assert.Equal(t, models.StatusLive, canonical[0].Status)
}

func TestReconcile_TieBreakEnteredAfterUpdate(t *testing.T) {
	// Continuation of the scenario above: when the top-priority source
	// itself reports the tie-break, the cycle yields one Updated followed
	// by one TieBreakEntered.
	e := newTestEngine(3)
	e.Reconcile([]*models.Snapshot{
		snapshot("flashscore", baseTime, record("m1", "flashscore", models.StatusLive, "6-4 6-4")),
	})

	events := e.Reconcile([]*models.Snapshot{
		snapshot("flashscore", baseTime.Add(time.Minute), record("m1", "flashscore", models.StatusTieBreak, "6-4 6-4")),
	})
	require.Equal(t, []models.EventKind{models.EventUpdated, models.EventTieBreakEntered}, kinds(events))
	assert.Equal(t, "m1", events[1].MatchID)
	assert.Equal(t, models.StatusTieBreak, events[1].New.Status)
}

func TestReconcile_NoTieBreakEventWhileAlreadyInTieBreak(t *testing.T) {
	e := newTestEngine(3)
	e.Reconcile([]*models.Snapshot{
		snapshot("flashscore", baseTime, record("m1", "flashscore", models.StatusTieBreak, "6-4 6-4 8-8")),
	})

	events := e.Reconcile([]*models.Snapshot{
		snapshot("flashscore", baseTime.Add(time.Minute), record("m1", "flashscore", models.StatusTieBreak, "6-4 6-4 9-8")),
	})
	require.Equal(t, []models.EventKind{models.EventUpdated}, kinds(events))
}

func TestReconcile_RemovedAfterMissThreshold(t *testing.T) {
	e := newTestEngine(3)
	e.Reconcile([]*models.Snapshot{
		snapshot("flashscore", baseTime, record("m1", "flashscore", models.StatusLive, "")),
	})

	// Absent for threshold-1 cycles: still present.
	for i := 1; i <= 2; i++ {
		events := e.Reconcile([]*models.Snapshot{snapshot("flashscore", baseTime.Add(time.Duration(i)*time.Minute))})
		assert.Empty(t, events, "cycle %d: match should survive a short absence", i)
		assert.Equal(t, 1, e.Len())
	}

	// Third consecutive miss crosses the threshold.
	events := e.Reconcile([]*models.Snapshot{snapshot("flashscore", baseTime.Add(3*time.Minute))})
	require.Equal(t, []models.EventKind{models.EventRemoved}, kinds(events))
	assert.Equal(t, "m1", events[0].MatchID)
	assert.Equal(t, 0, e.Len())
}

func TestReconcile_ReappearanceResetsMissCounter(t *testing.T) {
	e := newTestEngine(2)
	snap := snapshot("flashscore", baseTime, record("m1", "flashscore", models.StatusLive, ""))
	e.Reconcile([]*models.Snapshot{snap})

	// One miss, then reappears, then one miss again: never removed.
	e.Reconcile([]*models.Snapshot{snapshot("flashscore", baseTime)})
	e.Reconcile([]*models.Snapshot{snap})
	events := e.Reconcile([]*models.Snapshot{snapshot("flashscore", baseTime)})

	assert.Empty(t, events)
	assert.Equal(t, 1, e.Len())
}

func TestReconcile_EqualPriorityRecencyWins(t *testing.T) {
	e := NewEngine(map[string]int{"flashscore": 1, "sofascore": 1}, 3, true)

	older := snapshot("flashscore", baseTime, record("m1", "flashscore", models.StatusLive, "6-4"))
	newer := snapshot("sofascore", baseTime.Add(30*time.Second), record("m1", "sofascore", models.StatusLive, "6-4 1-0"))

	e.Reconcile([]*models.Snapshot{older, newer})
	canonical := e.Snapshot()
	require.Len(t, canonical, 1)
	assert.Equal(t, "sofascore", canonical[0].Source, "most recent snapshot wins a priority tie")
}

func TestReconcile_EqualPriorityWithoutTiebreakSkipsMatch(t *testing.T) {
	e := NewEngine(map[string]int{"flashscore": 1, "sofascore": 1}, 3, false)

	events := e.Reconcile([]*models.Snapshot{
		snapshot("flashscore", baseTime, record("m1", "flashscore", models.StatusLive, "6-4")),
		snapshot("sofascore", baseTime, record("m1", "sofascore", models.StatusLive, "6-4"),
			record("m2", "sofascore", models.StatusScheduled, "")),
	})

	// m1 is skipped for the cycle, m2 still goes through.
	require.Equal(t, []models.EventKind{models.EventAdded}, kinds(events))
	assert.Equal(t, "m2", events[0].MatchID)
	assert.Equal(t, 1, e.Len())
}

func TestReconcile_CanonicalContainsOnlySelected(t *testing.T) {
	e := newTestEngine(3)

	recA := record("m1", "flashscore", models.StatusLive, "6-4")
	recB := record("m1", "sofascore", models.StatusLive, "6-4")
	recC := record("m2", "sofascore", models.StatusScheduled, "")

	e.Reconcile([]*models.Snapshot{
		snapshot("flashscore", baseTime, recA),
		snapshot("sofascore", baseTime, recB, recC),
	})

	canonical := e.Snapshot()
	require.Len(t, canonical, 2)
	for _, rec := range canonical {
		if rec.ID == "m1" && rec.Source != "flashscore" {
			t.Errorf("m1 held by %s, but flashscore outranks it", rec.Source)
		}
	}
}

func TestReconcile_RecordsWithoutIDDropped(t *testing.T) {
	e := newTestEngine(3)
	rec := record("", "flashscore", models.StatusLive, "")

	events := e.Reconcile([]*models.Snapshot{snapshot("flashscore", baseTime, rec)})
	assert.Empty(t, events)
	assert.Equal(t, 0, e.Len())
}

func TestReset(t *testing.T) {
	e := newTestEngine(3)
	e.Reconcile([]*models.Snapshot{
		snapshot("flashscore", baseTime, record("m1", "flashscore", models.StatusLive, "")),
	})
	e.Reset()
	assert.Equal(t, 0, e.Len())

	// After a reset the same match is new again.
	events := e.Reconcile([]*models.Snapshot{
		snapshot("flashscore", baseTime, record("m1", "flashscore", models.StatusLive, "")),
	})
	assert.Equal(t, []models.EventKind{models.EventAdded}, kinds(events))
}
