package models

import "time"

// EventKind discriminates change events produced by reconciliation.
type EventKind string

const (
	EventAdded           EventKind = "added"
	EventUpdated         EventKind = "updated"
	EventRemoved         EventKind = "removed"
	EventTieBreakEntered EventKind = "tie_break_entered"
)

// ChangeEvent is one detected transition for one match in one cycle.
// New is set for added/updated/tie-break events; removed events carry the
// last known record in Old.
type ChangeEvent struct {
	Kind       EventKind    `json:"kind"`
	MatchID    string       `json:"match_id"`
	Old        *MatchRecord `json:"old,omitempty"`
	New        *MatchRecord `json:"new,omitempty"`
	DetectedAt time.Time    `json:"detected_at"`
}

func NewAddedEvent(rec MatchRecord, at time.Time) ChangeEvent {
	return ChangeEvent{Kind: EventAdded, MatchID: rec.ID, New: &rec, DetectedAt: at}
}

func NewUpdatedEvent(old, new MatchRecord, at time.Time) ChangeEvent {
	return ChangeEvent{Kind: EventUpdated, MatchID: new.ID, Old: &old, New: &new, DetectedAt: at}
}

func NewRemovedEvent(last MatchRecord, at time.Time) ChangeEvent {
	return ChangeEvent{Kind: EventRemoved, MatchID: last.ID, Old: &last, DetectedAt: at}
}

func NewTieBreakEnteredEvent(rec MatchRecord, at time.Time) ChangeEvent {
	return ChangeEvent{Kind: EventTieBreakEntered, MatchID: rec.ID, New: &rec, DetectedAt: at}
}
