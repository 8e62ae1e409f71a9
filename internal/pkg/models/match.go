package models

import (
	"strings"
	"time"
)

// Status represents the lifecycle state of a tennis match.
type Status string

const (
	StatusUnknown   Status = "unknown"
	StatusScheduled Status = "scheduled"
	StatusLive      Status = "live"
	StatusTieBreak  Status = "tie_break"
	StatusFinished  Status = "finished"
)

// MatchRecord is one match as reported by a single source in one cycle.
type MatchRecord struct {
	ID                 string    `json:"id"`
	Tournament         string    `json:"tournament"`
	Round              string    `json:"round"`
	PlayerA            string    `json:"player_a"`
	PlayerB            string    `json:"player_b"`
	Score              string    `json:"score"`
	StatusText         string    `json:"status_text"`
	Status             Status    `json:"status"`
	BookmakerIndicator bool      `json:"bookmaker_indicator"`
	Source             string    `json:"source"`
	LastSeen           time.Time `json:"last_seen"`

	// Payload is the raw source fragment the record was built from
	// (HTML row or JSON object). Kept for classification, not serialized.
	Payload string `json:"-"`
}

// IsLive reports whether the match is currently in play.
func (m *MatchRecord) IsLive() bool {
	return m.Status == StatusLive || m.Status == StatusTieBreak
}

// ContentEquals compares the fields that matter for change detection.
// LastSeen and Payload are bookkeeping and excluded: the same snapshot
// fetched twice must compare equal.
func (m *MatchRecord) ContentEquals(other *MatchRecord) bool {
	if other == nil {
		return false
	}
	return m.ID == other.ID &&
		m.Tournament == other.Tournament &&
		m.Round == other.Round &&
		m.PlayerA == other.PlayerA &&
		m.PlayerB == other.PlayerB &&
		m.Score == other.Score &&
		m.StatusText == other.StatusText &&
		m.Status == other.Status &&
		m.BookmakerIndicator == other.BookmakerIndicator &&
		m.Source == other.Source
}

// Snapshot is one source's full result set for one polling cycle.
// Immutable once produced by an adapter.
type Snapshot struct {
	Source    string        `json:"source"`
	FetchedAt time.Time     `json:"fetched_at"`
	Matches   []MatchRecord `json:"matches"`
}

// ParseStatus maps raw status text from a source to a Status. Tie-break
// promotion is a separate classification step; this only covers the base
// families. Walkovers and retirements count as finished, postponed and
// cancelled fall back to scheduled (the match is not in play).
func ParseStatus(statusText, score string) Status {
	s := strings.ToLower(strings.TrimSpace(statusText))
	if s == "" {
		if strings.ContainsAny(score, "0123456789") {
			return StatusLive
		}
		return StatusUnknown
	}

	switch {
	case containsAny(s, "live", "in progress", "playing", "set", "game", "break", "'"):
		return StatusLive
	case containsAny(s, "fin", "completed", "ended", "walkover", "w.o.", "w/o", "retired", "ret.", "awarded"):
		return StatusFinished
	case containsAny(s, "sched", "not started", "upcoming", "postp", "delayed", "canc"):
		return StatusScheduled
	}

	if strings.ContainsAny(score, "0123456789") {
		return StatusLive
	}
	return StatusUnknown
}

func containsAny(s string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
