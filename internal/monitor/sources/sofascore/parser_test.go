package sofascore

import (
	"encoding/json"
	"testing"
	"time"

	"courtwatch/internal/pkg/models"
)

const sampleEvents = `{
  "events": [
    {
      "id": 120001,
      "tournament": {"name": "M15 Monastir"},
      "roundInfo": {"name": "Round of 16"},
      "homeTeam": {"name": "Costa R."},
      "awayTeam": {"name": "Novak T."},
      "status": {"code": 7, "type": "inprogress", "description": "2nd set"},
      "homeScore": {"period1": 6, "period2": 3},
      "awayScore": {"period1": 4, "period2": 2},
      "startTimestamp": 1768219200
    },
    {
      "id": 120002,
      "tournament": {"name": "M15 Monastir"},
      "roundInfo": {"name": "Round of 16"},
      "homeTeam": {"name": "Berg K."},
      "awayTeam": {"name": "Silva A."},
      "status": {"code": 1, "type": "notstarted"},
      "homeScore": {},
      "awayScore": {}
    },
    {
      "id": 120003,
      "tournament": {"name": "M15 Monastir"},
      "homeTeam": {"name": ""},
      "awayTeam": {"name": "Nobody"},
      "status": {"code": 1, "type": "notstarted"}
    }
  ]
}`

func parseSample(t *testing.T) []models.MatchRecord {
	t.Helper()
	var envelope eventsResponse
	if err := json.Unmarshal([]byte(sampleEvents), &envelope); err != nil {
		t.Fatalf("failed to decode sample: %v", err)
	}
	recs, err := parseEvents(envelope.Events, time.Now())
	if err != nil {
		t.Fatalf("parseEvents failed: %v", err)
	}
	return recs
}

func TestParseEvents(t *testing.T) {
	recs := parseSample(t)

	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2 (nameless event dropped)", len(recs))
	}

	live := recs[0]
	if live.PlayerA != "Costa R." || live.PlayerB != "Novak T." {
		t.Errorf("unexpected players: %s vs %s", live.PlayerA, live.PlayerB)
	}
	if live.Status != models.StatusLive {
		t.Errorf("status = %q, want live", live.Status)
	}
	if live.Score != "6-4 3-2" {
		t.Errorf("score = %q, want %q", live.Score, "6-4 3-2")
	}
	if live.StatusText != "2nd set" {
		t.Errorf("status text = %q, want description", live.StatusText)
	}
	if live.ID == "" {
		t.Error("record must carry a match ID")
	}
	if live.Payload == "" {
		t.Error("record must carry its raw payload for classification")
	}

	scheduled := recs[1]
	if scheduled.Status != models.StatusScheduled {
		t.Errorf("status = %q, want scheduled", scheduled.Status)
	}
	if scheduled.Score != "" {
		t.Errorf("score = %q, want empty for unstarted match", scheduled.Score)
	}
}

func TestParseEvents_StableIDs(t *testing.T) {
	recs1 := parseSample(t)
	recs2 := parseSample(t)
	for i := range recs1 {
		if recs1[i].ID != recs2[i].ID {
			t.Errorf("record %d: ID not stable across parses", i)
		}
	}
}

func TestMapStatus(t *testing.T) {
	tests := []struct {
		state    apiState
		expected models.Status
	}{
		{apiState{Type: "inprogress"}, models.StatusLive},
		{apiState{Type: "finished"}, models.StatusFinished},
		{apiState{Type: "walkover"}, models.StatusFinished},
		{apiState{Type: "notstarted"}, models.StatusScheduled},
		{apiState{Type: "postponed"}, models.StatusScheduled},
		{apiState{Type: "weird", Code: 31}, models.StatusLive},
		{apiState{Type: "weird", Code: 4}, models.StatusFinished},
		{apiState{Type: "weird", Code: 1}, models.StatusScheduled},
		{apiState{Type: "weird", Code: 99}, models.StatusUnknown},
	}

	for _, tt := range tests {
		if got := mapStatus(tt.state); got != tt.expected {
			t.Errorf("mapStatus(%+v) = %q, want %q", tt.state, got, tt.expected)
		}
	}
}

func TestParseEvents_MalformedEvent(t *testing.T) {
	raw := []json.RawMessage{json.RawMessage(`"not an object"`)}
	if _, err := parseEvents(raw, time.Now()); err == nil {
		t.Error("expected error for malformed event")
	}
}
