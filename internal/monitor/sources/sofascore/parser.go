package sofascore

import (
	"encoding/json"
	"fmt"
	"time"

	"courtwatch/internal/pkg/models"
)

// parseEvents converts one tournament's raw event list into match records.
// Events missing both player names are dropped, not errored: the feed mixes
// doubles placeholders and cancelled draws.
func parseEvents(raw []json.RawMessage, fetchedAt time.Time) ([]models.MatchRecord, error) {
	out := make([]models.MatchRecord, 0, len(raw))
	for i, r := range raw {
		var ev apiEvent
		if err := json.Unmarshal(r, &ev); err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		if ev.HomeTeam.Name == "" || ev.AwayTeam.Name == "" {
			continue
		}

		rec := models.MatchRecord{
			Tournament: ev.Tournament.Name,
			Round:      ev.RoundInfo.Name,
			PlayerA:    ev.HomeTeam.Name,
			PlayerB:    ev.AwayTeam.Name,
			Score:      formatScore(ev.HomeScore, ev.AwayScore),
			StatusText: statusText(ev.Status),
			Status:     mapStatus(ev.Status),
			Source:     sourceName,
			LastSeen:   fetchedAt,
			Payload:    string(r),
		}
		rec.ID = models.MatchID(rec.Tournament, rec.PlayerA, rec.PlayerB, rec.Round)
		out = append(out, rec)
	}
	return out, nil
}

func statusText(st apiState) string {
	if st.Description != "" {
		return st.Description
	}
	return st.Type
}

// mapStatus folds the feed's status taxonomy into ours. Walkovers count as
// finished; postponed and cancelled matches are not in play, so they map to
// scheduled the way the status text parser does.
func mapStatus(st apiState) models.Status {
	switch st.Type {
	case "inprogress":
		return models.StatusLive
	case "finished", "walkover":
		return models.StatusFinished
	case "notstarted", "postponed", "cancelled":
		return models.StatusScheduled
	}

	// Unknown type: fall back to the numeric code families.
	switch {
	case inCodes(st.Code, 6, 7, 8, 9, 10, 11, 12, 31, 32):
		return models.StatusLive
	case inCodes(st.Code, 3, 4, 5):
		return models.StatusFinished
	case st.Code == 1:
		return models.StatusScheduled
	}
	return models.StatusUnknown
}

func inCodes(code int, codes ...int) bool {
	for _, c := range codes {
		if code == c {
			return true
		}
	}
	return false
}

// formatScore renders completed and in-progress sets as "6-4 3-2".
func formatScore(home, away apiScore) string {
	pairs := [][2]int{
		{home.Period1, away.Period1},
		{home.Period2, away.Period2},
		{home.Period3, away.Period3},
	}
	score := ""
	for _, p := range pairs {
		if p[0] == 0 && p[1] == 0 {
			break
		}
		if score != "" {
			score += " "
		}
		score += fmt.Sprintf("%d-%d", p[0], p[1])
	}
	return score
}
