package flashscore

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"courtwatch/internal/pkg/models"
)

// parseMatches extracts match rows from a rendered Flashscore tennis page.
// Rows are grouped under tournament headers; the current header applies to
// every row until the next one. Each record keeps its row HTML as payload so
// the bookmaker link fragment survives into classification.
func parseMatches(html string, fetchedAt time.Time) ([]models.MatchRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to build document: %w", err)
	}

	container := doc.Find("div.sportName.tennis")
	if container.Length() == 0 {
		return nil, fmt.Errorf("no tennis section found, page structure changed")
	}

	var matches []models.MatchRecord
	tournament := ""

	container.Children().Each(func(_ int, row *goquery.Selection) {
		switch {
		case row.HasClass("event__header"):
			tournament = headerName(row)
		case row.HasClass("event__match"):
			if rec, ok := parseRow(row, tournament, fetchedAt); ok {
				matches = append(matches, rec)
			}
		}
	})

	return matches, nil
}

func headerName(header *goquery.Selection) string {
	for _, sel := range []string{"span.wcl-overline_rOFfd", ".event__title--name", ".event__title"} {
		if name := text(header, sel); name != "" {
			return name
		}
	}
	return strings.TrimSpace(header.Text())
}

func parseRow(row *goquery.Selection, tournament string, fetchedAt time.Time) (models.MatchRecord, bool) {
	home := text(row, ".event__participant--home")
	away := text(row, ".event__participant--away")
	if home == "" || away == "" {
		return models.MatchRecord{}, false
	}

	score := joinScore(text(row, ".event__score--home"), text(row, ".event__score--away"))

	statusText := text(row, ".event__stage--block")
	if statusText == "" {
		statusText = text(row, ".event__stage")
	}
	if statusText == "" {
		statusText = text(row, ".event__time")
	}

	payload, _ := goquery.OuterHtml(row)

	rec := models.MatchRecord{
		Tournament: tournament,
		Round:      text(row, ".event__round"),
		PlayerA:    home,
		PlayerB:    away,
		Score:      score,
		StatusText: statusText,
		Status:     models.ParseStatus(statusText, score),
		Source:     sourceName,
		LastSeen:   fetchedAt,
		Payload:    payload,
	}
	rec.ID = models.MatchID(rec.Tournament, rec.PlayerA, rec.PlayerB, rec.Round)
	return rec, true
}

func text(s *goquery.Selection, selector string) string {
	return strings.TrimSpace(s.Find(selector).First().Text())
}

func joinScore(home, away string) string {
	if home == "" && away == "" {
		return ""
	}
	return home + "-" + away
}
