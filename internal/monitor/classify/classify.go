// Package classify annotates raw match records with rule-based detections:
// bookmaker presence and tie-break status. Classification is pure and
// side-effect free; deriving events from status transitions is the
// reconciliation engine's job.
package classify

import (
	"strings"

	"courtwatch/internal/pkg/config"
	"courtwatch/internal/pkg/models"
)

// Rules holds the configurable detection inputs.
type Rules struct {
	// IndicatorFragment is searched verbatim in the record's raw payload.
	IndicatorFragment string
	// TieBreakKeywords are matched case-insensitively against status text,
	// in order; the first hit wins.
	TieBreakKeywords []string
}

// RulesFromConfig builds classification rules from the config surface.
func RulesFromConfig(cfg *config.ClassifyConfig) Rules {
	keywords := make([]string, 0, len(cfg.TieBreakKeywords))
	for _, kw := range cfg.TieBreakKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return Rules{
		IndicatorFragment: cfg.BookmakerIndicatorFragment,
		TieBreakKeywords:  keywords,
	}
}

// Apply returns a copy of rec with bookmaker and tie-break annotations set.
func (r Rules) Apply(rec models.MatchRecord) models.MatchRecord {
	if r.HasBookmakerIndicator(rec.Payload) {
		rec.BookmakerIndicator = true
	}
	if _, ok := r.MatchTieBreak(rec.StatusText); ok {
		rec.Status = models.StatusTieBreak
	}
	return rec
}

// ApplyAll classifies every record of a snapshot, returning a new slice.
func (r Rules) ApplyAll(records []models.MatchRecord) []models.MatchRecord {
	out := make([]models.MatchRecord, len(records))
	for i, rec := range records {
		out[i] = r.Apply(rec)
	}
	return out
}

// HasBookmakerIndicator reports whether the raw payload carries the
// configured bookmaker fragment. Empty payloads and garbage are fine: the
// answer is simply false.
func (r Rules) HasBookmakerIndicator(payload string) bool {
	if r.IndicatorFragment == "" || payload == "" {
		return false
	}
	return strings.Contains(payload, r.IndicatorFragment)
}

// MatchTieBreak scans status text against the keyword list and returns the
// first matching keyword.
func (r Rules) MatchTieBreak(statusText string) (string, bool) {
	if statusText == "" {
		return "", false
	}
	s := strings.ToLower(statusText)
	for _, kw := range r.TieBreakKeywords {
		if strings.Contains(s, kw) {
			return kw, true
		}
	}
	return "", false
}
