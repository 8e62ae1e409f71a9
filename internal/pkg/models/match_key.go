package models

import "strings"

// MatchID builds a stable cross-source match identifier from tournament,
// players and round. Score and status text are deliberately excluded so the
// key survives in-play updates.
//
// IMPORTANT: this assumes player names are spelled consistently across
// sources (both Flashscore and Sofascore use latinized "Surname N." forms for
// ITF draws). Player order is preserved: sources agree on home/away listing.
func MatchID(tournament, playerA, playerB, round string) string {
	return normalizeKeyPart(tournament) + "|" +
		normalizeKeyPart(playerA) + "|" +
		normalizeKeyPart(playerB) + "|" +
		normalizeKeyPart(round)
}

func normalizeKeyPart(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	s = strings.Join(strings.Fields(s), " ")
	// The separator must not appear inside a part.
	s = strings.ReplaceAll(s, "/", " ")
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "|", " ")
	// Punctuation that varies between sources ("Smith, J." vs "Smith J.").
	s = strings.ReplaceAll(s, ",", " ")
	s = strings.ReplaceAll(s, ".", " ")
	s = strings.Join(strings.Fields(s), " ")
	return s
}
