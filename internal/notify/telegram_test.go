package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"courtwatch/internal/pkg/models"
)

func TestShouldAlertCooldown(t *testing.T) {
	a := &TelegramAlerter{
		cooldown:  time.Hour,
		lastAlert: make(map[string]time.Time),
	}

	now := time.Now()
	assert.True(t, a.shouldAlert("match-1", now))
	assert.False(t, a.shouldAlert("match-1", now.Add(30*time.Minute)))
	assert.True(t, a.shouldAlert("match-1", now.Add(2*time.Hour)))
	assert.True(t, a.shouldAlert("match-2", now))
}

func TestWaitForSpacingHoldsDuringDrain(t *testing.T) {
	// The spacing must be honored even after Stop closed the done channel,
	// otherwise the shutdown flush bursts past Telegram's rate limit.
	a := &TelegramAlerter{
		sendInterval: 40 * time.Millisecond,
		done:         make(chan struct{}),
		lastAlert:    make(map[string]time.Time),
	}
	close(a.done)
	a.lastSend = time.Now()

	start := time.Now()
	a.waitForSpacing()
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond,
		"send spacing was skipped during drain")
}

func TestFormatTieBreakAlert(t *testing.T) {
	rec := &models.MatchRecord{
		Tournament:         "ITF M25 Monastir",
		PlayerA:            "Novak A.",
		PlayerB:            "Berrettini L.",
		Score:              "6-4 4-6 9-9",
		Status:             models.StatusTieBreak,
		Source:             "flashscore",
		BookmakerIndicator: true,
	}

	text := formatTieBreakAlert(rec)
	assert.Contains(t, text, "Novak A.")
	assert.Contains(t, text, "Berrettini L.")
	assert.Contains(t, text, "ITF M25 Monastir")
	assert.Contains(t, text, "6-4 4-6 9-9")
	assert.Contains(t, text, "Bookmaker coverage")
	assert.Contains(t, text, "flashscore")
}
