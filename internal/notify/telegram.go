// Package notify contains cycle subscribers that push change events to the
// outside world: Telegram alerts, AMQP publishing, database recording and
// plain log output.
package notify

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"courtwatch/internal/monitor"
	"courtwatch/internal/pkg/models"
)

// Min interval between any two Telegram messages to the same chat to avoid
// 429 Too Many Requests (~30/min limit).
const telegramSendInterval = 2 * time.Second

// TelegramAlerter sends a Telegram message when a match enters a deciding
// tie-break. Sending happens on a background goroutine so a slow Telegram
// API never stalls the polling cycle.
type TelegramAlerter struct {
	bot          *tgbotapi.BotAPI
	chatID       int64
	cooldown     time.Duration
	sendInterval time.Duration

	queue chan string
	done  chan struct{}
	wg    sync.WaitGroup

	mu        sync.Mutex
	lastSend  time.Time
	lastAlert map[string]time.Time
}

var _ monitor.Subscriber = (*TelegramAlerter)(nil)

// NewTelegramAlerter creates the alerter and verifies the bot token against
// the Telegram API before use.
func NewTelegramAlerter(token string, chatID int64, cooldown time.Duration) (*TelegramAlerter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	bot.Debug = false

	if _, err := bot.GetMe(); err != nil {
		return nil, fmt.Errorf("failed to get bot info: %w", err)
	}

	a := &TelegramAlerter{
		bot:          bot,
		chatID:       chatID,
		cooldown:     cooldown,
		sendInterval: telegramSendInterval,
		queue:        make(chan string, 100),
		done:         make(chan struct{}),
		lastAlert:    make(map[string]time.Time),
	}

	a.wg.Add(1)
	go a.messageSender()

	slog.Info("Telegram alerter initialized", "chat_id", chatID, "cooldown", cooldown)
	return a, nil
}

func (a *TelegramAlerter) Name() string { return "telegram" }

// OnCycleComplete queues one alert per match that entered a tie-break this
// cycle. Repeat alerts for the same match inside the cooldown window are
// suppressed.
func (a *TelegramAlerter) OnCycleComplete(_ []models.MatchRecord, events []models.ChangeEvent) {
	now := time.Now()
	for _, ev := range events {
		if ev.Kind != models.EventTieBreakEntered || ev.New == nil {
			continue
		}
		if !a.shouldAlert(ev.MatchID, now) {
			slog.Debug("Telegram alert suppressed by cooldown", "match_id", ev.MatchID)
			continue
		}
		select {
		case a.queue <- formatTieBreakAlert(ev.New):
		default:
			slog.Warn("Telegram alert queue is full, dropping message", "match_id", ev.MatchID)
		}
	}
}

func (a *TelegramAlerter) shouldAlert(matchID string, now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if last, ok := a.lastAlert[matchID]; ok && now.Sub(last) < a.cooldown {
		return false
	}
	a.lastAlert[matchID] = now
	return true
}

// messageSender drains the queue one message at a time, spacing sends so the
// chat never hits Telegram's rate limit.
func (a *TelegramAlerter) messageSender() {
	defer a.wg.Done()

	for {
		select {
		case <-a.done:
			for {
				select {
				case text := <-a.queue:
					a.send(text)
				default:
					return
				}
			}
		case text := <-a.queue:
			a.send(text)
		}
	}
}

func (a *TelegramAlerter) send(text string) {
	a.waitForSpacing()

	msg := tgbotapi.NewMessage(a.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	a.mu.Lock()
	a.lastSend = time.Now()
	a.mu.Unlock()

	if _, err := a.bot.Send(msg); err != nil {
		slog.Error("Telegram send failed", "error", err)
		return
	}
	slog.Info("Telegram alert sent", "queue_length", len(a.queue))
}

// waitForSpacing sleeps out the remainder of the send interval. It sleeps
// unconditionally, shutdown drain included: flushing the queue full speed
// would trip the same 429 limit the spacing exists for.
func (a *TelegramAlerter) waitForSpacing() {
	a.mu.Lock()
	elapsed := time.Since(a.lastSend)
	a.mu.Unlock()
	if elapsed < a.sendInterval {
		time.Sleep(a.sendInterval - elapsed)
	}
}

// Stop flushes queued alerts and stops the sender goroutine.
func (a *TelegramAlerter) Stop() {
	if a == nil {
		return
	}
	close(a.done)
	a.wg.Wait()
}

func formatTieBreakAlert(rec *models.MatchRecord) string {
	var b strings.Builder
	b.WriteString("🚨 *Match tie-break*\n\n")
	b.WriteString(fmt.Sprintf("*%s vs %s*\n", escapeMarkdown(rec.PlayerA), escapeMarkdown(rec.PlayerB)))
	if rec.Tournament != "" {
		b.WriteString(fmt.Sprintf("🏆 %s\n", escapeMarkdown(rec.Tournament)))
	}
	if rec.Score != "" {
		b.WriteString(fmt.Sprintf("📊 Score: %s\n", rec.Score))
	}
	if rec.BookmakerIndicator {
		b.WriteString("💰 Bookmaker coverage available\n")
	}
	b.WriteString(fmt.Sprintf("📡 Source: %s\n", rec.Source))
	b.WriteString(fmt.Sprintf("_%s_", time.Now().UTC().Format("2006-01-02 15:04:05 UTC")))
	return b.String()
}

func escapeMarkdown(text string) string {
	replacer := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"`", "\\`",
	)
	return replacer.Replace(text)
}
