package notify

import (
	"log/slog"

	"courtwatch/internal/monitor"
	"courtwatch/internal/pkg/models"
)

// LogSink writes every change event to the structured log. It is always
// registered so cycles leave an audit trail even with no other sinks
// configured.
type LogSink struct{}

var _ monitor.Subscriber = LogSink{}

func (LogSink) Name() string { return "log" }

func (LogSink) OnCycleComplete(_ []models.MatchRecord, events []models.ChangeEvent) {
	for _, ev := range events {
		attrs := []any{"kind", ev.Kind, "match_id", ev.MatchID}
		if ev.New != nil {
			attrs = append(attrs,
				"players", ev.New.PlayerA+" vs "+ev.New.PlayerB,
				"status", ev.New.Status,
				"score", ev.New.Score,
				"source", ev.New.Source,
			)
		} else if ev.Old != nil {
			attrs = append(attrs, "players", ev.Old.PlayerA+" vs "+ev.Old.PlayerB)
		}
		slog.Info("Match change detected", attrs...)
	}
}
