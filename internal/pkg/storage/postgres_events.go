// Package storage persists change events so match history survives restarts
// and can be queried by downstream tooling.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"courtwatch/internal/monitor"
	"courtwatch/internal/pkg/config"
	"courtwatch/internal/pkg/models"
)

// Ensure PostgresEventStore implements the cycle subscriber contract.
var _ monitor.Subscriber = (*PostgresEventStore)(nil)

// PostgresEventStore records every change event in PostgreSQL.
type PostgresEventStore struct {
	db *sql.DB
}

// NewPostgresEventStore opens the connection, verifies it and creates the
// schema if missing.
func NewPostgresEventStore(cfg *config.PostgresConfig) (*PostgresEventStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	store := &PostgresEventStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	slog.Info("PostgreSQL event store initialized")
	return store, nil
}

func (s *PostgresEventStore) initSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS match_events (
		id SERIAL PRIMARY KEY,
		match_id VARCHAR(500) NOT NULL,
		kind VARCHAR(50) NOT NULL,
		tournament VARCHAR(500) NOT NULL DEFAULT '',
		player_a VARCHAR(200) NOT NULL DEFAULT '',
		player_b VARCHAR(200) NOT NULL DEFAULT '',
		score VARCHAR(100) NOT NULL DEFAULT '',
		status VARCHAR(50) NOT NULL DEFAULT '',
		bookmaker_indicator BOOLEAN NOT NULL DEFAULT FALSE,
		source VARCHAR(100) NOT NULL DEFAULT '',
		detected_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_match_events_match_id ON match_events(match_id);
	CREATE INDEX IF NOT EXISTS idx_match_events_kind ON match_events(kind);
	CREATE INDEX IF NOT EXISTS idx_match_events_detected_at ON match_events(detected_at DESC);
	`

	_, err := s.db.ExecContext(ctx, query)
	return err
}

func (s *PostgresEventStore) Name() string { return "postgres" }

// OnCycleComplete inserts the cycle's events. Insert failures are logged and
// skipped so one broken row never loses the rest of the batch.
func (s *PostgresEventStore) OnCycleComplete(_ []models.MatchRecord, events []models.ChangeEvent) {
	if len(events) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	saved := 0
	for _, ev := range events {
		if err := s.insertEvent(ctx, ev); err != nil {
			slog.Error("Failed to store change event", "match_id", ev.MatchID, "kind", ev.Kind, "error", err)
			continue
		}
		saved++
	}
	slog.Debug("Change events stored", "saved", saved, "total", len(events))
}

func (s *PostgresEventStore) insertEvent(ctx context.Context, ev models.ChangeEvent) error {
	// Removed events carry the last known record in Old; everything else in New.
	rec := ev.New
	if rec == nil {
		rec = ev.Old
	}
	if rec == nil {
		return fmt.Errorf("event %s for %s has no record", ev.Kind, ev.MatchID)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO match_events (
			match_id, kind, tournament, player_a, player_b,
			score, status, bookmaker_indicator, source, detected_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		ev.MatchID, string(ev.Kind), rec.Tournament, rec.PlayerA, rec.PlayerB,
		rec.Score, string(rec.Status), rec.BookmakerIndicator, rec.Source, ev.DetectedAt,
	)
	return err
}

// RecentEvents returns the latest stored events, newest first.
func (s *PostgresEventStore) RecentEvents(ctx context.Context, limit int) ([]StoredEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT match_id, kind, tournament, player_a, player_b,
		       score, status, bookmaker_indicator, source, detected_at
		FROM match_events
		ORDER BY detected_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []StoredEvent
	for rows.Next() {
		var ev StoredEvent
		if err := rows.Scan(
			&ev.MatchID, &ev.Kind, &ev.Tournament, &ev.PlayerA, &ev.PlayerB,
			&ev.Score, &ev.Status, &ev.BookmakerIndicator, &ev.Source, &ev.DetectedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// StoredEvent is a flattened change event row.
type StoredEvent struct {
	MatchID            string    `json:"match_id"`
	Kind               string    `json:"kind"`
	Tournament         string    `json:"tournament"`
	PlayerA            string    `json:"player_a"`
	PlayerB            string    `json:"player_b"`
	Score              string    `json:"score"`
	Status             string    `json:"status"`
	BookmakerIndicator bool      `json:"bookmaker_indicator"`
	Source             string    `json:"source"`
	DetectedAt         time.Time `json:"detected_at"`
}

// Close releases the database connection.
func (s *PostgresEventStore) Close() error {
	return s.db.Close()
}
