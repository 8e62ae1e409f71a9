// Package sofascore polls the Sofascore JSON API for ITF tennis events.
package sofascore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"courtwatch/internal/monitor/sources"
	"courtwatch/internal/pkg/config"
	"courtwatch/internal/pkg/models"
)

const (
	sourceName     = "sofascore"
	defaultBaseURL = "https://api.sofascore.com/api/v1"
	siteURL        = "https://www.sofascore.com"
)

// ITF tournament categories polled each cycle: men, men M15/M25, women,
// women W15/W25.
var itfTournamentIDs = []int{23776, 23777, 23778, 23780, 23781, 23782}

func init() {
	sources.Register(sourceName, func(cfg *config.Config, src config.SourceConfig) (sources.Source, error) {
		return New(cfg, src), nil
	})
}

// Adapter fetches ITF events per tournament category from the API.
type Adapter struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

func New(cfg *config.Config, src config.SourceConfig) *Adapter {
	baseURL := src.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Adapter{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: cfg.Fetch.Timeout,
		},
		userAgent: cfg.Fetch.UserAgent,
	}
}

func (a *Adapter) Name() string { return sourceName }

// Available probes the public site with a HEAD request.
func (a *Adapter) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, siteURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", a.userAgent)
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 400
}

// FetchSnapshot collects events for every ITF tournament category. A failed
// category aborts the snapshot: a half-empty result would make every match
// of the missing categories look removed to the reconciler.
func (a *Adapter) FetchSnapshot(ctx context.Context) (*models.Snapshot, error) {
	fetchedAt := time.Now()
	var matches []models.MatchRecord

	for _, tournamentID := range itfTournamentIDs {
		recs, err := a.fetchTournament(ctx, tournamentID, fetchedAt)
		if err != nil {
			return nil, err
		}
		matches = append(matches, recs...)
	}

	slog.Debug("Sofascore snapshot complete", "matches", len(matches))
	return &models.Snapshot{
		Source:    sourceName,
		FetchedAt: fetchedAt,
		Matches:   matches,
	}, nil
}

func (a *Adapter) fetchTournament(ctx context.Context, tournamentID int, fetchedAt time.Time) ([]models.MatchRecord, error) {
	// Sport 5 is tennis.
	url := fmt.Sprintf("%s/sport/5/tournament/%d/events/last/0", a.baseURL, tournamentID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, sources.Transient(sourceName, err)
	}
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, sources.Transient(sourceName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// 404 means the tournament has no current edition; an empty result,
		// not an error.
		if resp.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, sources.Transient(sourceName,
			fmt.Errorf("tournament %d: unexpected status %d", tournamentID, resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, sources.Transient(sourceName, err)
	}

	var envelope eventsResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, sources.ParseFailure(sourceName,
			fmt.Errorf("tournament %d: %w", tournamentID, err))
	}

	recs, err := parseEvents(envelope.Events, fetchedAt)
	if err != nil {
		return nil, sources.ParseFailure(sourceName,
			fmt.Errorf("tournament %d: %w", tournamentID, err))
	}
	return recs, nil
}
