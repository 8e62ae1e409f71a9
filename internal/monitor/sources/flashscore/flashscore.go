// Package flashscore fetches ITF tennis matches from the Flashscore site.
// The page builds its match list with JavaScript, so fetching goes through a
// headless browser and the rendered DOM is parsed afterwards.
package flashscore

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"courtwatch/internal/monitor/sources"
	"courtwatch/internal/pkg/config"
	"courtwatch/internal/pkg/models"
)

const (
	sourceName = "flashscore"
	defaultURL = "https://www.flashscore.com/tennis/"

	// renderWait gives the page scripts time to populate the match list
	// before the DOM is captured.
	renderWait = 5 * time.Second
)

// chromeMu serializes headless browser sessions. Running several Chrome
// instances at once on a small VPS trashes memory and they start evicting
// each other.
var chromeMu sync.Mutex

func init() {
	sources.Register(sourceName, New)
}

// Adapter renders the Flashscore tennis page in a headless browser and
// extracts live and scheduled matches from the DOM.
type Adapter struct {
	url       string
	timeout   time.Duration
	headless  bool
	userAgent string
	probe     *http.Client
}

// New builds the adapter from configuration. The registry calls it once at
// startup.
func New(cfg *config.Config, src config.SourceConfig) (sources.Source, error) {
	url := src.BaseURL
	if url == "" {
		url = defaultURL
	}
	return &Adapter{
		url:       url,
		timeout:   cfg.Fetch.Timeout,
		headless:  src.HeadlessBrowser(),
		userAgent: cfg.Fetch.UserAgent,
		probe:     &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (a *Adapter) Name() string { return sourceName }

// Available does a cheap HEAD request before committing to a full browser
// session. Flashscore being unreachable is a skip, not a failure.
func (a *Adapter) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, a.url, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", a.userAgent)
	resp, err := a.probe.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 400
}

// FetchSnapshot renders the page and parses every tournament section found.
func (a *Adapter) FetchSnapshot(ctx context.Context) (*models.Snapshot, error) {
	html, err := a.renderPage(ctx)
	if err != nil {
		return nil, sources.Transient(sourceName, err)
	}

	fetchedAt := time.Now().UTC()
	matches, err := parseMatches(html, fetchedAt)
	if err != nil {
		return nil, sources.ParseFailure(sourceName, err)
	}

	return &models.Snapshot{
		Source:    sourceName,
		FetchedAt: fetchedAt,
		Matches:   matches,
	}, nil
}

func (a *Adapter) renderPage(ctx context.Context) (string, error) {
	chromeMu.Lock()
	defer chromeMu.Unlock()

	chromeDir, err := os.MkdirTemp("", "flashscore_chrome_")
	if err != nil {
		return "", fmt.Errorf("create chrome temp dir: %w", err)
	}
	defer os.RemoveAll(chromeDir)

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", a.headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.UserDataDir(chromeDir),
		chromedp.UserAgent(a.userAgent),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	var html string
	err = chromedp.Run(browserCtx,
		chromedp.Navigate(a.url),
		chromedp.Sleep(renderWait),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("chromedp render: %w", err)
	}
	return html, nil
}
