package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Interval bounds for continuous monitoring. Values outside the range are
// clamped, not rejected, so an aggressive config cannot hammer a source.
const (
	MinRefreshInterval     = 30 * time.Second
	MaxRefreshInterval     = 3600 * time.Second
	DefaultRefreshInterval = 300 * time.Second
)

type Config struct {
	Monitor  MonitorConfig  `yaml:"monitor"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Classify ClassifyConfig `yaml:"classify"`
	Sources  []SourceConfig `yaml:"sources"`
	Web      WebConfig      `yaml:"web"`
	Postgres PostgresConfig `yaml:"postgres"`
	Telegram TelegramConfig `yaml:"telegram"`
	AMQP     AMQPConfig     `yaml:"amqp"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type MonitorConfig struct {
	Interval time.Duration `yaml:"interval"`
	// MissThreshold is the number of consecutive cycles a match must be
	// absent from every source before it is reported removed.
	MissThreshold int `yaml:"miss_threshold"`
	// RecencyTiebreak resolves equal source priorities by most recent
	// successful fetch. Disabling it makes equal priorities a reconciliation
	// error for the affected match.
	RecencyTiebreak *bool `yaml:"recency_tiebreak"`
}

type FetchConfig struct {
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
	MaxConcurrent  int           `yaml:"max_concurrent"`
	// MinRequestSpacing is the per-source politeness floor between requests.
	MinRequestSpacing time.Duration `yaml:"min_request_spacing"`
	// DisableAfterParseFailures disables a source after this many consecutive
	// parse failures. Transient failures never disable a source.
	DisableAfterParseFailures int    `yaml:"disable_after_parse_failures"`
	UserAgent                 string `yaml:"user_agent"`
}

type ClassifyConfig struct {
	BookmakerIndicatorFragment string   `yaml:"bookmaker_indicator_fragment"`
	TieBreakKeywords           []string `yaml:"tie_break_keywords"`
}

type SourceConfig struct {
	Name     string `yaml:"name"`
	Priority int    `yaml:"priority"`
	Enabled  *bool  `yaml:"enabled"`
	BaseURL  string `yaml:"base_url"`
	// Headless applies to browser-driven sources only.
	Headless *bool `yaml:"headless"`
}

type WebConfig struct {
	Port              int           `yaml:"port"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
	// AlertCooldown suppresses repeat tie-break alerts for the same match.
	AlertCooldown time.Duration `yaml:"alert_cooldown"`
}

type AMQPConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	FilePath string `yaml:"file_path"`
}

// Load reads, parses and normalizes a config file.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Default returns a config with all defaults applied and no sources.
func Default() *Config {
	var config Config
	config.applyDefaults()
	return &config
}

func (c *Config) applyDefaults() {
	if c.Monitor.Interval == 0 {
		c.Monitor.Interval = DefaultRefreshInterval
	}
	if c.Monitor.Interval < MinRefreshInterval {
		c.Monitor.Interval = MinRefreshInterval
	}
	if c.Monitor.Interval > MaxRefreshInterval {
		c.Monitor.Interval = MaxRefreshInterval
	}
	if c.Monitor.MissThreshold <= 0 {
		c.Monitor.MissThreshold = 3
	}
	if c.Monitor.RecencyTiebreak == nil {
		t := true
		c.Monitor.RecencyTiebreak = &t
	}

	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = 45 * time.Second
	}
	if c.Fetch.MaxRetries < 0 {
		c.Fetch.MaxRetries = 0
	} else if c.Fetch.MaxRetries == 0 {
		c.Fetch.MaxRetries = 2
	}
	if c.Fetch.RetryBaseDelay <= 0 {
		c.Fetch.RetryBaseDelay = 2 * time.Second
	}
	if c.Fetch.MaxConcurrent <= 0 {
		c.Fetch.MaxConcurrent = 4
	}
	if c.Fetch.MinRequestSpacing <= 0 {
		c.Fetch.MinRequestSpacing = 8 * time.Second
	}
	if c.Fetch.DisableAfterParseFailures <= 0 {
		c.Fetch.DisableAfterParseFailures = 3
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	}

	if c.Classify.BookmakerIndicatorFragment == "" {
		c.Classify.BookmakerIndicatorFragment = "/549/"
	}
	if len(c.Classify.TieBreakKeywords) == 0 {
		c.Classify.TieBreakKeywords = []string{
			"match tie break",
			"match tie-break",
			"super tiebreak",
			"first to 10",
		}
	}

	if c.Web.ReadHeaderTimeout <= 0 {
		c.Web.ReadHeaderTimeout = 10 * time.Second
	}
	if c.Telegram.AlertCooldown <= 0 {
		c.Telegram.AlertCooldown = 60 * time.Minute
	}
	if c.AMQP.Exchange == "" {
		c.AMQP.Exchange = "courtwatch.events"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) validate() error {
	seen := make(map[string]bool)
	for i, src := range c.Sources {
		name := strings.ToLower(strings.TrimSpace(src.Name))
		if name == "" {
			return fmt.Errorf("sources[%d]: name is required", i)
		}
		if seen[name] {
			return fmt.Errorf("sources[%d]: duplicate source %q", i, name)
		}
		seen[name] = true
		if src.Priority <= 0 {
			return fmt.Errorf("sources[%d] (%s): priority must be a positive integer", i, name)
		}
	}
	return nil
}

// SourceEnabled reports whether a source config is active. Sources are
// enabled unless explicitly turned off.
func (s *SourceConfig) SourceEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// HeadlessBrowser defaults to true for browser-driven sources.
func (s *SourceConfig) HeadlessBrowser() bool {
	return s.Headless == nil || *s.Headless
}

// RecencyTiebreakEnabled reports the precedence tie policy (default on).
func (c *MonitorConfig) RecencyTiebreakEnabled() bool {
	return c.RecencyTiebreak == nil || *c.RecencyTiebreak
}
