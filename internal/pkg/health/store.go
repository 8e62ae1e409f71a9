// Package health tracks per-source fetch outcomes: consecutive failure
// counters, disable state and last-cycle statistics. The fetch executor
// writes it, the web API reads it.
package health

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// SourceStatus is the externally visible health of one source.
type SourceStatus struct {
	Name                 string        `json:"name"`
	Disabled             bool          `json:"disabled"`
	ConsecutiveTransient int           `json:"consecutive_transient_failures"`
	ConsecutiveParse     int           `json:"consecutive_parse_failures"`
	LastSuccess          time.Time     `json:"last_success,omitempty"`
	LastError            string        `json:"last_error,omitempty"`
	LastErrorAt          time.Time     `json:"last_error_at,omitempty"`
	LastFetchDuration    time.Duration `json:"last_fetch_duration_ns"`
	LastMatchCount       int           `json:"last_match_count"`
	TotalFetches         int64         `json:"total_fetches"`
	TotalFailures        int64         `json:"total_failures"`
}

// Store holds health state for all sources. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	sources map[string]*SourceStatus
}

func NewStore() *Store {
	return &Store{sources: make(map[string]*SourceStatus)}
}

func (s *Store) get(name string) *SourceStatus {
	st, ok := s.sources[name]
	if !ok {
		st = &SourceStatus{Name: name}
		s.sources[name] = st
	}
	return st
}

// RecordSuccess resets failure counters for a source.
func (s *Store) RecordSuccess(name string, matchCount int, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(name)
	st.ConsecutiveTransient = 0
	st.ConsecutiveParse = 0
	st.LastSuccess = time.Now()
	st.LastFetchDuration = duration
	st.LastMatchCount = matchCount
	st.TotalFetches++
}

// RecordTransientFailure bumps the transient counter. Transient failures
// never disable a source.
func (s *Store) RecordTransientFailure(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(name)
	st.ConsecutiveTransient++
	st.TotalFetches++
	st.TotalFailures++
	st.LastError = err.Error()
	st.LastErrorAt = time.Now()
}

// RecordParseFailure bumps the parse counter and disables the source once it
// reaches disableAfter consecutive parse failures. Returns true when the
// source was disabled by this call.
func (s *Store) RecordParseFailure(name string, err error, disableAfter int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(name)
	st.ConsecutiveParse++
	st.TotalFetches++
	st.TotalFailures++
	st.LastError = err.Error()
	st.LastErrorAt = time.Now()
	if !st.Disabled && disableAfter > 0 && st.ConsecutiveParse >= disableAfter {
		st.Disabled = true
		slog.Error("Source disabled after repeated parse failures",
			"source", name, "consecutive_parse_failures", st.ConsecutiveParse)
		return true
	}
	return false
}

// IsDisabled reports whether a source has been auto-disabled.
func (s *Store) IsDisabled(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.sources[name]
	return ok && st.Disabled
}

// Enable clears the disabled flag and parse counter (operator action via API).
func (s *Store) Enable(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.get(name)
	st.Disabled = false
	st.ConsecutiveParse = 0
}

// Statuses returns a sorted copy of all source statuses.
func (s *Store) Statuses() []SourceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SourceStatus, 0, len(s.sources))
	for _, st := range s.sources {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Degraded returns names of sources with at least one consecutive failure.
func (s *Store) Degraded() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for name, st := range s.sources {
		if st.Disabled || st.ConsecutiveTransient > 0 || st.ConsecutiveParse > 0 {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
