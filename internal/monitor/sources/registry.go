package sources

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"courtwatch/internal/pkg/config"
)

// Factory builds a source adapter from the shared config and its own source
// entry.
type Factory func(cfg *config.Config, src config.SourceConfig) (Source, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register adds a source factory under a name. Called from adapter package
// init(); duplicate or empty registrations are programmer errors.
func Register(name string, f Factory) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		panic("sources: empty name in Register")
	}
	if f == nil {
		panic("sources: nil factory in Register for " + n)
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[n]; exists {
		panic("sources: duplicate registration for " + n)
	}
	registry[n] = f
}

func FactoryByName(name string) (Factory, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[n]
	return f, ok
}

func AvailableNames() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Build instantiates all enabled sources from config, in config order.
// Unknown names are an error so a typo in the config fails fast.
func Build(cfg *config.Config) ([]Source, error) {
	var out []Source
	for _, src := range cfg.Sources {
		if !src.SourceEnabled() {
			continue
		}
		f, ok := FactoryByName(src.Name)
		if !ok {
			return nil, fmt.Errorf("unknown source %q (available: %v)", src.Name, AvailableNames())
		}
		s, err := f(cfg, src)
		if err != nil {
			return nil, fmt.Errorf("failed to build source %q: %w", src.Name, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// Priorities extracts the source precedence order from config.
func Priorities(cfg *config.Config) map[string]int {
	out := make(map[string]int, len(cfg.Sources))
	for _, src := range cfg.Sources {
		out[strings.ToLower(strings.TrimSpace(src.Name))] = src.Priority
	}
	return out
}
