package sources

import (
	"context"

	"courtwatch/internal/pkg/models"
)

// Source is the capability every adapter must provide: produce one full
// snapshot of the matches it currently sees. Anything implementing this can
// register and be polled.
//
// FetchSnapshot must not panic on ordinary failures. Network trouble is
// reported as a transient FetchError (retried), an unexpected page or payload
// structure as a parse FetchError (not retried; the source format has likely
// changed and needs code).
type Source interface {
	Name() string
	FetchSnapshot(ctx context.Context) (*models.Snapshot, error)
}

// AvailabilityChecker is an optional capability: a cheap reachability probe
// run before the real fetch. An unavailable source is skipped for the cycle
// without counting against its failure budget.
type AvailabilityChecker interface {
	Available(ctx context.Context) bool
}

// Closer is an optional capability for adapters holding external resources
// (browser contexts, keep-alive connections).
type Closer interface {
	Close() error
}
