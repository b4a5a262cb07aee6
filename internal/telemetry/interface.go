package telemetry

import (
	"context"
	"time"

	"codeberg.org/mutker/ironmon/internal/history"
)

// Collector records accepted samples for offline analysis. The
// in-memory history is never restored from it; it is a flight
// recorder, not persistence.
type Collector interface {
	Record(ctx context.Context, at time.Time, sample history.Sample) error
	Close() error
}

// Repository is the storage backend behind a Collector.
type Repository interface {
	Store(ctx context.Context, at time.Time, sample history.Sample) error
	Close() error
}
