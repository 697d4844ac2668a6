package performance

import (
	"context"
	"fmt"

	"github.com/richxcame/fleet-performance/pkg/cache"
)

// CounterStore is the subset of Redis used for feed versions. The service
// wires a redis.RetryingClient so both calls retry transient failures.
type CounterStore interface {
	GetInt64(ctx context.Context, key string) (int64, error)
	IncrCounter(ctx context.Context, key string) (int64, error)
}

// FeedVersions tracks a per-driver counter that is part of every report cache
// key. Bumping it orphans the driver's cached reports, which then expire by TTL.
type FeedVersions struct {
	store CounterStore
}

// NewFeedVersions creates a feed version tracker
func NewFeedVersions(store CounterStore) *FeedVersions {
	return &FeedVersions{store: store}
}

// Current returns the driver's feed version; a driver never invalidated is at 0
func (v *FeedVersions) Current(ctx context.Context, driverID string) (int64, error) {
	key := cache.Keys.FeedVersion(driverID)
	version, err := v.store.GetInt64(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("read feed version: %w", err)
	}
	return version, nil
}

// Bump increments the driver's feed version and returns the new value
func (v *FeedVersions) Bump(ctx context.Context, driverID string) (int64, error) {
	key := cache.Keys.FeedVersion(driverID)
	version, err := v.store.IncrCounter(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("bump feed version: %w", err)
	}
	return version, nil
}
