package performance

import (
	"context"
	"time"

	"github.com/richxcame/fleet-performance/internal/activity"
)

// StateLogFeed delivers a driver's raw state changes in [from, to)
type StateLogFeed interface {
	FetchStateLogs(ctx context.Context, driverID string, from, to time.Time) ([]activity.StateLogEntry, error)
}

// TripFeed delivers a driver's orders created in [from, to)
type TripFeed interface {
	FetchTrips(ctx context.Context, driverID string, from, to time.Time) ([]activity.TripRecord, error)
}
