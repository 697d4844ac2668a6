package performance

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/richxcame/fleet-performance/internal/activity"
	"github.com/richxcame/fleet-performance/pkg/database"
)

// Repository reads the state-log and order feeds from their Postgres read tables
type Repository struct {
	db database.Querier
}

// NewRepository creates a new feed repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const stateLogsQuery = `
	SELECT id, created, state, lat, lng
	FROM driver_state_logs
	WHERE driver_id = $1
	  AND created >= $2 AND created < $3
	  AND lower(state) = ANY($4)
	ORDER BY created, id`

// FetchStateLogs returns the driver's state changes in [from, to).
// Labels the engine does not know are filtered out in SQL.
func (r *Repository) FetchStateLogs(ctx context.Context, driverID string, from, to time.Time) ([]activity.StateLogEntry, error) {
	args := []interface{}{driverID, from.Unix(), to.Unix(), pq.Array(activity.KnownStateLabels())}

	logs, err := database.RetryableQuery(ctx, r.db, "performance.state_logs", stateLogsQuery, args, func(rows *sql.Rows) ([]activity.StateLogEntry, error) {
		logs := []activity.StateLogEntry{}
		for rows.Next() {
			var (
				entry    activity.StateLogEntry
				lat, lng sql.NullFloat64
			)
			if err := rows.Scan(&entry.ID, &entry.Timestamp, &entry.State, &lat, &lng); err != nil {
				return nil, err
			}
			if lat.Valid && lng.Valid {
				entry.Lat = &lat.Float64
				entry.Lng = &lng.Float64
			}
			logs = append(logs, entry)
		}
		return logs, nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch state logs: %w", err)
	}
	return logs, nil
}

const tripsQuery = `
	SELECT order_reference, order_created_timestamp,
	       COALESCE(order_accepted_timestamp, 0), COALESCE(order_pickup_timestamp, 0),
	       COALESCE(order_finished_timestamp, 0), COALESCE(order_drop_off_timestamp, 0),
	       order_status, COALESCE(driver_cancelled_reason, ''),
	       COALESCE(ride_price, 0), COALESCE(net_earnings, 0), COALESCE(tip, 0),
	       COALESCE(cancellation_fee, 0), COALESCE(ride_distance, 0), COALESCE(payment_method, '')
	FROM driver_orders
	WHERE driver_id = $1
	  AND order_created_timestamp >= $2 AND order_created_timestamp < $3
	ORDER BY order_created_timestamp, order_reference`

// FetchTrips returns the driver's orders created in [from, to)
func (r *Repository) FetchTrips(ctx context.Context, driverID string, from, to time.Time) ([]activity.TripRecord, error) {
	args := []interface{}{driverID, from.Unix(), to.Unix()}

	trips, err := database.RetryableQuery(ctx, r.db, "performance.trips", tripsQuery, args, func(rows *sql.Rows) ([]activity.TripRecord, error) {
		trips := []activity.TripRecord{}
		for rows.Next() {
			var t activity.TripRecord
			if err := rows.Scan(
				&t.ID, &t.CreatedAt,
				&t.AcceptedAt, &t.PickupAt,
				&t.FinishedAt, &t.DropoffAt,
				&t.Status, &t.DriverCancelledReason,
				&t.RidePrice, &t.NetEarnings, &t.Tip,
				&t.CancellationFee, &t.DistanceMeters, &t.PaymentMethod,
			); err != nil {
				return nil, err
			}
			trips = append(trips, t)
		}
		return trips, nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch trips: %w", err)
	}
	return trips, nil
}
