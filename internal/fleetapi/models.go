package fleetapi

import (
	"fmt"

	"github.com/richxcame/fleet-performance/internal/activity"
	"github.com/richxcame/fleet-performance/pkg/validation"
)

// Upstream endpoint paths
const (
	stateLogsPath = "/fleetIntegration/v1/getFleetStateLogs"
	ordersPath    = "/fleetIntegration/v1/getFleetOrders"
)

// MaxPageSize is the largest page the upstream accepts
const MaxPageSize = 1000

type pageRequest struct {
	CompanyID int64 `json:"company_id"`
	Limit     int   `json:"limit"`
	Offset    int   `json:"offset"`
	StartTS   int64 `json:"start_ts"`
	EndTS     int64 `json:"end_ts"`
}

// envelope is the common response wrapper; Code 0 means success
type envelope[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type stateLogsData struct {
	StateLogs []stateLog `json:"state_logs"`
}

type ordersData struct {
	Orders []order `json:"orders"`
}

type stateLog struct {
	DriverUUID  string   `json:"driver_uuid"`
	VehicleUUID string   `json:"vehicle_uuid"`
	Created     int64    `json:"created"`
	State       string   `json:"state"`
	Lat         *float64 `json:"lat"`
	Lng         *float64 `json:"lng"`
}

type order struct {
	OrderReference         string   `json:"order_reference"`
	DriverUUID             string   `json:"driver_uuid"`
	PaymentMethod          string   `json:"payment_method"`
	OrderStatus            string   `json:"order_status"`
	DriverCancelledReason  string   `json:"driver_cancelled_reason"`
	RideDistance           *float64 `json:"ride_distance"`
	OrderCreatedTimestamp  *int64   `json:"order_created_timestamp"`
	OrderAcceptedTimestamp *int64   `json:"order_accepted_timestamp"`
	OrderPickupTimestamp   *int64   `json:"order_pickup_timestamp"`
	OrderDropOffTimestamp  *int64   `json:"order_drop_off_timestamp"`
	OrderFinishedTimestamp *int64   `json:"order_finished_timestamp"`

	// Prices arrive either nested under order_price or flat on the order
	OrderPrice *price `json:"order_price"`
	price
}

type price struct {
	RidePrice       *float64 `json:"ride_price"`
	Tip             *float64 `json:"tip"`
	CancellationFee *float64 `json:"cancellation_fee"`
	NetEarnings     *float64 `json:"net_earnings"`
}

// toEntry drops a position that is half-present or out of range
func (l stateLog) toEntry() activity.StateLogEntry {
	e := activity.StateLogEntry{
		ID:        fmt.Sprintf("%s_%d", l.DriverUUID, l.Created),
		Timestamp: l.Created,
		State:     l.State,
	}
	if l.Lat != nil && l.Lng != nil && validation.ValidateCoordinates(*l.Lat, *l.Lng) == nil {
		e.Lat, e.Lng = l.Lat, l.Lng
	}
	return e
}

func (o order) toTrip() activity.TripRecord {
	t := activity.TripRecord{
		ID:                    o.OrderReference,
		CreatedAt:             ts(o.OrderCreatedTimestamp),
		AcceptedAt:            ts(o.OrderAcceptedTimestamp),
		PickupAt:              ts(o.OrderPickupTimestamp),
		FinishedAt:            ts(o.OrderFinishedTimestamp),
		DropoffAt:             ts(o.OrderDropOffTimestamp),
		Status:                o.OrderStatus,
		DriverCancelledReason: o.DriverCancelledReason,
		DistanceMeters:        num(o.RideDistance),
		PaymentMethod:         o.PaymentMethod,
	}
	p := o.price
	if o.OrderPrice != nil {
		p = *o.OrderPrice
	}
	t.RidePrice = num(p.RidePrice)
	t.Tip = num(p.Tip)
	t.CancellationFee = num(p.CancellationFee)
	t.NetEarnings = num(p.NetEarnings)
	return t
}

func ts(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

func num(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
