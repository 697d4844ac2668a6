package activity

import (
	"sort"
	"strings"
	"time"
)

// State is the reconstructed operational state of a driver
type State string

const (
	StateWaiting  State = "waiting"
	StateOnRide   State = "on_ride"
	StateInactive State = "inactive"
)

// IsWorking reports whether time spent in the state counts as working time.
func (s State) IsWorking() bool {
	return s == StateWaiting || s == StateOnRide
}

// ParseState maps a provider state label onto one of the three engine states.
func ParseState(label string) (State, bool) {
	s, ok := stateLabels[strings.ToLower(strings.TrimSpace(label))]
	return s, ok
}

var stateLabels = map[string]State{
	"waiting_orders": StateWaiting,
	"waiting":        StateWaiting,
	"has_order":      StateOnRide,
	"busy":           StateOnRide,
	"on_ride":        StateOnRide,
	"in_ride":        StateOnRide,
	"inactive":       StateInactive,
	"offline":        StateInactive,
}

// KnownStateLabels lists every lower-case feed label ParseState accepts, sorted
func KnownStateLabels() []string {
	labels := make([]string, 0, len(stateLabels))
	for label := range stateLabels {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// StateLogEntry is a raw state change as delivered by the state-log feed
type StateLogEntry struct {
	ID        string   `json:"id,omitempty"`
	Timestamp int64    `json:"timestamp"`
	State     string   `json:"state"`
	Lat       *float64 `json:"lat,omitempty"`
	Lng       *float64 `json:"lng,omitempty"`
}

// Origin tells feed entries apart from entries inserted by normalization
type Origin string

const (
	OriginFeed      Origin = "feed"
	OriginSynthetic Origin = "synthetic"
)

// LogEntry is a normalized state-log entry
type LogEntry struct {
	ID        string   `json:"id,omitempty"`
	Timestamp int64    `json:"timestamp"`
	State     State    `json:"state"`
	Lat       *float64 `json:"lat,omitempty"`
	Lng       *float64 `json:"lng,omitempty"`
	Origin    Origin   `json:"origin"`
}

// IsSynthetic reports whether the entry was inserted by the normalizer.
func (e LogEntry) IsSynthetic() bool {
	return e.Origin == OriginSynthetic
}

// NormalizedLog is the sorted, deduplicated and denoised output of the normalizer.
type NormalizedLog []LogEntry

// SyntheticCount returns the number of entries inserted by normalization.
func (l NormalizedLog) SyntheticCount() int {
	n := 0
	for _, e := range l {
		if e.IsSynthetic() {
			n++
		}
	}
	return n
}

// TripRecord is a trip (order) as delivered by the trip feed. Timestamps are
// epoch seconds; zero means absent.
type TripRecord struct {
	ID                    string  `json:"id"`
	CreatedAt             int64   `json:"created_at"`
	AcceptedAt            int64   `json:"accepted_at,omitempty"`
	PickupAt              int64   `json:"pickup_at,omitempty"`
	FinishedAt            int64   `json:"finished_at,omitempty"`
	DropoffAt             int64   `json:"dropoff_at,omitempty"`
	Status                string  `json:"status"`
	DriverCancelledReason string  `json:"driver_cancelled_reason,omitempty"`
	RidePrice             float64 `json:"ride_price"`
	NetEarnings           float64 `json:"net_earnings"`
	Tip                   float64 `json:"tip"`
	CancellationFee       float64 `json:"cancellation_fee"`
	DistanceMeters        float64 `json:"distance_meters"`
	PaymentMethod         string  `json:"payment_method,omitempty"`
}

// IntervalStart is the start of the trip's comparison interval.
func (t TripRecord) IntervalStart() int64 {
	switch {
	case t.PickupAt > 0:
		return t.PickupAt
	case t.AcceptedAt > 0:
		return t.AcceptedAt
	default:
		return t.CreatedAt
	}
}

// IntervalEnd is the end of the trip's comparison interval; zero when open.
func (t TripRecord) IntervalEnd() int64 {
	if t.FinishedAt > 0 {
		return t.FinishedAt
	}
	return t.DropoffAt
}

// EarningsTimestamp is the timestamp used to bucket the trip's earnings.
func (t TripRecord) EarningsTimestamp() int64 {
	if t.FinishedAt > 0 {
		return t.FinishedAt
	}
	return t.CreatedAt
}

// HasEarnings reports whether the trip produced any money for the driver.
func (t TripRecord) HasEarnings() bool {
	return t.NetEarnings > 0 || t.CancellationFee > 0 || t.RidePrice > 0
}

// GrossAmount is ride price plus tip plus cancellation fee.
func (t TripRecord) GrossAmount() float64 {
	return t.RidePrice + t.Tip + t.CancellationFee
}

// NetAmount is the net earnings (or cancellation fee when there are none) plus tip.
func (t TripRecord) NetAmount() float64 {
	if t.NetEarnings > 0 {
		return t.NetEarnings + t.Tip
	}
	return t.CancellationFee + t.Tip
}

// IsFinished reports whether the trip status marks a completed ride.
func (t TripRecord) IsFinished() bool {
	return strings.Contains(strings.ToLower(t.Status), "finished")
}

// Segment is a continuous interval of constant state inside one day
type Segment struct {
	Start        int64       `json:"start"`
	End          int64       `json:"end"`
	State        State       `json:"state"`
	SourceLogIDs []string    `json:"source_log_ids"`
	Lat          *float64    `json:"lat,omitempty"`
	Lng          *float64    `json:"lng,omitempty"`
	MatchedTrip  *TripRecord `json:"matched_trip,omitempty"`
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() int64 {
	return s.End - s.Start
}

// DayBucket holds the tiled timeline of one local calendar day
type DayBucket struct {
	LocalDate      string    `json:"local_date"`
	Start          int64     `json:"start"`
	End            int64     `json:"end"`
	Segments       []Segment `json:"segments"`
	WorkingSeconds int64     `json:"working_seconds"`
	OnRideSeconds  int64     `json:"on_ride_seconds"`
	WaitingSeconds int64     `json:"waiting_seconds"`
}

// CoveredSeconds is the span of the day inside the query range.
func (d DayBucket) CoveredSeconds() int64 {
	return d.End - d.Start
}

// Match records the assignment of one trip to one on-ride segment
type Match struct {
	DayIndex       int    `json:"day_index"`
	SegmentIndex   int    `json:"segment_index"`
	TripID         string `json:"trip_id"`
	OverlapSeconds int64  `json:"overlap_seconds"`
}

// ActivityEvent is a user-facing timeline event
type ActivityEvent struct {
	ID           string       `json:"id"`
	Start        int64        `json:"start"`
	End          int64        `json:"end"`
	State        State        `json:"state"`
	Duration     int64        `json:"duration"`
	SourceLogIDs []string     `json:"source_log_ids"`
	Trips        []TripRecord `json:"trips,omitempty"`
	Lat          *float64     `json:"lat,omitempty"`
	Lng          *float64     `json:"lng,omitempty"`
}

// Contains reports whether ts falls inside the event.
func (e ActivityEvent) Contains(ts int64) bool {
	return ts >= e.Start && ts < e.End
}

// KpiSnapshot is the KPI set computed for a range or a single day
type KpiSnapshot struct {
	GrossEarnings        float64 `json:"gross_earnings"`
	NetEarnings          float64 `json:"net_earnings"`
	EarningsPerHourGross float64 `json:"earnings_per_hour_gross"`
	EarningsPerHourNet   float64 `json:"earnings_per_hour_net"`
	AcceptanceRatePct    float64 `json:"acceptance_rate_pct"`
	UtilizationPct       float64 `json:"utilization_pct"`
	TotalDistanceKm      float64 `json:"total_distance_km"`
	WorkingSeconds       int64   `json:"working_seconds"`
	OnRideSeconds        int64   `json:"on_ride_seconds"`
	WaitingSeconds       int64   `json:"waiting_seconds"`
	EarningTrips         int     `json:"earning_trips"`
	CreatedTrips         int     `json:"created_trips"`
	AcceptedTrips        int     `json:"accepted_trips"`
	FinishedTrips        int     `json:"finished_trips"`
	FinishRatePct        float64 `json:"finish_rate_pct"`
}

// DailyKpis pairs a local date with its KPI snapshot
type DailyKpis struct {
	LocalDate string      `json:"local_date"`
	Kpis      KpiSnapshot `json:"kpis"`
}

// HourlyBucket is one local clock hour of a day
type HourlyBucket struct {
	Hour           int     `json:"hour"`
	Start          int64   `json:"start"`
	End            int64   `json:"end"`
	WorkingSeconds int64   `json:"working_seconds"`
	OnRideSeconds  int64   `json:"on_ride_seconds"`
	WaitingSeconds int64   `json:"waiting_seconds"`
	GrossEarnings  float64 `json:"gross_earnings"`
	NetEarnings    float64 `json:"net_earnings"`
	Trips          int     `json:"trips"`
}

// DailyHours groups the hourly overview of one day
type DailyHours struct {
	LocalDate string         `json:"local_date"`
	Hours     []HourlyBucket `json:"hours"`
}

// ActivitySummary breaks down working hours for the range
type ActivitySummary struct {
	TotalHours    float64 `json:"total_hours"`
	OnRideHours   float64 `json:"on_ride_hours"`
	WaitingHours  float64 `json:"waiting_hours"`
	OnBreakHours  float64 `json:"on_break_hours"`
	OnRidePct     float64 `json:"on_ride_pct"`
	WaitingPct    float64 `json:"waiting_pct"`
	OnBreakPct    float64 `json:"on_break_pct"`
	InactiveHours float64 `json:"inactive_hours"`
}

// RidesSummary classifies the trips created in range
type RidesSummary struct {
	Total            int `json:"total"`
	Accepted         int `json:"accepted"`
	Finished         int `json:"finished"`
	RiderCancelled   int `json:"rider_cancelled"`
	RiderNoShow      int `json:"rider_no_show"`
	Declined         int `json:"declined"`
	DriverCancelled  int `json:"driver_cancelled"`
	DriverRejected   int `json:"driver_rejected"`
	DriverNoResponse int `json:"driver_no_response"`
}

// PerformanceScores are 0-100 scores derived from the trips in range
type PerformanceScores struct {
	Income         int `json:"income"`
	Efficiency     int `json:"efficiency"`
	Sustainability int `json:"sustainability"`
	Overall        int `json:"overall"`
}

// TripStats describes ride durations and fares of finished trips
type TripStats struct {
	Count                 int     `json:"count"`
	MeanDurationSeconds   float64 `json:"mean_duration_seconds"`
	MedianDurationSeconds float64 `json:"median_duration_seconds"`
	P90DurationSeconds    float64 `json:"p90_duration_seconds"`
	MeanRidePrice         float64 `json:"mean_ride_price"`
}

// Hotspot is an H3 cell where the driver spent waiting time
type Hotspot struct {
	Cell           string  `json:"cell"`
	Lat            float64 `json:"lat"`
	Lng            float64 `json:"lng"`
	WaitingSeconds int64   `json:"waiting_seconds"`
	Segments       int     `json:"segments"`
}

// Diagnostics counts what the engine discarded or inserted
type Diagnostics struct {
	RawLogs        int `json:"raw_logs"`
	DroppedLogs    int `json:"dropped_logs"`
	SyntheticLogs  int `json:"synthetic_logs"`
	SkippedTrips   int `json:"skipped_trips"`
	MatchedTrips   int `json:"matched_trips"`
	UnmatchedRides int `json:"unmatched_rides"`
	FilteredEvents int `json:"filtered_events"`
}

// Report is the full result bundle for one driver and range
type Report struct {
	DriverID    string            `json:"driver_id"`
	From        time.Time         `json:"from"`
	To          time.Time         `json:"to"`
	Timezone    string            `json:"timezone"`
	Days        []DayBucket       `json:"days"`
	Events      []ActivityEvent   `json:"events"`
	Matches     []Match           `json:"matches"`
	Kpis        KpiSnapshot       `json:"kpis"`
	Daily       []DailyKpis       `json:"daily"`
	Hourly      []DailyHours      `json:"hourly"`
	Activity    ActivitySummary   `json:"activity"`
	Rides       RidesSummary      `json:"rides"`
	Scores      PerformanceScores `json:"scores"`
	TripStats   TripStats         `json:"trip_stats"`
	Hotspots    []Hotspot         `json:"hotspots"`
	Diagnostics Diagnostics       `json:"diagnostics"`
}
