package performance

import (
	"time"

	"github.com/richxcame/fleet-performance/internal/activity"
)

// Feed names used in logs, metrics and events
const (
	FeedStateLogs = "state_logs"
	FeedOrders    = "orders"
)

// PerformanceQuery selects the reporting range. Either Period or From/To is
// given; with neither the range defaults to today.
type PerformanceQuery struct {
	Period   string `form:"period" json:"period,omitempty" validate:"omitempty,period,excluded_with=From"`
	From     string `form:"from" json:"from,omitempty" validate:"omitempty,local_date,required_with=To"`
	To       string `form:"to" json:"to,omitempty" validate:"omitempty,local_date,required_with=From"`
	Timezone string `form:"tz" json:"tz,omitempty" validate:"omitempty,timezone"`
}

// EventsQuery narrows the event list to one local day
type EventsQuery struct {
	PerformanceQuery
	Date string `form:"date" json:"date,omitempty" validate:"omitempty,local_date"`
}

// LocateQuery asks for the event to focus for a timestamp on a day
type LocateQuery struct {
	PerformanceQuery
	Date string `form:"date" json:"date" validate:"required,local_date"`
	TS   int64  `form:"ts" json:"ts" validate:"required,gt=0"`
}

// ResultMeta describes how a result bundle was produced
type ResultMeta struct {
	DriverID    string    `json:"driver_id"`
	From        time.Time `json:"from"`
	To          time.Time `json:"to"`
	Timezone    string    `json:"timezone"`
	FeedVersion int64     `json:"feed_version"`
	Cached      bool      `json:"cached"`
	ComputeMS   int64     `json:"compute_ms"`
}

// ReportResult is a full report plus metadata
type ReportResult struct {
	Report *activity.Report
	Meta   ResultMeta
}

// TimelineView is the per-day segment timeline
type TimelineView struct {
	Days []activity.DayBucket `json:"days"`
	Meta ResultMeta           `json:"-"`
}

// EventsView is the event list, optionally limited to one day
type EventsView struct {
	Date   string                   `json:"date,omitempty"`
	Events []activity.ActivityEvent `json:"events"`
	Meta   ResultMeta               `json:"-"`
}

// LocatedEvent is the event to focus for a timestamp
type LocatedEvent struct {
	Date  string                 `json:"date"`
	TS    int64                  `json:"ts"`
	Event activity.ActivityEvent `json:"event"`
	Meta  ResultMeta             `json:"-"`
}

// KPIView groups range-level and daily KPIs with the summaries derived from them
type KPIView struct {
	Kpis      activity.KpiSnapshot       `json:"kpis"`
	Daily     []activity.DailyKpis       `json:"daily"`
	Activity  activity.ActivitySummary   `json:"activity"`
	Rides     activity.RidesSummary      `json:"rides"`
	Scores    activity.PerformanceScores `json:"scores"`
	TripStats activity.TripStats         `json:"trip_stats"`
	Meta      ResultMeta                 `json:"-"`
}

// HourlyView is the hourly overview per day
type HourlyView struct {
	Days []activity.DailyHours `json:"days"`
	Meta ResultMeta            `json:"-"`
}

// InvalidationResult reports the feed version after an invalidation
type InvalidationResult struct {
	DriverID    string `json:"driver_id"`
	FeedVersion int64  `json:"feed_version"`
}
