package activity

import (
	"time"

	"github.com/richxcame/fleet-performance/pkg/geo"
)

// Config holds the engine thresholds
type Config struct {
	ShortGap          time.Duration
	LongGap           time.Duration
	MinEventDuration  time.Duration
	HotspotResolution int
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		ShortGap:          DefaultShortGap,
		LongGap:           DefaultLongGap,
		MinEventDuration:  DefaultMinEventDuration,
		HotspotResolution: geo.H3ResolutionHotspot,
	}
}

// Input is everything the engine needs for one driver and range
type Input struct {
	DriverID string
	Range    DateRange
	Logs     []StateLogEntry
	Trips    []TripRecord
}

// Stage names reported to StageObserver
const (
	StageNormalize = "normalize"
	StageSegment   = "segment"
	StageMatch     = "match"
	StageEvents    = "events"
	StageMetrics   = "metrics"
)

// StageObserver is notified after each pipeline stage completes.
type StageObserver func(stage string, elapsed time.Duration)

// Engine runs the reconstruction pipeline. It holds no per-request state and
// is safe for concurrent use.
type Engine struct {
	cfg        Config
	normalizer *Normalizer
	segmenter  *Segmenter
	matcher    *Matcher
	events     *EventBuilder
	aggregator *Aggregator
	observe    StageObserver
}

// NewEngine creates an engine with the given thresholds.
func NewEngine(cfg Config) *Engine {
	defaults := DefaultConfig()
	if cfg.ShortGap <= 0 {
		cfg.ShortGap = defaults.ShortGap
	}
	if cfg.LongGap <= 0 {
		cfg.LongGap = defaults.LongGap
	}
	if cfg.MinEventDuration < 0 {
		cfg.MinEventDuration = defaults.MinEventDuration
	}
	if cfg.HotspotResolution <= 0 {
		cfg.HotspotResolution = defaults.HotspotResolution
	}
	return &Engine{
		cfg:        cfg,
		normalizer: NewNormalizer(cfg.ShortGap, cfg.LongGap),
		segmenter:  NewSegmenter(),
		matcher:    NewMatcher(),
		events:     NewEventBuilder(cfg.MinEventDuration),
		aggregator: NewAggregator(),
	}
}

// WithObserver returns a copy of the engine reporting stage timings.
func (e *Engine) WithObserver(observe StageObserver) *Engine {
	clone := *e
	clone.observe = observe
	return &clone
}

// Config returns the engine thresholds.
func (e *Engine) Config() Config {
	return e.cfg
}

// Compute rebuilds the driver's timeline and KPIs for the range. It never
// fails: malformed entries are skipped and empty feeds yield an inactive
// timeline with zero KPIs.
func (e *Engine) Compute(in Input) *Report {
	r := in.Range
	if r.Location == nil {
		r.Location = time.UTC
	}
	report := &Report{
		DriverID: in.DriverID,
		From:     r.From,
		To:       r.To,
		Timezone: r.Location.String(),
	}
	report.Diagnostics.RawLogs = len(in.Logs)

	start := time.Now()
	log, dropped := e.normalizer.Normalize(in.Logs)
	report.Diagnostics.DroppedLogs = dropped
	report.Diagnostics.SyntheticLogs = log.SyntheticCount()
	start = e.stage(StageNormalize, start)

	report.Days = e.segmenter.Segment(log, r)
	start = e.stage(StageSegment, start)

	matches, skipped := e.matcher.Match(report.Days, in.Trips)
	report.Matches = matches
	report.Diagnostics.SkippedTrips = skipped
	report.Diagnostics.MatchedTrips = len(matches)
	report.Diagnostics.UnmatchedRides = countOnRide(report.Days) - len(matches)
	start = e.stage(StageMatch, start)

	report.Events, report.Diagnostics.FilteredEvents = e.events.Build(report.Days)
	start = e.stage(StageEvents, start)

	report.Kpis = e.aggregator.Range(in.Trips, report.Days, r)
	report.Daily = e.aggregator.Daily(in.Trips, report.Days)
	report.Hourly = e.aggregator.Hourly(in.Trips, report.Days, r.Location)
	report.Activity = Activity(report.Days)
	report.Rides = Rides(in.Trips, r)
	report.Scores = Scores(in.Trips, r)
	report.TripStats = Stats(in.Trips, r)
	report.Hotspots = Hotspots(report.Days, e.cfg.HotspotResolution)
	e.stage(StageMetrics, start)

	if report.Matches == nil {
		report.Matches = []Match{}
	}
	return report
}

func (e *Engine) stage(name string, start time.Time) time.Time {
	now := time.Now()
	if e.observe != nil {
		e.observe(name, now.Sub(start))
	}
	return now
}

func countOnRide(days []DayBucket) int {
	n := 0
	for _, d := range days {
		for _, seg := range d.Segments {
			if seg.State == StateOnRide {
				n++
			}
		}
	}
	return n
}
