package performance

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/richxcame/fleet-performance/internal/activity"
	"github.com/richxcame/fleet-performance/pkg/cache"
	"github.com/richxcame/fleet-performance/pkg/common"
	"github.com/richxcame/fleet-performance/pkg/config"
	"github.com/richxcame/fleet-performance/pkg/eventbus"
	"github.com/richxcame/fleet-performance/pkg/logger"
	"github.com/richxcame/fleet-performance/pkg/resilience"
	"github.com/richxcame/fleet-performance/pkg/tracing"
	"github.com/richxcame/fleet-performance/pkg/validation"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	tracerName     = "performance"
	eventSource    = "performance-service"
	publishTimeout = 5 * time.Second
)

// Service rebuilds driver activity reports from the feeds and caches the
// resulting bundles per driver, range and feed version.
type Service struct {
	logs      StateLogFeed
	trips     TripFeed
	source    string
	cache     *cache.Manager
	versions  *FeedVersions
	publisher eventbus.Publisher
	engine    *activity.Engine
	cfg       config.PerformanceConfig
	sem       *semaphore.Weighted
	now       func() time.Time
}

// NewService creates a new performance service. publisher may be nil.
func NewService(logs StateLogFeed, trips TripFeed, source string, cache *cache.Manager, versions *FeedVersions, publisher eventbus.Publisher, cfg config.PerformanceConfig) *Service {
	concurrency := cfg.ComputeConcurrency
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Service{
		logs:      logs,
		trips:     trips,
		source:    source,
		cache:     cache,
		versions:  versions,
		publisher: publisher,
		engine: activity.NewEngine(activity.Config{
			ShortGap:          cfg.ShortGap(),
			LongGap:           cfg.LongGap(),
			MinEventDuration:  cfg.MinEventDuration(),
			HotspotResolution: cfg.HotspotResolution,
		}),
		cfg: cfg,
		sem: semaphore.NewWeighted(int64(concurrency)),
		now: time.Now,
	}
}

// ========================================
// REPORTS
// ========================================

// GetReport returns the full result bundle for a driver and range
func (s *Service) GetReport(ctx context.Context, driverID string, q PerformanceQuery) (*ReportResult, error) {
	r, err := s.resolve(q)
	if err != nil {
		return nil, err
	}
	return s.report(ctx, driverID, r)
}

// GetTimeline returns the per-day segment timeline
func (s *Service) GetTimeline(ctx context.Context, driverID string, q PerformanceQuery) (*TimelineView, error) {
	res, err := s.GetReport(ctx, driverID, q)
	if err != nil {
		return nil, err
	}
	return &TimelineView{Days: res.Report.Days, Meta: res.Meta}, nil
}

// GetEvents returns the activity events of the range, or of one local day when a date is given
func (s *Service) GetEvents(ctx context.Context, driverID string, q EventsQuery) (*EventsView, error) {
	if err := validation.ValidateStruct(q); err != nil {
		return nil, validationError(err)
	}
	r, err := s.resolve(q.PerformanceQuery)
	if err != nil {
		return nil, err
	}
	if q.Date != "" {
		if err := validateDay(q.Date, r); err != nil {
			return nil, err
		}
	}

	res, err := s.report(ctx, driverID, r)
	if err != nil {
		return nil, err
	}

	events := res.Report.Events
	if q.Date != "" {
		events, err = activity.EventsForDay(events, q.Date, r.Location)
		if err != nil {
			return nil, common.NewBadRequestError(err.Error(), err)
		}
	}
	if events == nil {
		events = []activity.ActivityEvent{}
	}
	return &EventsView{Date: q.Date, Events: events, Meta: res.Meta}, nil
}

// LocateEvent returns the event to focus for a timestamp on a local day
func (s *Service) LocateEvent(ctx context.Context, driverID string, q LocateQuery) (*LocatedEvent, error) {
	if err := validation.ValidateStruct(q); err != nil {
		return nil, validationError(err)
	}
	r, err := s.resolve(q.PerformanceQuery)
	if err != nil {
		return nil, err
	}
	if err := validateDay(q.Date, r); err != nil {
		return nil, err
	}

	res, err := s.report(ctx, driverID, r)
	if err != nil {
		return nil, err
	}

	ev, ok, err := activity.LocateEvent(res.Report.Events, q.TS, q.Date, r.Location)
	if err != nil {
		return nil, common.NewBadRequestError(err.Error(), err)
	}
	if !ok {
		return nil, common.NewNotFoundError(fmt.Sprintf("no activity on %s", q.Date), nil).
			WithCode(common.CodeEventNotFound)
	}
	return &LocatedEvent{Date: q.Date, TS: q.TS, Event: ev, Meta: res.Meta}, nil
}

// GetKPIs returns range and daily KPIs with the summaries built on them
func (s *Service) GetKPIs(ctx context.Context, driverID string, q PerformanceQuery) (*KPIView, error) {
	res, err := s.GetReport(ctx, driverID, q)
	if err != nil {
		return nil, err
	}
	rep := res.Report
	return &KPIView{
		Kpis:      rep.Kpis,
		Daily:     rep.Daily,
		Activity:  rep.Activity,
		Rides:     rep.Rides,
		Scores:    rep.Scores,
		TripStats: rep.TripStats,
		Meta:      res.Meta,
	}, nil
}

// GetHourly returns the hourly overview per day
func (s *Service) GetHourly(ctx context.Context, driverID string, q PerformanceQuery) (*HourlyView, error) {
	res, err := s.GetReport(ctx, driverID, q)
	if err != nil {
		return nil, err
	}
	return &HourlyView{Days: res.Report.Hourly, Meta: res.Meta}, nil
}

// ========================================
// INVALIDATION
// ========================================

// Invalidate bumps the driver's feed version so the next request recomputes
func (s *Service) Invalidate(ctx context.Context, driverID string) (*InvalidationResult, error) {
	version, err := s.versions.Bump(ctx, driverID)
	if err != nil {
		return nil, common.NewInternalError("failed to invalidate cached reports", err)
	}
	recordInvalidation()

	logger.InfoContext(ctx, "driver reports invalidated",
		zap.String("driver_id", driverID),
		zap.Int64("feed_version", version),
	)
	return &InvalidationResult{DriverID: driverID, FeedVersion: version}, nil
}

// ========================================
// COMPUTATION
// ========================================

func (s *Service) resolve(q PerformanceQuery) (activity.DateRange, error) {
	return resolveRange(q, s.now(), s.cfg.Location(), s.cfg.MaxRangeDays)
}

func (s *Service) report(ctx context.Context, driverID string, r activity.DateRange) (*ReportResult, error) {
	start := time.Now()
	meta := ResultMeta{
		DriverID: driverID,
		From:     r.From,
		To:       r.To,
		Timezone: r.Location.String(),
	}

	version, err := s.versions.Current(ctx, driverID)
	if err != nil {
		// without a version the cache key is unknown, so skip the cache entirely
		logger.WarnContext(ctx, "feed version unavailable, bypassing report cache",
			zap.String("driver_id", driverID), zap.Error(err))
		s.recordOutcome(ctx, outcomeBypass)

		rep, err := s.compute(ctx, driverID, r)
		if err != nil {
			return nil, err
		}
		meta.ComputeMS = time.Since(start).Milliseconds()
		return &ReportResult{Report: rep, Meta: meta}, nil
	}
	meta.FeedVersion = version

	key := cache.Keys.Report(driverID, s.rangeHash(r), version)
	var rep activity.Report
	hit, err := s.cache.GetOrCompute(ctx, key, s.cfg.CacheTTL(), &rep, func(ctx context.Context) (interface{}, error) {
		return s.compute(ctx, driverID, r)
	})
	if err != nil {
		return nil, err
	}

	meta.Cached = hit
	meta.ComputeMS = time.Since(start).Milliseconds()
	if hit {
		s.recordOutcome(ctx, outcomeHit)
	} else {
		s.recordOutcome(ctx, outcomeMiss)
		s.publishComputed(ctx, &rep, meta)
	}
	return &ReportResult{Report: &rep, Meta: meta}, nil
}

func (s *Service) recordOutcome(ctx context.Context, outcome string) {
	recordComputation(outcome)
	tracing.AddSpanAttributes(ctx, tracing.CacheOutcomeKey.String(outcome))
}

// rangeHash identifies the range and the thresholds a report was built with
func (s *Service) rangeHash(r activity.DateRange) string {
	cfg := s.engine.Config()
	return cache.Hash(
		strconv.FormatInt(r.From.Unix(), 10),
		strconv.FormatInt(r.To.Unix(), 10),
		r.Location.String(),
		cfg.ShortGap.String(),
		cfg.LongGap.String(),
		cfg.MinEventDuration.String(),
		strconv.Itoa(cfg.HotspotResolution),
	)
}

func (s *Service) compute(ctx context.Context, driverID string, r activity.DateRange) (*activity.Report, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	var rep *activity.Report
	err := tracing.TraceBusinessLogic(ctx, tracerName, "performance.compute",
		tracing.DriverRangeAttributes(driverID, r.From, r.To),
		func(ctx context.Context) error {
			logs, trips, err := s.fetchFeeds(ctx, driverID, r)
			if err != nil {
				return err
			}

			engine := s.engine.WithObserver(func(stage string, elapsed time.Duration) {
				observeStage(stage, elapsed)
				tracing.RecordStage(ctx, stage, elapsed)
			})
			rep = engine.Compute(activity.Input{DriverID: driverID, Range: r, Logs: logs, Trips: trips})
			return nil
		})
	if err != nil {
		return nil, err
	}

	recordDiagnostics(rep.Diagnostics)
	d := rep.Diagnostics
	logger.DebugContext(ctx, "driver report computed",
		zap.String("driver_id", driverID),
		zap.String("trace_id", tracing.GetTraceID(ctx)),
		zap.Int("raw_logs", d.RawLogs),
		zap.Int("dropped_logs", d.DroppedLogs),
		zap.Int("synthetic_logs", d.SyntheticLogs),
		zap.Int("skipped_trips", d.SkippedTrips),
		zap.Int("matched_trips", d.MatchedTrips),
		zap.Int("filtered_events", d.FilteredEvents),
	)
	return rep, nil
}

// fetchFeeds reads both feeds concurrently. Either failing fails the request.
func (s *Service) fetchFeeds(ctx context.Context, driverID string, r activity.DateRange) ([]activity.StateLogEntry, []activity.TripRecord, error) {
	var (
		logs  []activity.StateLogEntry
		trips []activity.TripRecord
	)
	attrs := tracing.DriverRangeAttributes(driverID, r.From, r.To)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		err := tracing.TraceFeedFetch(gctx, tracerName, FeedStateLogs, s.source, attrs, func(ctx context.Context) (int, error) {
			var err error
			logs, err = s.logs.FetchStateLogs(ctx, driverID, r.From, r.To)
			return len(logs), err
		})
		recordFeedFetch(FeedStateLogs, s.source, time.Since(start), err)
		return feedError(FeedStateLogs, err)
	})
	g.Go(func() error {
		start := time.Now()
		err := tracing.TraceFeedFetch(gctx, tracerName, FeedOrders, s.source, attrs, func(ctx context.Context) (int, error) {
			var err error
			trips, err = s.trips.FetchTrips(ctx, driverID, r.From, r.To)
			return len(trips), err
		})
		recordFeedFetch(FeedOrders, s.source, time.Since(start), err)
		return feedError(FeedOrders, err)
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return logs, trips, nil
}

// feedError maps a feed failure onto the status the caller should see
func feedError(feed string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, resilience.ErrCircuitOpen):
		return common.NewServiceUnavailableError(fmt.Sprintf("%s feed temporarily unavailable", feed), err)
	default:
		return common.NewBadGatewayError(fmt.Sprintf("failed to fetch %s feed", feed), err)
	}
}

func (s *Service) publishComputed(ctx context.Context, rep *activity.Report, meta ResultMeta) {
	if s.publisher == nil {
		return
	}

	event, err := eventbus.NewEvent(eventbus.SubjectReportComputed, eventSource, eventbus.ReportComputedData{
		DriverID:     meta.DriverID,
		From:         meta.From.Unix(),
		To:           meta.To.Unix(),
		Timezone:     meta.Timezone,
		FeedVersion:  meta.FeedVersion,
		ComputeMS:    meta.ComputeMS,
		GrossEarning: rep.Kpis.GrossEarnings,
		WorkingHours: rep.Activity.TotalHours,
	})
	if err != nil {
		logger.WarnContext(ctx, "failed to build report event", zap.Error(err))
		return
	}

	pubCtx := context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(pubCtx, publishTimeout)
		defer cancel()
		if err := s.publisher.Publish(ctx, eventbus.SubjectReportComputed, event); err != nil {
			logger.WarnContext(ctx, "failed to publish report event",
				zap.String("driver_id", meta.DriverID), zap.Error(err))
		}
	}()
}
