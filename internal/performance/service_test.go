package performance

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/richxcame/fleet-performance/internal/activity"
	"github.com/richxcame/fleet-performance/pkg/cache"
	"github.com/richxcame/fleet-performance/pkg/common"
	"github.com/richxcame/fleet-performance/pkg/config"
	"github.com/richxcame/fleet-performance/pkg/eventbus"
	redisclient "github.com/richxcame/fleet-performance/pkg/redis"
	"github.com/richxcame/fleet-performance/pkg/resilience"
	"github.com/richxcame/fleet-performance/pkg/tracing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// ============================================================================
// Mocks
// ============================================================================

type mockFeeds struct {
	mock.Mock
}

func (m *mockFeeds) FetchStateLogs(ctx context.Context, driverID string, from, to time.Time) ([]activity.StateLogEntry, error) {
	args := m.Called(ctx, driverID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]activity.StateLogEntry), args.Error(1)
}

func (m *mockFeeds) FetchTrips(ctx context.Context, driverID string, from, to time.Time) ([]activity.TripRecord, error) {
	args := m.Called(ctx, driverID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]activity.TripRecord), args.Error(1)
}

type chanPublisher struct {
	subjects chan string
	events   chan *eventbus.Event
}

func newChanPublisher() *chanPublisher {
	return &chanPublisher{subjects: make(chan string, 4), events: make(chan *eventbus.Event, 4)}
}

func (p *chanPublisher) Publish(_ context.Context, subject string, event *eventbus.Event) error {
	p.subjects <- subject
	p.events <- event
	return nil
}

// ============================================================================
// Fixtures
// ============================================================================

const testDriver = "driver-1"

var (
	// Tuesday afternoon
	testNow   = time.Date(2024, 3, 5, 15, 0, 0, 0, time.UTC)
	dayStart  = time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	shiftFrom = time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC).Unix()
)

func testConfig() config.PerformanceConfig {
	return config.PerformanceConfig{
		ShortGapMinutes:    30,
		LongGapMinutes:     60,
		MinEventSeconds:    10,
		HotspotResolution:  8,
		DefaultTimezone:    "UTC",
		MaxRangeDays:       31,
		CacheTTLSeconds:    900,
		FeedSource:         config.FeedSourcePostgres,
		ComputeConcurrency: 2,
	}
}

func testLogs() []activity.StateLogEntry {
	return []activity.StateLogEntry{
		{ID: "l1", Timestamp: shiftFrom, State: "waiting_orders"},
		{ID: "l2", Timestamp: shiftFrom + 1800, State: "has_order"},
		{ID: "l3", Timestamp: shiftFrom + 3600, State: "waiting_orders"},
		{ID: "l4", Timestamp: shiftFrom + 5400, State: "inactive"},
	}
}

func testTrips() []activity.TripRecord {
	return []activity.TripRecord{
		{ID: "t1", CreatedAt: shiftFrom + 1700, AcceptedAt: shiftFrom + 1710, PickupAt: shiftFrom + 1900,
			FinishedAt: shiftFrom + 3500, DropoffAt: shiftFrom + 3500, Status: "finished",
			RidePrice: 20, NetEarnings: 16, DistanceMeters: 7000},
	}
}

func newTestService(t *testing.T, publisher eventbus.Publisher) (*Service, *mockFeeds, redismock.ClientMock) {
	t.Helper()
	db, rmock := redismock.NewClientMock()
	store := redisclient.Wrap(db)
	feeds := &mockFeeds{}
	svc := NewService(feeds, feeds, config.FeedSourcePostgres, cache.NewManager(store), NewFeedVersions(store), publisher, testConfig())
	svc.now = func() time.Time { return testNow }
	return svc, feeds, rmock
}

func todayRange() activity.DateRange {
	return activity.DateRange{From: dayStart, To: dayStart.Add(24 * time.Hour), Location: time.UTC}
}

func expectFeeds(feeds *mockFeeds) {
	feeds.On("FetchStateLogs", mock.Anything, testDriver, mock.Anything, mock.Anything).Return(testLogs(), nil).Once()
	feeds.On("FetchTrips", mock.Anything, testDriver, mock.Anything, mock.Anything).Return(testTrips(), nil).Once()
}

// ============================================================================
// GetReport
// ============================================================================

func TestGetReport_CacheMissComputes(t *testing.T) {
	svc, feeds, rmock := newTestService(t, nil)
	rmock.ExpectGet(cache.Keys.FeedVersion(testDriver)).SetVal("2")
	rmock.ExpectGet(cache.Keys.Report(testDriver, svc.rangeHash(todayRange()), 2)).RedisNil()
	expectFeeds(feeds)

	res, err := svc.GetReport(context.Background(), testDriver, PerformanceQuery{})

	require.NoError(t, err)
	assert.False(t, res.Meta.Cached)
	assert.Equal(t, int64(2), res.Meta.FeedVersion)
	assert.Equal(t, "UTC", res.Meta.Timezone)
	assert.True(t, dayStart.Equal(res.Meta.From))
	assert.Equal(t, testDriver, res.Report.DriverID)
	assert.InDelta(t, 20.0, res.Report.Kpis.GrossEarnings, 1e-9)
	assert.Equal(t, int64(5400), res.Report.Kpis.WorkingSeconds)
	require.Len(t, res.Report.Days, 1)
	feeds.AssertExpectations(t)
}

func TestGetReport_CacheHitSkipsFeeds(t *testing.T) {
	svc, feeds, rmock := newTestService(t, nil)
	payload, err := cache.Encode(activity.Report{
		DriverID: testDriver,
		Kpis:     activity.KpiSnapshot{GrossEarnings: 42},
	})
	require.NoError(t, err)

	rmock.ExpectGet(cache.Keys.FeedVersion(testDriver)).SetVal("5")
	rmock.ExpectGet(cache.Keys.Report(testDriver, svc.rangeHash(todayRange()), 5)).SetVal(string(payload))

	res, err := svc.GetReport(context.Background(), testDriver, PerformanceQuery{})

	require.NoError(t, err)
	assert.True(t, res.Meta.Cached)
	assert.InDelta(t, 42.0, res.Report.Kpis.GrossEarnings, 1e-9)
	feeds.AssertNotCalled(t, "FetchStateLogs", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	feeds.AssertNotCalled(t, "FetchTrips", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestGetReport_TagsSpanWithCacheOutcome(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	svc, _, rmock := newTestService(t, nil)
	payload, err := cache.Encode(activity.Report{DriverID: testDriver})
	require.NoError(t, err)
	rmock.ExpectGet(cache.Keys.FeedVersion(testDriver)).SetVal("3")
	rmock.ExpectGet(cache.Keys.Report(testDriver, svc.rangeHash(todayRange()), 3)).SetVal(string(payload))

	ctx, span := tracing.StartSpan(context.Background(), "test", "GET /performance")
	_, err = svc.GetReport(ctx, testDriver, PerformanceQuery{})
	span.End()

	require.NoError(t, err)
	spans := recorder.Ended()
	require.Len(t, spans, 1)
	var outcome string
	for _, a := range spans[0].Attributes() {
		if a.Key == tracing.CacheOutcomeKey {
			outcome = a.Value.AsString()
		}
	}
	assert.Equal(t, outcomeHit, outcome)
}

func TestGetReport_VersionFailureBypassesCache(t *testing.T) {
	svc, feeds, rmock := newTestService(t, nil)
	rmock.ExpectGet(cache.Keys.FeedVersion(testDriver)).SetErr(errors.New("WRONGTYPE Operation against a key holding the wrong kind of value"))
	expectFeeds(feeds)

	res, err := svc.GetReport(context.Background(), testDriver, PerformanceQuery{})

	require.NoError(t, err)
	assert.False(t, res.Meta.Cached)
	assert.InDelta(t, 20.0, res.Report.Kpis.GrossEarnings, 1e-9)
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestGetReport_PublishesComputedEvent(t *testing.T) {
	pub := newChanPublisher()
	svc, feeds, rmock := newTestService(t, pub)
	rmock.ExpectGet(cache.Keys.FeedVersion(testDriver)).RedisNil()
	rmock.ExpectGet(cache.Keys.Report(testDriver, svc.rangeHash(todayRange()), 0)).RedisNil()
	expectFeeds(feeds)

	_, err := svc.GetReport(context.Background(), testDriver, PerformanceQuery{})
	require.NoError(t, err)

	select {
	case subject := <-pub.subjects:
		assert.Equal(t, eventbus.SubjectReportComputed, subject)
		event := <-pub.events
		var data eventbus.ReportComputedData
		require.NoError(t, event.Decode(&data))
		assert.Equal(t, testDriver, data.DriverID)
		assert.Equal(t, dayStart.Unix(), data.From)
		assert.InDelta(t, 20.0, data.GrossEarning, 1e-9)
		assert.InDelta(t, 1.5, data.WorkingHours, 1e-9)
	case <-time.After(2 * time.Second):
		t.Fatal("report event was not published")
	}
}

func TestGetReport_FeedFailures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"upstream error", errors.New("connection refused"), http.StatusBadGateway, common.CodeUpstream},
		{"circuit open", resilience.ErrCircuitOpen, http.StatusServiceUnavailable, common.CodeCircuitOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, feeds, rmock := newTestService(t, nil)
			rmock.ExpectGet(cache.Keys.FeedVersion(testDriver)).SetVal("1")
			rmock.ExpectGet(cache.Keys.Report(testDriver, svc.rangeHash(todayRange()), 1)).RedisNil()
			feeds.On("FetchStateLogs", mock.Anything, testDriver, mock.Anything, mock.Anything).Return(nil, tt.err)
			feeds.On("FetchTrips", mock.Anything, testDriver, mock.Anything, mock.Anything).Return(testTrips(), nil).Maybe()

			_, err := svc.GetReport(context.Background(), testDriver, PerformanceQuery{})

			require.Error(t, err)
			appErr, ok := common.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantStatus, appErr.Code)
			assert.Equal(t, tt.wantCode, appErr.ErrorCode)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestGetReport_InvalidQuery(t *testing.T) {
	tests := []struct {
		name     string
		query    PerformanceQuery
		wantCode string
	}{
		{"bad date", PerformanceQuery{From: "2024-13-01", To: "2024-13-02"}, common.CodeValidation},
		{"from without to", PerformanceQuery{From: "2024-03-01"}, common.CodeValidation},
		{"inverted", PerformanceQuery{From: "2024-03-05", To: "2024-03-01"}, common.CodeValidation},
		{"unknown period", PerformanceQuery{Period: "fortnight"}, common.CodeValidation},
		{"unknown timezone", PerformanceQuery{Timezone: "Mars/Olympus"}, common.CodeValidation},
		{"too long", PerformanceQuery{From: "2024-01-01", To: "2024-03-01"}, common.CodeRangeTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, feeds, rmock := newTestService(t, nil)

			_, err := svc.GetReport(context.Background(), testDriver, tt.query)

			require.Error(t, err)
			appErr, ok := common.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, http.StatusBadRequest, appErr.Code)
			assert.Equal(t, tt.wantCode, appErr.ErrorCode)
			feeds.AssertNotCalled(t, "FetchStateLogs", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			assert.NoError(t, rmock.ExpectationsWereMet())
		})
	}
}

func TestRangeHash_DependsOnRangeAndTimezone(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	utcDay := todayRange()
	berlinDay, err := activity.LocalDaysRange("2024-03-05", "2024-03-05", berlin)
	require.NoError(t, err)
	twoDays, err := activity.LocalDaysRange("2024-03-05", "2024-03-06", time.UTC)
	require.NoError(t, err)

	assert.Equal(t, svc.rangeHash(utcDay), svc.rangeHash(todayRange()))
	assert.NotEqual(t, svc.rangeHash(utcDay), svc.rangeHash(berlinDay))
	assert.NotEqual(t, svc.rangeHash(utcDay), svc.rangeHash(twoDays))
	assert.Len(t, svc.rangeHash(utcDay), 16)
}

// ============================================================================
// Views
// ============================================================================

func TestGetEvents_ForDay(t *testing.T) {
	svc, feeds, rmock := newTestService(t, nil)
	rmock.ExpectGet(cache.Keys.FeedVersion(testDriver)).SetVal("1")
	rmock.ExpectGet(cache.Keys.Report(testDriver, svc.rangeHash(todayRange()), 1)).RedisNil()
	expectFeeds(feeds)

	view, err := svc.GetEvents(context.Background(), testDriver, EventsQuery{Date: "2024-03-05"})

	require.NoError(t, err)
	assert.Equal(t, "2024-03-05", view.Date)
	require.NotEmpty(t, view.Events)
	for _, ev := range view.Events {
		assert.GreaterOrEqual(t, ev.Start, dayStart.Unix())
	}
}

func TestGetEvents_DayOutsideRange(t *testing.T) {
	svc, _, rmock := newTestService(t, nil)

	_, err := svc.GetEvents(context.Background(), testDriver, EventsQuery{Date: "2024-03-09"})

	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, common.CodeDayOutOfRange, appErr.ErrorCode)
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestLocateEvent(t *testing.T) {
	svc, feeds, rmock := newTestService(t, nil)
	rmock.ExpectGet(cache.Keys.FeedVersion(testDriver)).SetVal("1")
	rmock.ExpectGet(cache.Keys.Report(testDriver, svc.rangeHash(todayRange()), 1)).RedisNil()
	expectFeeds(feeds)

	located, err := svc.LocateEvent(context.Background(), testDriver, LocateQuery{Date: "2024-03-05", TS: shiftFrom + 2500})

	require.NoError(t, err)
	assert.Equal(t, activity.StateOnRide, located.Event.State)
	assert.True(t, located.Event.Contains(shiftFrom+2500))
}

func TestLocateEvent_RequiresDateAndTimestamp(t *testing.T) {
	svc, _, _ := newTestService(t, nil)

	_, err := svc.LocateEvent(context.Background(), testDriver, LocateQuery{Date: "2024-03-05"})

	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, appErr.Code)
}

func TestGetKPIs(t *testing.T) {
	svc, feeds, rmock := newTestService(t, nil)
	rmock.ExpectGet(cache.Keys.FeedVersion(testDriver)).SetVal("1")
	rmock.ExpectGet(cache.Keys.Report(testDriver, svc.rangeHash(todayRange()), 1)).RedisNil()
	expectFeeds(feeds)

	view, err := svc.GetKPIs(context.Background(), testDriver, PerformanceQuery{Period: "today"})

	require.NoError(t, err)
	assert.InDelta(t, 16.0, view.Kpis.NetEarnings, 1e-9)
	require.Len(t, view.Daily, 1)
	assert.Equal(t, "2024-03-05", view.Daily[0].LocalDate)
	assert.Equal(t, 1, view.Rides.Finished)
	assert.Equal(t, 1, view.TripStats.Count)
}

func TestGetHourly(t *testing.T) {
	svc, feeds, rmock := newTestService(t, nil)
	rmock.ExpectGet(cache.Keys.FeedVersion(testDriver)).SetVal("1")
	rmock.ExpectGet(cache.Keys.Report(testDriver, svc.rangeHash(todayRange()), 1)).RedisNil()
	expectFeeds(feeds)

	view, err := svc.GetHourly(context.Background(), testDriver, PerformanceQuery{})

	require.NoError(t, err)
	require.Len(t, view.Days, 1)
	assert.NotEmpty(t, view.Days[0].Hours)
}

// ============================================================================
// Invalidate
// ============================================================================

func TestInvalidate(t *testing.T) {
	svc, _, rmock := newTestService(t, nil)
	rmock.ExpectIncr(cache.Keys.FeedVersion(testDriver)).SetVal(3)

	res, err := svc.Invalidate(context.Background(), testDriver)

	require.NoError(t, err)
	assert.Equal(t, &InvalidationResult{DriverID: testDriver, FeedVersion: 3}, res)
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestInvalidate_Failure(t *testing.T) {
	svc, _, rmock := newTestService(t, nil)
	rmock.ExpectIncr(cache.Keys.FeedVersion(testDriver)).SetErr(errors.New("NOPERM this user has no permissions"))

	_, err := svc.Invalidate(context.Background(), testDriver)

	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, appErr.Code)
}
