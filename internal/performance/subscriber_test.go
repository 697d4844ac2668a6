package performance

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/richxcame/fleet-performance/pkg/eventbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type recordingSubscriber struct {
	subject  string
	consumer string
	handler  eventbus.HandlerFunc
	err      error
}

func (r *recordingSubscriber) Subscribe(_ context.Context, subject, consumerName string, handler eventbus.HandlerFunc) error {
	r.subject, r.consumer, r.handler = subject, consumerName, handler
	return r.err
}

func startSubscriber(t *testing.T, svc Invalidator) *recordingSubscriber {
	t.Helper()
	sub := &recordingSubscriber{}
	require.NoError(t, NewInvalidationSubscriber(sub, svc, "").Start(context.Background()))
	return sub
}

func TestInvalidationSubscriber_Start(t *testing.T) {
	sub := startSubscriber(t, new(mockReportService))

	assert.Equal(t, eventbus.SubjectFeedsUpdated, sub.subject)
	assert.Equal(t, invalidationConsumer, sub.consumer)
	assert.NotNil(t, sub.handler)
}

func TestInvalidationSubscriber_StartError(t *testing.T) {
	sub := &recordingSubscriber{err: errors.New("stream not found")}

	err := NewInvalidationSubscriber(sub, new(mockReportService), "fleet.custom").Start(context.Background())

	require.Error(t, err)
	assert.Equal(t, "fleet.custom", sub.subject)
}

func TestInvalidationSubscriber_InvalidatesDriver(t *testing.T) {
	svc := new(mockReportService)
	svc.On("Invalidate", mock.Anything, "driver-7").Return(&InvalidationResult{DriverID: "driver-7", FeedVersion: 2}, nil)
	sub := startSubscriber(t, svc)

	event, err := eventbus.NewEvent(eventbus.SubjectFeedsUpdated, "fleet-ingest", eventbus.FeedsUpdatedData{DriverID: "driver-7", Feed: FeedOrders})
	require.NoError(t, err)

	assert.NoError(t, sub.handler(context.Background(), event))
	svc.AssertExpectations(t)
}

func TestInvalidationSubscriber_RetriesOnFailure(t *testing.T) {
	svc := new(mockReportService)
	svc.On("Invalidate", mock.Anything, "driver-7").Return(nil, errors.New("redis down"))
	sub := startSubscriber(t, svc)

	event, err := eventbus.NewEvent(eventbus.SubjectFeedsUpdated, "fleet-ingest", eventbus.FeedsUpdatedData{DriverID: "driver-7"})
	require.NoError(t, err)

	assert.Error(t, sub.handler(context.Background(), event))
}

func TestInvalidationSubscriber_ReportsFailureToSentry(t *testing.T) {
	var captured []*sentry.Event
	client, err := sentry.NewClient(sentry.ClientOptions{
		SampleRate: 1.0,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			captured = append(captured, event)
			return nil
		},
	})
	require.NoError(t, err)
	ctx := sentry.SetHubOnContext(context.Background(), sentry.NewHub(client, sentry.NewScope()))

	svc := new(mockReportService)
	svc.On("Invalidate", mock.Anything, "driver-7").Return(nil, errors.New("redis down"))
	sub := startSubscriber(t, svc)

	event, err := eventbus.NewEvent(eventbus.SubjectFeedsUpdated, "fleet-ingest", eventbus.FeedsUpdatedData{DriverID: "driver-7"})
	require.NoError(t, err)

	assert.Error(t, sub.handler(ctx, event))
	require.Len(t, captured, 1)
	assert.Equal(t, "driver-7", captured[0].Tags["driver_id"])
	assert.Equal(t, event.ID, captured[0].Extra["event_id"])
}

func TestInvalidationSubscriber_DropsUnusableEvents(t *testing.T) {
	svc := new(mockReportService)
	sub := startSubscriber(t, svc)

	noDriver, err := eventbus.NewEvent(eventbus.SubjectFeedsUpdated, "fleet-ingest", eventbus.FeedsUpdatedData{Feed: FeedStateLogs})
	require.NoError(t, err)
	malformed := &eventbus.Event{ID: "bad", Type: eventbus.SubjectFeedsUpdated, Data: json.RawMessage(`"not an object"`)}

	assert.NoError(t, sub.handler(context.Background(), noDriver))
	assert.NoError(t, sub.handler(context.Background(), malformed))
	svc.AssertNotCalled(t, "Invalidate", mock.Anything, mock.Anything)
}
