package performance

import (
	"context"
	"fmt"

	"github.com/richxcame/fleet-performance/pkg/errors"
	"github.com/richxcame/fleet-performance/pkg/eventbus"
	"github.com/richxcame/fleet-performance/pkg/logger"
	"go.uber.org/zap"
)

const invalidationConsumer = "performance-feeds"

// Invalidator drops a driver's cached reports
type Invalidator interface {
	Invalidate(ctx context.Context, driverID string) (*InvalidationResult, error)
}

// InvalidationSubscriber bumps feed versions when upstream feeds change
type InvalidationSubscriber struct {
	subscriber  eventbus.Subscriber
	invalidator Invalidator
	subject     string
}

// NewInvalidationSubscriber creates a subscriber on subject, defaulting to fleet.feeds.updated
func NewInvalidationSubscriber(subscriber eventbus.Subscriber, invalidator Invalidator, subject string) *InvalidationSubscriber {
	if subject == "" {
		subject = eventbus.SubjectFeedsUpdated
	}
	return &InvalidationSubscriber{subscriber: subscriber, invalidator: invalidator, subject: subject}
}

// Start registers the durable consumer
func (s *InvalidationSubscriber) Start(ctx context.Context) error {
	if err := s.subscriber.Subscribe(ctx, s.subject, invalidationConsumer, s.handle); err != nil {
		return fmt.Errorf("subscribe to %s: %w", s.subject, err)
	}
	return nil
}

func (s *InvalidationSubscriber) handle(ctx context.Context, event *eventbus.Event) error {
	var data eventbus.FeedsUpdatedData
	if err := event.Decode(&data); err != nil {
		// redelivery cannot fix a malformed payload
		logger.Warn("dropping malformed feed update", zap.String("event_id", event.ID), zap.Error(err))
		return nil
	}
	if data.DriverID == "" {
		logger.Warn("dropping feed update without driver", zap.String("event_id", event.ID))
		return nil
	}

	ctx = logger.ContextWithDriverID(ctx, data.DriverID)
	if _, err := s.invalidator.Invalidate(ctx, data.DriverID); err != nil {
		// consumer errors never reach the HTTP error middleware
		errors.CaptureErrorWithContext(ctx, err, map[string]interface{}{
			"event_id": event.ID,
			"subject":  s.subject,
		})
		return err
	}

	logger.DebugContext(ctx, "feed update applied",
		zap.String("event_id", event.ID),
		zap.String("feed", data.Feed),
	)
	return nil
}
