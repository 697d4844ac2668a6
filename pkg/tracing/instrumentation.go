package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// HTTP span attributes
const (
	HTTPMethodKey = attribute.Key("http.method")
	HTTPURLKey    = attribute.Key("http.url")
	HTTPStatusKey = attribute.Key("http.status_code")
)

// Performance domain span attributes
const (
	DriverIDKey     = attribute.Key("driver.id")
	RangeFromKey    = attribute.Key("range.from")
	RangeToKey      = attribute.Key("range.to")
	TimezoneKey     = attribute.Key("range.timezone")
	FeedKey         = attribute.Key("feed.name")
	FeedSourceKey   = attribute.Key("feed.source")
	FeedRecordsKey  = attribute.Key("feed.records")
	StageKey        = attribute.Key("engine.stage")
	CacheOutcomeKey = attribute.Key("cache.outcome")
)

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}

// TraceFeedFetch wraps one feed read. fn returns the number of records fetched.
func TraceFeedFetch(ctx context.Context, tracerName, feed, source string, attrs []attribute.KeyValue, fn func(context.Context) (int, error)) error {
	ctx, span := StartSpan(ctx, tracerName, fmt.Sprintf("feed.%s", feed),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	span.SetAttributes(FeedKey.String(feed), FeedSourceKey.String(source))
	span.SetAttributes(attrs...)

	n, err := fn(ctx)
	span.SetAttributes(FeedRecordsKey.Int(n))
	finish(span, err)
	return err
}

// TraceHTTPClient wraps an HTTP client call with tracing
func TraceHTTPClient(ctx context.Context, tracerName, method, url string, fn func(context.Context) (int, error)) (int, error) {
	ctx, span := StartSpan(ctx, tracerName, fmt.Sprintf("HTTP %s", method),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	span.SetAttributes(
		HTTPMethodKey.String(method),
		HTTPURLKey.String(url),
	)

	statusCode, err := fn(ctx)

	span.SetAttributes(HTTPStatusKey.Int(statusCode))

	switch {
	case err != nil:
		finish(span, err)
	case statusCode >= 400:
		span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", statusCode))
	default:
		span.SetStatus(codes.Ok, "")
	}

	return statusCode, err
}

// TraceBusinessLogic wraps business logic with tracing
func TraceBusinessLogic(ctx context.Context, tracerName, operation string, attrs []attribute.KeyValue, fn func(context.Context) error) error {
	ctx, span := StartSpan(ctx, tracerName, operation,
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()

	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}

	start := time.Now()
	err := fn(ctx)
	span.SetAttributes(attribute.Int64("duration_ms", time.Since(start).Milliseconds()))

	finish(span, err)
	return err
}

// RecordStage adds a completed engine stage as a span event on the current span
func RecordStage(ctx context.Context, stage string, elapsed time.Duration) {
	AddSpanEvent(ctx, "engine.stage",
		StageKey.String(stage),
		attribute.Int64("duration_us", elapsed.Microseconds()),
	)
}

// DriverRangeAttributes describes a per-driver report request
func DriverRangeAttributes(driverID string, from, to time.Time) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 4)
	if driverID != "" {
		attrs = append(attrs, DriverIDKey.String(driverID))
	}
	if !from.IsZero() {
		attrs = append(attrs,
			RangeFromKey.Int64(from.Unix()),
			RangeToKey.Int64(to.Unix()),
			TimezoneKey.String(from.Location().String()),
		)
	}
	return attrs
}
