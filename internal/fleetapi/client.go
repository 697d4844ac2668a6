package fleetapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/richxcame/fleet-performance/internal/activity"
	"github.com/richxcame/fleet-performance/pkg/config"
	"github.com/richxcame/fleet-performance/pkg/httpclient"
	"github.com/richxcame/fleet-performance/pkg/logger"
	"github.com/richxcame/fleet-performance/pkg/resilience"
	"go.uber.org/zap"
)

const (
	breakerName = "fleet-api"
	maxPages    = 500
)

// APIError is a response the upstream accepted but answered with a non-zero code
type APIError struct {
	Path    string
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("fleet api %s: code %d: %s", e.Path, e.Code, e.Message)
}

// Client reads state logs and orders from the upstream fleet-provider API.
// It implements the state-log and trip feeds.
type Client struct {
	http      *httpclient.Client
	tokens    *tokenSource
	breaker   *resilience.CircuitBreaker
	companyID int64
	pageSize  int
}

// NewClient creates a fleet API client with retry, circuit breaker and token caching
func NewClient(cfg config.FleetAPIConfig, breakerCfg config.CircuitBreakerConfig, timeout time.Duration) *Client {
	opts := []httpclient.Option{
		httpclient.WithName(breakerName),
		httpclient.WithRetry(resilience.FeedRetryConfig(cfg.MaxRetries)),
	}

	var breaker *resilience.CircuitBreaker
	if breakerCfg.Enabled {
		settings := resilience.SettingsFromConfig(breakerName, breakerCfg)
		settings.IsFailure = httpclient.IsUpstreamFailure
		breaker = resilience.NewCircuitBreaker(settings, nil)
		opts = append(opts, httpclient.WithBreaker(breaker))
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	tokenHTTP := httpclient.NewClient("", timeout,
		httpclient.WithName(breakerName+"-token"),
		httpclient.WithRetry(resilience.FeedRetryConfig(cfg.MaxRetries)),
	)

	return &Client{
		http:      httpclient.NewClient(cfg.BaseURL, timeout, opts...),
		tokens:    newTokenSource(tokenHTTP, cfg.TokenURL, cfg.ClientID, cfg.ClientSecret),
		breaker:   breaker,
		companyID: cfg.CompanyID,
		pageSize:  pageSize,
	}
}

// Breaker exposes the circuit breaker for health reporting; nil when disabled
func (c *Client) Breaker() *resilience.CircuitBreaker {
	return c.breaker
}

// FetchStateLogs returns the driver's state changes in [from, to)
func (c *Client) FetchStateLogs(ctx context.Context, driverID string, from, to time.Time) ([]activity.StateLogEntry, error) {
	logs, err := fetchPages(ctx, c, stateLogsPath, from, to, func(d stateLogsData) []stateLog {
		return d.StateLogs
	})
	if err != nil {
		return nil, err
	}

	out := []activity.StateLogEntry{}
	for _, l := range logs {
		if l.DriverUUID != driverID || l.Created < from.Unix() || l.Created >= to.Unix() {
			continue
		}
		out = append(out, l.toEntry())
	}

	logger.DebugContext(ctx, "fleet state logs fetched",
		zap.String("driver_id", driverID),
		zap.Int("company_records", len(logs)),
		zap.Int("driver_records", len(out)),
	)
	return out, nil
}

// FetchTrips returns the driver's orders created in [from, to)
func (c *Client) FetchTrips(ctx context.Context, driverID string, from, to time.Time) ([]activity.TripRecord, error) {
	orders, err := fetchPages(ctx, c, ordersPath, from, to, func(d ordersData) []order {
		return d.Orders
	})
	if err != nil {
		return nil, err
	}

	out := []activity.TripRecord{}
	for _, o := range orders {
		if o.DriverUUID != driverID {
			continue
		}
		created := ts(o.OrderCreatedTimestamp)
		if created < from.Unix() || created >= to.Unix() {
			continue
		}
		out = append(out, o.toTrip())
	}

	logger.DebugContext(ctx, "fleet orders fetched",
		zap.String("driver_id", driverID),
		zap.Int("company_records", len(orders)),
		zap.Int("driver_records", len(out)),
	)
	return out, nil
}

// fetchPages walks offset pages until one comes back shorter than the page size.
// A rejected token is refreshed once per call.
func fetchPages[T, R any](ctx context.Context, c *Client, path string, from, to time.Time, items func(T) []R) ([]R, error) {
	req := pageRequest{
		CompanyID: c.companyID,
		Limit:     c.pageSize,
		StartTS:   from.Unix(),
		EndTS:     to.Unix(),
	}

	var (
		out          []R
		reauthorized bool
	)
	for page := 0; page < maxPages; page++ {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, err
		}

		var env envelope[T]
		err = c.http.PostJSON(ctx, path, req, &env, map[string]string{"Authorization": "Bearer " + token})
		if httpclient.StatusCode(err) == http.StatusUnauthorized && !reauthorized {
			c.tokens.Invalidate()
			reauthorized = true
			page--
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("fleet api %s offset %d: %w", path, req.Offset, err)
		}
		if env.Code != 0 {
			return nil, &APIError{Path: path, Code: env.Code, Message: env.Message}
		}

		batch := items(env.Data)
		out = append(out, batch...)
		if len(batch) < req.Limit {
			return out, nil
		}
		req.Offset += req.Limit
	}

	return nil, fmt.Errorf("fleet api %s: more than %d pages", path, maxPages)
}
