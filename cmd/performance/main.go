package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/richxcame/fleet-performance/internal/fleetapi"
	"github.com/richxcame/fleet-performance/internal/performance"
	"github.com/richxcame/fleet-performance/pkg/cache"
	"github.com/richxcame/fleet-performance/pkg/common"
	"github.com/richxcame/fleet-performance/pkg/config"
	"github.com/richxcame/fleet-performance/pkg/database"
	"github.com/richxcame/fleet-performance/pkg/errors"
	"github.com/richxcame/fleet-performance/pkg/eventbus"
	"github.com/richxcame/fleet-performance/pkg/health"
	"github.com/richxcame/fleet-performance/pkg/logger"
	"github.com/richxcame/fleet-performance/pkg/middleware"
	redisclient "github.com/richxcame/fleet-performance/pkg/redis"
	"github.com/richxcame/fleet-performance/pkg/tracing"
)

const (
	serviceName = "performance-service"
	version     = "1.0.0"
)

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if err := logger.InitService(cfg.Server.Environment, serviceName); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting performance service",
		zap.String("version", version),
		zap.String("environment", cfg.Server.Environment),
		zap.String("feed_source", cfg.Performance.FeedSource),
	)

	sentryConfig := errors.NewSentryConfig(cfg, version)
	if sentryConfig.Enabled() {
		if err := errors.InitSentry(sentryConfig); err != nil {
			logger.Warn("Failed to initialize Sentry, continuing without error tracking", zap.Error(err))
		} else {
			defer errors.Flush(2 * time.Second)
		}
	}

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(tracing.Config{
			ServiceName:    serviceName,
			ServiceVersion: version,
			Environment:    cfg.Server.Environment,
			OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
			SampleRate:     cfg.Tracing.SampleRatio,
			Enabled:        true,
		}, logger.Get())
		if err != nil {
			logger.Warn("Failed to initialize tracer, continuing without tracing", zap.Error(err))
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tp.Shutdown(ctx); err != nil {
					logger.Warn("Failed to shutdown tracer", zap.Error(err))
				}
			}()
		}
	}

	checkerCfg := health.DefaultDeepCheckerConfig()
	checkerCfg.Version = version
	checker := health.NewDeepChecker(checkerCfg)

	redisClient, err := redisclient.NewRedisClient(&cfg.Redis, cfg.Timeout)
	if err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}()
	checker.AddDependency("redis", health.RedisChecker(redisClient), true)

	var (
		logs  performance.StateLogFeed
		trips performance.TripFeed
	)
	switch cfg.Performance.FeedSource {
	case config.FeedSourceFleetAPI:
		client := fleetapi.NewClient(cfg.FleetAPI, cfg.Resilience.CircuitBreaker, cfg.Timeout.HTTPClientTimeoutDuration())
		if breaker := client.Breaker(); breaker != nil {
			checker.AddCircuitBreaker("fleet-api", breaker)
			checker.AddDependency("fleet-api", health.BreakerChecker(breaker), false)
		}
		logs, trips = client, client
	default:
		db, pool, err := database.NewPostgresDB(&cfg.Database, cfg.Timeout, serviceName)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer database.Close(db, pool)

		if cfg.Database.AutoMigrate {
			if err := database.Migrate(db, cfg.Database.MigrationsPath); err != nil {
				logger.Fatal("Failed to run migrations", zap.Error(err))
			}
		}
		dbCheck := health.NewCachedChecker(health.DatabaseChecker(db), 5*time.Second)
		checker.AddDependency("database", dbCheck.Check, true)

		repo := performance.NewRepository(db)
		logs, trips = repo, repo
	}

	var publisher eventbus.Publisher
	var bus *eventbus.Bus
	if cfg.NATS.Enabled {
		busCfg := eventbus.DefaultConfig()
		busCfg.URL = cfg.NATS.URL
		busCfg.Name = serviceName
		busCfg.StreamName = cfg.NATS.StreamName

		bus, err = eventbus.New(busCfg)
		if err != nil {
			logger.Warn("Failed to connect to NATS, feed invalidation events disabled", zap.Error(err))
		} else {
			defer bus.Close()
			publisher = bus
			checker.AddDependency("nats", health.ConnectedChecker("nats", bus.Connected), false)
		}
	}

	retryingRedis := redisclient.WithRetry(redisClient)
	service := performance.NewService(
		logs, trips, cfg.Performance.FeedSource,
		cache.NewManager(retryingRedis),
		performance.NewFeedVersions(retryingRedis),
		publisher,
		cfg.Performance,
	)
	handler := performance.NewHandler(service)

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	if bus != nil {
		sub := performance.NewInvalidationSubscriber(bus, service, cfg.Performance.InvalidationTopic)
		if err := sub.Start(rootCtx); err != nil {
			logger.Warn("Failed to start feed invalidation subscriber", zap.Error(err))
		}
	}

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RecoveryWithSentry())
	router.Use(middleware.SentryMiddleware())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestTimeout(&cfg.Timeout))
	router.Use(middleware.RequestLogger(serviceName))
	router.Use(middleware.CORS(cfg.Server.CORSOrigins))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware(serviceName))
	}
	router.Use(middleware.ErrorHandler())

	checks, optional := checker.Checks()
	router.GET("/healthz", common.LivenessProbe(serviceName, version))
	router.GET("/health/live", common.LivenessProbe(serviceName, version))
	router.GET("/health/ready", common.ReadinessProbe(serviceName, version, checks, optional...))
	router.GET("/health/deep", checker.GinHandler())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancelRoot()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}
