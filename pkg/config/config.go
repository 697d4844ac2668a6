package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Feed sources for state logs and trips
const (
	FeedSourcePostgres = "postgres"
	FeedSourceFleetAPI = "fleet_api"
)

// Config holds all application configuration
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	NATS        NATSConfig
	Resilience  ResilienceConfig
	Timeout     TimeoutConfig
	FleetAPI    FleetAPIConfig
	Performance PerformanceConfig
	Tracing     TracingConfig
	Sentry      SentryConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         string
	Environment  string
	ServiceName  string
	ReadTimeout  int
	WriteTimeout int
	CORSOrigins  string // Comma-separated list of allowed origins
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MaxConns       int
	MinConns       int
	MigrationsPath string
	AutoMigrate    bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// NATSConfig holds event bus configuration
type NATSConfig struct {
	URL        string
	Enabled    bool
	StreamName string
}

// ResilienceConfig groups runtime resilience controls
type ResilienceConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

// CircuitBreakerConfig captures default and per-service breaker tuning
type CircuitBreakerConfig struct {
	Enabled          bool
	FailureThreshold int
	SuccessThreshold int
	TimeoutSeconds   int
	IntervalSeconds  int
	ServiceOverrides map[string]CircuitBreakerSettings
}

// CircuitBreakerSettings overrides defaults for a specific upstream service
type CircuitBreakerSettings struct {
	FailureThreshold int `json:"failure_threshold"`
	SuccessThreshold int `json:"success_threshold"`
	TimeoutSeconds   int `json:"timeout_seconds"`
	IntervalSeconds  int `json:"interval_seconds"`
}

// FleetAPIConfig holds the upstream fleet-provider API settings
type FleetAPIConfig struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	CompanyID    int64
	PageSize     int
	MaxRetries   int
}

// PerformanceConfig holds engine thresholds and report settings
type PerformanceConfig struct {
	ShortGapMinutes    int
	LongGapMinutes     int
	MinEventSeconds    int
	HotspotResolution  int
	DefaultTimezone    string
	MaxRangeDays       int
	CacheTTLSeconds    int
	FeedSource         string
	InvalidationTopic  string
	ComputeConcurrency int
}

// TracingConfig holds OpenTelemetry exporter settings
type TracingConfig struct {
	Enabled      bool
	OTLPEndpoint string
	SampleRatio  float64
}

// SentryConfig holds error tracking settings
type SentryConfig struct {
	DSN              string
	TracesSampleRate float64
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			ServiceName:  serviceName,
			ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 10),
			WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 10),
			CORSOrigins:  getEnv("CORS_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			DBName:         getEnv("DB_NAME", "fleet"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MaxConns:       getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:       getEnvAsInt("DB_MIN_CONNS", 5),
			MigrationsPath: getEnv("DB_MIGRATIONS_PATH", "file://migrations"),
			AutoMigrate:    getEnvAsBool("DB_AUTO_MIGRATE", false),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		NATS: NATSConfig{
			URL:        getEnv("NATS_URL", "nats://localhost:4222"),
			Enabled:    getEnvAsBool("NATS_ENABLED", false),
			StreamName: getEnv("NATS_STREAM", "FLEET_EVENTS"),
		},
		Resilience: ResilienceConfig{
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:          getEnvAsBool("CB_ENABLED", true),
				FailureThreshold: getEnvAsInt("CB_FAILURE_THRESHOLD", 5),
				SuccessThreshold: getEnvAsInt("CB_SUCCESS_THRESHOLD", 1),
				TimeoutSeconds:   getEnvAsInt("CB_TIMEOUT_SECONDS", 30),
				IntervalSeconds:  getEnvAsInt("CB_INTERVAL_SECONDS", 60),
			},
		},
		Timeout: TimeoutConfig{
			HTTPClientTimeout:     getEnvAsInt("HTTP_CLIENT_TIMEOUT", DefaultHTTPClientTimeout),
			DatabaseQueryTimeout:  getEnvAsInt("DB_QUERY_TIMEOUT", DefaultDatabaseQueryTimeout),
			RedisOperationTimeout: getEnvAsInt("REDIS_OPERATION_TIMEOUT", DefaultRedisOperationTimeout),
			DefaultRequestTimeout: getEnvAsInt("DEFAULT_REQUEST_TIMEOUT", DefaultRequestTimeout),
		},
		FleetAPI: FleetAPIConfig{
			BaseURL:      getEnv("FLEET_API_BASE_URL", "https://node.bolt.eu/fleet-integration-gateway"),
			TokenURL:     getEnv("FLEET_API_TOKEN_URL", "https://oidc.bolt.eu/token"),
			ClientID:     getEnv("FLEET_API_CLIENT_ID", ""),
			ClientSecret: getEnv("FLEET_API_CLIENT_SECRET", ""),
			CompanyID:    getEnvAsInt64("FLEET_API_COMPANY_ID", 0),
			PageSize:     getEnvAsInt("FLEET_API_PAGE_SIZE", 1000),
			MaxRetries:   getEnvAsInt("FLEET_API_MAX_RETRIES", 3),
		},
		Performance: PerformanceConfig{
			ShortGapMinutes:    getEnvAsInt("ENGINE_SHORT_GAP_MINUTES", 30),
			LongGapMinutes:     getEnvAsInt("ENGINE_LONG_GAP_MINUTES", 60),
			MinEventSeconds:    getEnvAsInt("ENGINE_MIN_EVENT_SECONDS", 10),
			HotspotResolution:  getEnvAsInt("ENGINE_HOTSPOT_RESOLUTION", 8),
			DefaultTimezone:    getEnv("DEFAULT_TIMEZONE", "UTC"),
			MaxRangeDays:       getEnvAsInt("MAX_RANGE_DAYS", 93),
			CacheTTLSeconds:    getEnvAsInt("PERFORMANCE_CACHE_TTL_SECONDS", 900),
			FeedSource:         strings.ToLower(getEnv("FEED_SOURCE", FeedSourcePostgres)),
			InvalidationTopic:  getEnv("FEED_INVALIDATION_TOPIC", "fleet.feeds.updated"),
			ComputeConcurrency: getEnvAsInt("ENGINE_COMPUTE_CONCURRENCY", 8),
		},
		Tracing: TracingConfig{
			Enabled:      getEnvAsBool("OTEL_ENABLED", false),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			SampleRatio:  getEnvAsFloat("OTEL_SAMPLE_RATIO", 1.0),
		},
		Sentry: SentryConfig{
			DSN:              getEnv("SENTRY_DSN", ""),
			TracesSampleRate: getEnvAsFloat("SENTRY_TRACES_SAMPLE_RATE", 0.1),
		},
	}

	if breakerOverrides := getEnv("CB_SERVICE_OVERRIDES", ""); breakerOverrides != "" {
		var serviceConfig map[string]CircuitBreakerSettings
		if err := json.Unmarshal([]byte(breakerOverrides), &serviceConfig); err != nil {
			return nil, fmt.Errorf("invalid CB_SERVICE_OVERRIDES value: %w", err)
		}
		cfg.Resilience.CircuitBreaker.ServiceOverrides = serviceConfig
	}

	if routeOverrides := getEnv("ROUTE_TIMEOUT_OVERRIDES", ""); routeOverrides != "" {
		overrides, err := parseRouteOverrides(routeOverrides)
		if err != nil {
			return nil, err
		}
		cfg.Timeout.RouteOverrides = overrides
	}

	if err := cfg.Timeout.validate(); err != nil {
		return nil, err
	}

	if cfg.Resilience.CircuitBreaker.TimeoutSeconds <= 0 {
		cfg.Resilience.CircuitBreaker.TimeoutSeconds = 30
	}

	if cfg.Resilience.CircuitBreaker.IntervalSeconds <= 0 {
		cfg.Resilience.CircuitBreaker.IntervalSeconds = 60
	}

	if cfg.Resilience.CircuitBreaker.FailureThreshold <= 0 {
		cfg.Resilience.CircuitBreaker.FailureThreshold = 5
	}

	if cfg.Resilience.CircuitBreaker.SuccessThreshold <= 0 {
		cfg.Resilience.CircuitBreaker.SuccessThreshold = 1
	}

	cfg.Performance.normalize()

	if cfg.FleetAPI.PageSize <= 0 || cfg.FleetAPI.PageSize > 1000 {
		cfg.FleetAPI.PageSize = 1000
	}

	if cfg.Performance.FeedSource == FeedSourceFleetAPI && cfg.FleetAPI.CompanyID == 0 {
		return nil, fmt.Errorf("FLEET_API_COMPANY_ID is required when FEED_SOURCE=%s", FeedSourceFleetAPI)
	}

	return cfg, nil
}

func (p *PerformanceConfig) normalize() {
	if p.ShortGapMinutes <= 0 {
		p.ShortGapMinutes = 30
	}
	if p.LongGapMinutes <= 0 {
		p.LongGapMinutes = 60
	}
	if p.MinEventSeconds < 0 {
		p.MinEventSeconds = 10
	}
	if p.HotspotResolution < 0 || p.HotspotResolution > 15 {
		p.HotspotResolution = 8
	}
	if _, err := time.LoadLocation(p.DefaultTimezone); err != nil {
		p.DefaultTimezone = "UTC"
	}
	if p.MaxRangeDays <= 0 {
		p.MaxRangeDays = 93
	}
	if p.CacheTTLSeconds <= 0 {
		p.CacheTTLSeconds = 900
	}
	if p.FeedSource != FeedSourcePostgres && p.FeedSource != FeedSourceFleetAPI {
		p.FeedSource = FeedSourcePostgres
	}
	if p.ComputeConcurrency <= 0 {
		p.ComputeConcurrency = 8
	}
}

// ShortGap returns the short disconnection threshold
func (p PerformanceConfig) ShortGap() time.Duration {
	return time.Duration(p.ShortGapMinutes) * time.Minute
}

// LongGap returns the long offline threshold
func (p PerformanceConfig) LongGap() time.Duration {
	return time.Duration(p.LongGapMinutes) * time.Minute
}

// MinEventDuration returns the shortest displayable event
func (p PerformanceConfig) MinEventDuration() time.Duration {
	return time.Duration(p.MinEventSeconds) * time.Second
}

// CacheTTL returns the report cache lifetime
func (p PerformanceConfig) CacheTTL() time.Duration {
	return time.Duration(p.CacheTTLSeconds) * time.Second
}

// Location returns the default reporting timezone
func (p PerformanceConfig) Location() *time.Location {
	loc, err := time.LoadLocation(p.DefaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SettingsFor returns effective breaker settings for a specific upstream service name
func (c CircuitBreakerConfig) SettingsFor(service string) CircuitBreakerSettings {
	settings := CircuitBreakerSettings{
		FailureThreshold: c.FailureThreshold,
		SuccessThreshold: c.SuccessThreshold,
		TimeoutSeconds:   c.TimeoutSeconds,
		IntervalSeconds:  c.IntervalSeconds,
	}

	if override, ok := c.ServiceOverrides[service]; ok {
		if override.FailureThreshold > 0 {
			settings.FailureThreshold = override.FailureThreshold
		}
		if override.SuccessThreshold > 0 {
			settings.SuccessThreshold = override.SuccessThreshold
		}
		if override.TimeoutSeconds > 0 {
			settings.TimeoutSeconds = override.TimeoutSeconds
		}
		if override.IntervalSeconds > 0 {
			settings.IntervalSeconds = override.IntervalSeconds
		}
	}

	if settings.SuccessThreshold <= 0 {
		settings.SuccessThreshold = 1
	}
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = 5
	}
	if settings.TimeoutSeconds <= 0 {
		settings.TimeoutSeconds = 30
	}
	if settings.IntervalSeconds <= 0 {
		settings.IntervalSeconds = 60
	}

	return settings
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// URL returns the database connection URL used by migrations
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
