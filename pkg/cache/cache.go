package cache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/richxcame/fleet-performance/pkg/logger"
	redisclient "github.com/richxcame/fleet-performance/pkg/redis"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// ErrMiss is returned by Get when the key is absent
var ErrMiss = errors.New("cache miss")

// Store is the subset of Redis operations the cache needs
type Store interface {
	GetBytes(ctx context.Context, key string) ([]byte, error)
	SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Manager handles caching operations with msgpack serialization
type Manager struct {
	store Store
}

// NewManager creates a new cache manager
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Encode serializes a value the way the cache stores it
func Encode(value interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(value); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode deserializes a cached payload into result
func Decode(data []byte, result interface{}) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(result)
}

// Get retrieves a cached value and decodes it into result
func (m *Manager) Get(ctx context.Context, key string, result interface{}) error {
	data, err := m.store.GetBytes(ctx, key)
	if redisclient.IsNotFound(err) {
		return ErrMiss
	}
	if err != nil {
		return err
	}

	if err := Decode(data, result); err != nil {
		return fmt.Errorf("failed to decode cache value: %w", err)
	}
	return nil
}

// Set encodes and caches a value with expiration
func (m *Manager) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := Encode(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache value: %w", err)
	}

	return m.store.SetWithExpiration(ctx, key, data, ttl)
}

// GetOrCompute serves result from cache or fills it with compute and stores it.
// Cache read and write failures are logged and never fail the call.
// The returned bool reports a cache hit.
func (m *Manager) GetOrCompute(ctx context.Context, key string, ttl time.Duration, result interface{}, compute func(context.Context) (interface{}, error)) (bool, error) {
	err := m.Get(ctx, key, result)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, ErrMiss) {
		logger.WarnContext(ctx, "cache read failed, recomputing", zap.String("key", key), zap.Error(err))
	}

	value, err := compute(ctx)
	if err != nil {
		return false, err
	}

	data, err := Encode(value)
	if err != nil {
		return false, fmt.Errorf("failed to encode computed value: %w", err)
	}
	if err := m.store.SetWithExpiration(ctx, key, data, ttl); err != nil {
		logger.WarnContext(ctx, "cache write failed", zap.String("key", key), zap.Error(err))
	}

	return false, Decode(data, result)
}

// Delete removes keys from cache
func (m *Manager) Delete(ctx context.Context, keys ...string) error {
	return m.store.Delete(ctx, keys...)
}

// CacheKeys defines cache key patterns
type CacheKeys struct{}

var Keys = CacheKeys{}

// Report returns the cache key for a computed driver report
func (k CacheKeys) Report(driverID, rangeHash string, feedVersion int64) string {
	return fmt.Sprintf("performance:report:%s:%s:v%d", driverID, rangeHash, feedVersion)
}

// FeedVersion returns the counter key bumped when a driver's feeds change
func (k CacheKeys) FeedVersion(driverID string) string {
	return fmt.Sprintf("performance:feed_version:%s", driverID)
}

// Hash shortens an arbitrary set of key parts to a stable 16-character digest
func Hash(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
