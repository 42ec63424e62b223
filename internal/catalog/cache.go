package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
)

// Cache wraps Redis helpers for JSON payloads. Calls pass through a circuit breaker so an
// unhealthy Redis is skipped instead of slowing every catalog read.
type Cache struct {
	client  *redis.Client
	ttl     time.Duration
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// CacheOption customises a Cache.
type CacheOption func(*gobreaker.Settings)

// WithBreakerStateHook observes breaker state transitions.
func WithBreakerStateHook(fn func(name string, from, to gobreaker.State)) CacheOption {
	return func(s *gobreaker.Settings) { s.OnStateChange = fn }
}

// WithBreakerTimeout sets how long the breaker stays open.
func WithBreakerTimeout(d time.Duration) CacheOption {
	return func(s *gobreaker.Settings) { s.Timeout = d }
}

// NewCache constructs a cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration, opts ...CacheOption) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	settings := gobreaker.Settings{
		Name:        "catalog-cache",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil)
		},
	}
	for _, opt := range opts {
		opt(&settings)
	}
	return &Cache{
		client:  client,
		ttl:     ttl,
		breaker: gobreaker.NewCircuitBreaker[[]byte](settings),
	}
}

// GetJSON unmarshals a cached JSON payload into dst. It reports whether the key existed.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if c == nil || c.client == nil || key == "" {
		return false, nil
	}
	data, err := c.breaker.Execute(func() ([]byte, error) {
		return c.client.Get(ctx, key).Bytes()
	})
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON serialises v as JSON and stores it with the configured TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v any) error {
	if c == nil || c.client == nil || key == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = c.breaker.Execute(func() ([]byte, error) {
		return nil, c.client.Set(ctx, key, data, c.ttl).Err()
	})
	return err
}

// State reports the breaker state, for readiness output.
func (c *Cache) State() string {
	if c == nil || c.client == nil {
		return "disabled"
	}
	return c.breaker.State().String()
}
