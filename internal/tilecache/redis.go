package tilecache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/AlissonDuarte/itssafe-backend/internal/resilience"
)

// RedisConfig configures the shared Redis backend.
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
}

// Redis stores tiles in Redis with SETEX. Calls go through a circuit breaker
// so an unreachable server costs one fast failure instead of a dial timeout
// per request.
type Redis struct {
	client     redis.UniversalClient
	breaker    *resilience.CircuitBreaker
	defaultTTL time.Duration
}

// OpenRedis connects a client for cfg. It returns nil when no address is set.
func OpenRedis(cfg RedisConfig) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
}

// NewRedis wraps client. breaker may be nil.
func NewRedis(client redis.UniversalClient, breaker *resilience.CircuitBreaker, defaultTTL time.Duration) *Redis {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "redis"})
	}
	return &Redis{client: client, breaker: breaker, defaultTTL: defaultTTL}
}

// Get fetches key. A missing key is not an error.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := resilience.ExecuteVal(ctx, r.breaker, func(ctx context.Context) ([]byte, error) {
		data, err := r.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return data, err
	})
	if err != nil {
		return nil, false, eris.Wrapf(err, "tilecache: redis get %s", key)
	}
	return data, data != nil, nil
}

// Set stores data under key with SETEX semantics.
func (r *Redis) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.defaultTTL
	}
	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		return r.client.Set(ctx, key, data, ttl).Err()
	})
	return eris.Wrapf(err, "tilecache: redis set %s", key)
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return eris.Wrap(r.client.Ping(ctx).Err(), "tilecache: redis ping")
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
