package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	keyPrefix     = "booking-risk:"
	generationKey = keyPrefix + "generation"
)

// client is the subset of redis.Cmdable used by Redis.
type client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Close() error
}

// RedisConfig holds the connection settings of the view cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Redis caches views under a generation number. Invalidate bumps the
// generation so stale entries are never read again and expire by TTL.
type Redis struct {
	client client
	ttl    time.Duration
}

// NewRedis connects to Redis and verifies the connection with PING.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	c := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx).Err(); err != nil {
		_ = c.Close()
		return nil, eris.Wrapf(err, "cache: ping redis at %s", cfg.Addr)
	}

	zap.L().Info("cache: connected to redis", zap.String("addr", cfg.Addr), zap.Duration("ttl", cfg.TTL))
	return &Redis{client: c, ttl: cfg.TTL}, nil
}

func (r *Redis) generation(ctx context.Context) (Generation, error) {
	s, err := r.client.Get(ctx, generationKey).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return NoGeneration, eris.Wrap(err, "cache: get generation")
	}
	gen, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return NoGeneration, eris.Wrapf(err, "cache: parse generation %q", s)
	}
	return Generation(gen), nil
}

func (r *Redis) dataKey(gen Generation, key string) string {
	return keyPrefix + strconv.FormatInt(int64(gen), 10) + ":" + key
}

// Get looks key up in the current generation.
func (r *Redis) Get(ctx context.Context, key string, dest any) (Generation, bool, error) {
	gen, err := r.generation(ctx)
	if err != nil {
		return NoGeneration, false, err
	}
	b, err := r.client.Get(ctx, r.dataKey(gen, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return gen, false, nil
	}
	if err != nil {
		return gen, false, eris.Wrapf(err, "cache: get %s", key)
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return gen, false, eris.Wrapf(err, "cache: decode %s", key)
	}
	return gen, true, nil
}

// Set stores v as JSON under gen. If gen has been superseded the entry is
// unreachable and only waits for its TTL.
func (r *Redis) Set(ctx context.Context, gen Generation, key string, v any) error {
	if gen < 0 {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "cache: encode %s", key)
	}
	return eris.Wrapf(r.client.Set(ctx, r.dataKey(gen, key), b, r.ttl).Err(), "cache: set %s", key)
}

// Invalidate starts a new generation.
func (r *Redis) Invalidate(ctx context.Context) error {
	gen, err := r.client.Incr(ctx, generationKey).Result()
	if err != nil {
		return eris.Wrap(err, "cache: bump generation")
	}
	zap.L().Debug("cache: invalidated", zap.Int64("generation", gen))
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
