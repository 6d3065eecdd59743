package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ManuelReschke/SnippetCanvas/internal/pkg/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrMiss is returned when a key does not exist.
var ErrMiss = errors.New("cache miss")

// Client wraps a Redis (or Dragonfly) connection.
type Client struct {
	rdb *redis.Client
}

// New connects to the cache server. A failed ping is logged but not fatal:
// callers treat the cache as optional and fall back to the database.
func New(ctx context.Context, cfg config.Cache, log zerolog.Logger) *Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pong, err := rdb.Ping(ctx).Result()
	if err != nil {
		log.Warn().Err(err).Str("addr", cfg.Addr()).Msg("could not connect to cache")
	} else {
		log.Info().Str("addr", cfg.Addr()).Str("pong", pong).Msg("connected to cache")
	}
	return &Client{rdb: rdb}
}

// NewFromRedis wraps an existing client.
func NewFromRedis(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// Redis exposes the underlying client for health checks.
func (c *Client) Redis() *redis.Client {
	return c.rdb
}

// Set stores a value in the cache with the given key and expiration time
func (c *Client) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.rdb.Set(ctx, key, value, expiration).Err()
}

// Get retrieves a value from the cache by key
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	return val, err
}

// GetInt retrieves an integer value from the cache by key
func (c *Client) GetInt(ctx context.Context, key string) (int, error) {
	val, err := c.rdb.Get(ctx, key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, ErrMiss
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

func (c *Client) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, b, expiration).Err()
}

func (c *Client) GetJSON(ctx context.Context, key string, dst interface{}) error {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

// Delete removes a value from the cache by key
func (c *Client) Delete(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
