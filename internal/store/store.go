// Package store provides Redis connection management and the typed
// operations the primary key-value store supports.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable indicates a primary store I/O failure. Operations that
// fail with it are candidates for caller-side retry with backoff.
var ErrUnavailable = errors.New("primary store unavailable")

// Config holds Redis connection configuration.
type Config struct {
	Addr         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ConfigFromEnv creates a Config from environment variables.
func ConfigFromEnv() Config {
	db, _ := strconv.Atoi(getEnvOrDefault("REDIS_DB", "0"))
	dial, _ := time.ParseDuration(getEnvOrDefault("REDIS_DIAL_TIMEOUT", "5s"))
	read, _ := time.ParseDuration(getEnvOrDefault("REDIS_READ_TIMEOUT", "3s"))
	write, _ := time.ParseDuration(getEnvOrDefault("REDIS_WRITE_TIMEOUT", "3s"))

	return Config{
		Addr:         getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		Password:     os.Getenv("REDIS_PASSWORD"),
		DB:           db,
		DialTimeout:  dial,
		ReadTimeout:  read,
		WriteTimeout: write,
	}
}

// Client wraps the Redis client with the operations the repositories use.
// Every method maps an I/O failure to ErrUnavailable so callers can treat
// store outage uniformly.
type Client struct {
	rdb *redis.Client
}

// Connect creates a Redis client and verifies connectivity.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// NewWithClient wraps an existing Redis client. Used by tests with
// miniature or mock servers.
func NewWithClient(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies the connection is alive.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: ping: %v", ErrUnavailable, err)
	}
	return nil
}

// SetFields writes hash fields under key.
func (c *Client) SetFields(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	args := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		args[k] = v
	}
	if err := c.rdb.HSet(ctx, key, args).Err(); err != nil {
		return fmt.Errorf("%w: hset %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// GetFields returns all hash fields under key. A missing key yields an
// empty map, not an error.
func (c *Client) GetFields(ctx context.Context, key string) (map[string]string, error) {
	fields, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: hgetall %s: %v", ErrUnavailable, key, err)
	}
	return fields, nil
}

// DeleteFields removes hash fields under key. Missing fields are ignored.
func (c *Client) DeleteFields(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	if err := c.rdb.HDel(ctx, key, fields...).Err(); err != nil {
		return fmt.Errorf("%w: hdel %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// Exists reports whether key exists.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: exists %s: %v", ErrUnavailable, key, err)
	}
	return n > 0, nil
}

// Delete removes keys.
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: del: %v", ErrUnavailable, err)
	}
	return nil
}

// AddToSet adds members to the set at key.
func (c *Client) AddToSet(ctx context.Context, key string, members ...string) error {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	if err := c.rdb.SAdd(ctx, key, args...).Err(); err != nil {
		return fmt.Errorf("%w: sadd %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// RemoveFromSet removes members from the set at key.
func (c *Client) RemoveFromSet(ctx context.Context, key string, members ...string) error {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	if err := c.rdb.SRem(ctx, key, args...).Err(); err != nil {
		return fmt.Errorf("%w: srem %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// SetMembers returns the members of the set at key.
func (c *Client) SetMembers(ctx context.Context, key string) ([]string, error) {
	members, err := c.rdb.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: smembers %s: %v", ErrUnavailable, key, err)
	}
	return members, nil
}

// GetValue returns the string value at key. ok is false when the key does
// not exist.
func (c *Client) GetValue(ctx context.Context, key string) (string, bool, error) {
	value, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: get %s: %v", ErrUnavailable, key, err)
	}
	return value, true, nil
}

// SetValue stores value at key with a native TTL.
func (c *Client) SetValue(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: set %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
