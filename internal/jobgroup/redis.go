package jobgroup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultRedisKey is the key the record is stored under.
const DefaultRedisKey = "docwatch:jobgroup"

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
}

// kv is the subset of Redis the store needs.
type kv interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Close() error
}

type redisKV struct {
	cli *redis.Client
}

func (c *redisKV) Get(ctx context.Context, key string) (string, error) {
	return c.cli.Get(ctx, key).Result()
}

func (c *redisKV) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.cli.Set(ctx, key, value, expiration).Err()
}

func (c *redisKV) Del(ctx context.Context, keys ...string) error {
	return c.cli.Del(ctx, keys...).Err()
}

func (c *redisKV) Close() error { return c.cli.Close() }

// RedisStore keeps the record as JSON under a single key.
type RedisStore struct {
	kv  kv
	key string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis job group store requires an address")
	}
	c := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := c.Ping(ctx).Err(); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return newRedisStore(&redisKV{cli: c}, cfg.Key), nil
}

func newRedisStore(c kv, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{kv: c, key: key}
}

// Key returns the Redis key in use.
func (s *RedisStore) Key() string {
	return s.key
}

// Save stores the record without expiry.
func (s *RedisStore) Save(ctx context.Context, r *Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal job group: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, data, 0); err != nil {
		return fmt.Errorf("failed to save job group: %w", err)
	}
	return nil
}

// Load reads the record.
func (s *RedisStore) Load(ctx context.Context) (*Record, error) {
	val, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoGroup
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job group: %w", err)
	}

	var r Record
	if err := json.Unmarshal([]byte(val), &r); err != nil {
		return nil, fmt.Errorf("failed to parse job group at %s: %w", s.key, err)
	}
	return &r, nil
}

// MarkDone flags the stored record as finished.
func (s *RedisStore) MarkDone(ctx context.Context) error {
	return markDone(ctx, s)
}

// Clear deletes the key.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.kv.Del(ctx, s.key); err != nil {
		return fmt.Errorf("failed to clear job group: %w", err)
	}
	return nil
}

// Close releases the connection.
func (s *RedisStore) Close() error {
	return s.kv.Close()
}
