package store

import (
	"context"
	"errors"
	"time"

	"github.com/kart-io/logger"
	"github.com/redis/go-redis/v9"

	"github.com/kart-io/sensei/internal/model"
	redisopts "github.com/kart-io/sensei/pkg/options/redis"
	"github.com/kart-io/sensei/pkg/utils/json"
)

// Mirror caches classification records in front of the database.
// Implementations must never be treated as authoritative.
type Mirror interface {
	Get(ctx context.Context, key string) (*model.ClassificationRecord, error)
	Set(ctx context.Context, rec *model.ClassificationRecord) error
	Del(ctx context.Context, key string) error
}

// ErrMirrorMiss is returned by Mirror.Get when the key is not cached.
var ErrMirrorMiss = errors.New("mirror miss")

// RedisMirror is a Mirror backed by go-redis.
type RedisMirror struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisMirror dials Redis and verifies the connection.
func NewRedisMirror(ctx context.Context, opts *redisopts.Options) (*RedisMirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr(),
		Password:     opts.Password,
		DB:           opts.Database,
		MaxRetries:   opts.MaxRetries,
		PoolSize:     opts.PoolSize,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	logger.Infow("redis mirror connected", "redis", opts.String())
	return NewRedisMirrorWithClient(client, opts.KeyPrefix, opts.TTL), nil
}

// NewRedisMirrorWithClient wraps an existing client.
func NewRedisMirrorWithClient(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisMirror {
	return &RedisMirror{client: client, prefix: prefix, ttl: ttl}
}

// Get implements Mirror.
func (m *RedisMirror) Get(ctx context.Context, key string) (*model.ClassificationRecord, error) {
	b, err := m.client.Get(ctx, m.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMirrorMiss
	}
	if err != nil {
		return nil, err
	}
	rec := &model.ClassificationRecord{}
	if err := json.Unmarshal(b, rec); err != nil {
		return nil, err
	}
	rec.Key = key
	return rec, nil
}

// Set implements Mirror. Human corrections never expire.
func (m *RedisMirror) Set(ctx context.Context, rec *model.ClassificationRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	ttl := m.ttl
	if rec.IsCorrection() {
		ttl = 0
	}
	return m.client.Set(ctx, m.prefix+rec.Key, b, ttl).Err()
}

// Del implements Mirror.
func (m *RedisMirror) Del(ctx context.Context, key string) error {
	return m.client.Del(ctx, m.prefix+key).Err()
}

// Close closes the client.
func (m *RedisMirror) Close() error {
	return m.client.Close()
}
