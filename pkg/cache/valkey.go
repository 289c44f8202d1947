// Package cache provides the Valkey-backed key/value store the alerting
// engine uses for notification channel configuration lookups and dashboard
// snapshot caching.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platformbuilds/mirador-alerting/internal/metrics"
	"github.com/platformbuilds/mirador-alerting/pkg/logger"
)

// ErrNotFound is returned when a key has no value.
var ErrNotFound = fmt.Errorf("cache: key not found")

// Valkey is the key/value surface the engine depends on. Channel delivery
// configuration is stored under "alerting:channel:<kind>" keys by an
// external configuration store; the engine treats those values as opaque
// JSON.
type Valkey interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type valkeyStore struct {
	client *redis.Client
	logger logger.Logger
	ttl    time.Duration
}

// NewValkeyStore connects to a single-node Valkey/Redis instance.
func NewValkeyStore(addr string, db int, password string, defaultTTL time.Duration, log logger.Logger) (Valkey, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	return &valkeyStore{
		client: client,
		logger: log,
		ttl:    defaultTTL,
	}, nil
}

func (v *valkeyStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := v.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		metrics.RecordCacheOperation("get", "miss")
		return nil, ErrNotFound
	}
	if err != nil {
		metrics.RecordCacheOperation("get", "error")
		return nil, err
	}
	metrics.RecordCacheOperation("get", "hit")
	return b, nil
}

func (v *valkeyStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	var data []byte
	switch x := value.(type) {
	case []byte:
		data = x
	case string:
		data = []byte(x)
	default:
		j, err := json.Marshal(x)
		if err != nil {
			metrics.RecordCacheOperation("set", "error")
			return fmt.Errorf("marshal value for key %s: %w", key, err)
		}
		data = j
	}
	if ttl <= 0 {
		ttl = v.ttl
	}
	if err := v.client.Set(ctx, key, data, ttl).Err(); err != nil {
		metrics.RecordCacheOperation("set", "error")
		return err
	}
	metrics.RecordCacheOperation("set", "success")
	return nil
}

func (v *valkeyStore) Delete(ctx context.Context, key string) error {
	if err := v.client.Del(ctx, key).Err(); err != nil {
		metrics.RecordCacheOperation("delete", "error")
		return err
	}
	metrics.RecordCacheOperation("delete", "success")
	return nil
}

// ChannelConfigKey builds the key under which delivery configuration for a
// notification channel kind is stored.
func ChannelConfigKey(kind string) string {
	return "alerting:channel:" + kind
}
