package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/charging-platform/fleet-simulator/internal/config"
)

// RedisWriter is the example concrete Writer, grounded in the teacher's
// RedisStorage: a thin key-prefixed wrapper over *redis.Client. It
// writes each Change as a JSON blob under a key scoped by kind and
// session id; it never reads one back — read access belongs to the
// excluded storage backend, not to this process.
type RedisWriter struct {
	Client *redis.Client
	Prefix string
}

// NewRedisWriter dials Redis and pings it once so a misconfigured
// backend fails fast at startup rather than on the first write.
func NewRedisWriter(cfg config.RedisConfig) (*RedisWriter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("persist: connect to redis at %s: %w", cfg.Addr, err)
	}

	return &RedisWriter{Client: client, Prefix: "fleetsim:"}, nil
}

// Write serializes the whole Change (kind, session id, timestamp and
// data) as JSON and sets it under a key derived from the
// change's kind and session id. Each write simply overwrites the prior
// value for that (kind, session) pair — the core only ever cares about
// the latest delta surviving a restart, not a history of deltas.
func (r *RedisWriter) Write(ctx context.Context, change Change) error {
	data, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("persist: marshal change: %w", err)
	}
	key := fmt.Sprintf("%s%s:%s", r.Prefix, change.Kind, change.SessionID)
	return r.Client.Set(ctx, key, data, 0).Err()
}

// Close releases the underlying Redis connection pool.
func (r *RedisWriter) Close() error {
	return r.Client.Close()
}
