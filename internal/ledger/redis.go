package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"student-rooms/internal/logger"
)

// DefaultRedisKey is the hash holding the ledger.
const DefaultRedisKey = "student-rooms:seen_options"

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// RedisStore keeps the ledger in one Redis hash of key -> RFC3339 time.
type RedisStore struct {
	*seenSet
	client *redis.Client
	key    string
	log    logger.Logger
}

// NewRedisStore connects lazily to the configured server.
func NewRedisStore(opts RedisOptions, log logger.Logger) *RedisStore {
	if opts.Addr == "" {
		opts.Addr = "localhost:6379"
	}
	if opts.Key == "" {
		opts.Key = DefaultRedisKey
	}
	return &RedisStore{
		seenSet: newSeenSet(),
		client: redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}),
		key: opts.Key,
		log: log.With(logger.Component("ledger"), logger.String("redis_key", opts.Key)),
	}
}

// Load reads the hash. Entries whose value is not a timestamp are skipped
// and reported as StatusCorrupt.
func (r *RedisStore) Load(ctx context.Context) (LoadStatus, error) {
	raw, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return StatusAbsent, fmt.Errorf("load ledger from redis: %w", err)
	}
	if len(raw) == 0 {
		return StatusAbsent, nil
	}

	status := StatusLoaded
	entries := make(map[string]time.Time, len(raw))
	for key, ts := range raw {
		at, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			r.log.Warn("Skipping unreadable ledger entry", logger.String("key", key), logger.Err(err))
			status = StatusCorrupt
			continue
		}
		entries[key] = at
	}
	r.merge(entries)
	return status, nil
}

// Flush writes new keys with HSETNX so concurrent writers never move a
// first-seen time forward.
func (r *RedisStore) Flush(ctx context.Context) error {
	pending := r.takePending()
	if len(pending) == 0 {
		return nil
	}
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for key, at := range pending {
			pipe.HSetNX(ctx, r.key, key, at.Format(time.RFC3339))
		}
		return nil
	})
	if err != nil {
		r.restorePending(pending)
		return fmt.Errorf("flush ledger to redis: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
