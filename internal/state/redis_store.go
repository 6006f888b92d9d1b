package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/ducminhle1904/intraday-risk-bot/internal/ledger"
)

// DefaultWeeklyKey is the Redis key for the weekly snapshot
const DefaultWeeklyKey = "risk-bot:weekly_pnl"

// weeklyTTL outlives a full ISO week so a weekend restart still finds the snapshot
const weeklyTTL = 8 * 24 * time.Hour

// RedisStore persists the weekly snapshot in Redis so several hosts can share it
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStoreFromClient wraps an existing client
func NewRedisStoreFromClient(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultWeeklyKey
	}
	return &RedisStore{client: client, key: key}
}

// LoadWeekly returns nil on a missing key
func (r *RedisStore) LoadWeekly(ctx context.Context) (*ledger.WeeklySnapshot, error) {
	val, err := r.client.Get(ctx, r.key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var snap ledger.WeeklySnapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return nil, fmt.Errorf("failed to parse weekly snapshot: %w", err)
	}
	return &snap, nil
}

// SaveWeekly stores the snapshot as JSON
func (r *RedisStore) SaveWeekly(ctx context.Context, snap ledger.WeeklySnapshot) error {
	data, err := json.Marshal(&snap)
	if err != nil {
		return fmt.Errorf("failed to marshal weekly snapshot: %w", err)
	}
	if err := r.client.Set(ctx, r.key, string(data), weeklyTTL).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close releases the connection pool
func (r *RedisStore) Close() error {
	return r.client.Close()
}
