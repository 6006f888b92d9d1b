package veto

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
)

// Decision is the external go/no-go for new entries
type Decision struct {
	Vetoed bool   `json:"veto"`
	Reason string `json:"reason"`
}

// Source is polled by the veto refresh task
type Source interface {
	CheckVeto(ctx context.Context) (Decision, error)
}

// StaticSource always returns the same decision
type StaticSource struct {
	decision Decision
}

// NewStaticSource creates a fixed veto source
func NewStaticSource(vetoed bool, reason string) *StaticSource {
	return &StaticSource{decision: Decision{Vetoed: vetoed, Reason: reason}}
}

// CheckVeto returns the fixed decision
func (s *StaticSource) CheckVeto(ctx context.Context) (Decision, error) {
	return s.decision, nil
}

// DefaultRedisKey is the key an operator or upstream service writes
const DefaultRedisKey = "risk-bot:veto"

// RedisSource reads the veto from a Redis key. The value is either a JSON
// Decision or a plain flag such as "1" or "true". A missing key means no veto.
type RedisSource struct {
	client *redis.Client
	key    string
}

// NewRedisSourceFromClient wraps an existing client
func NewRedisSourceFromClient(client *redis.Client, key string) *RedisSource {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisSource{client: client, key: key}
}

// CheckVeto reads and parses the key
func (r *RedisSource) CheckVeto(ctx context.Context) (Decision, error) {
	val, err := r.client.Get(ctx, r.key).Result()
	if err != nil {
		if err == redis.Nil {
			return Decision{}, nil
		}
		return Decision{}, fmt.Errorf("redis get: %w", err)
	}
	return parseDecision(val)
}

// Close releases the connection pool
func (r *RedisSource) Close() error {
	return r.client.Close()
}

func parseDecision(val string) (Decision, error) {
	val = strings.TrimSpace(val)
	if strings.HasPrefix(val, "{") {
		var d Decision
		if err := json.Unmarshal([]byte(val), &d); err != nil {
			return Decision{}, fmt.Errorf("invalid veto payload: %w", err)
		}
		return d, nil
	}

	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return Decision{Vetoed: true, Reason: "external veto"}, nil
	case "", "0", "false", "no", "off":
		return Decision{}, nil
	}
	return Decision{}, fmt.Errorf("unrecognized veto value %q", val)
}
