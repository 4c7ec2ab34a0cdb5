package assignments

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps assignments in two Redis hashes: values and update times.
type RedisStore struct {
	client     *redis.Client
	valuesKey  string
	updatedKey string
}

// OpenRedis connects to redisURL and verifies the server responds.
func OpenRedis(ctx context.Context, redisURL, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(redisURL))
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return NewRedisStore(client, prefix), nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	prefix = strings.Trim(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = "cardsync"
	}
	return &RedisStore{
		client:     client,
		valuesKey:  prefix + ":assignments",
		updatedKey: prefix + ":assignments:updated",
	}
}

// Backend implements Store.
func (r *RedisStore) Backend() string { return "redis" }

// Close implements Store.
func (r *RedisStore) Close() error { return r.client.Close() }

// Put implements Store.
func (r *RedisStore) Put(ctx context.Context, tagID, value string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.valuesKey, tagID, value)
		pipe.HSet(ctx, r.updatedKey, tagID, now)
		return nil
	})
	if err != nil {
		return fmt.Errorf("put assignment %s: %w", tagID, err)
	}
	return nil
}

// Get implements Store.
func (r *RedisStore) Get(ctx context.Context, tagID string) (Assignment, bool, error) {
	value, err := r.client.HGet(ctx, r.valuesKey, tagID).Result()
	if errors.Is(err, redis.Nil) {
		return Assignment{}, false, nil
	}
	if err != nil {
		return Assignment{}, false, fmt.Errorf("get assignment: %w", err)
	}
	a := Assignment{TagID: tagID, Value: value}
	if raw, err := r.client.HGet(ctx, r.updatedKey, tagID).Result(); err == nil {
		a.UpdatedAt, _ = time.Parse(time.RFC3339Nano, raw)
	}
	return a, true, nil
}

// List implements Store. Results are ordered by tag identifier.
func (r *RedisStore) List(ctx context.Context) ([]Assignment, error) {
	values, err := r.client.HGetAll(ctx, r.valuesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	updated, err := r.client.HGetAll(ctx, r.updatedKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list assignment timestamps: %w", err)
	}
	out := make([]Assignment, 0, len(values))
	for tagID, value := range values {
		a := Assignment{TagID: tagID, Value: value}
		if raw, ok := updated[tagID]; ok {
			a.UpdatedAt, _ = time.Parse(time.RFC3339Nano, raw)
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TagID < out[j].TagID })
	return out, nil
}

// Delete implements Store.
func (r *RedisStore) Delete(ctx context.Context, tagID string) (bool, error) {
	var removed *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.HDel(ctx, r.valuesKey, tagID)
		pipe.HDel(ctx, r.updatedKey, tagID)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("delete assignment %s: %w", tagID, err)
	}
	return removed.Val() > 0, nil
}
