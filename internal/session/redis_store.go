package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps session rows as Redis keys with a TTL matching their
// expiry. The expiry is stored alongside the payload so reads can apply
// the same lazy check as the SQL store.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// ExpiresAt is in Unix milliseconds
type redisRecord struct {
	Data      []byte `json:"data"`
	ExpiresAt int64  `json:"expires_at"`
}

// NewRedisStore creates a Redis-backed session store
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "session:",
		now:    time.Now,
	}
}

func (r *RedisStore) key(id string) string {
	return r.prefix + id
}

// Get implements Store
func (r *RedisStore) Get(ctx context.Context, id string) ([]byte, time.Time, bool, error) {
	val, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("redis get session: %w", err)
	}

	var rec redisRecord
	if err := json.Unmarshal(val, &rec); err != nil {
		// An unreadable record is indistinguishable from a missing one
		return nil, time.Time{}, false, nil
	}
	return rec.Data, time.UnixMilli(rec.ExpiresAt), true, nil
}

// Set implements Store
func (r *RedisStore) Set(ctx context.Context, id string, data []byte, expiresAt time.Time) error {
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return r.Delete(ctx, id)
	}

	val, err := json.Marshal(redisRecord{Data: data, ExpiresAt: expiresAt.UnixMilli()})
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}
	if err := r.client.Set(ctx, r.key(id), val, ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

// Delete implements Store
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}

// NewRedisClient connects to addr and verifies the connection
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return client, nil
}
