package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/user/etymology-service/internal/domain"
)

const seenKeyPrefix = "etymology:seen:"

// RedisSeenSet is a seen-set shared across runs and processes. Entries
// expire after ttl so pages are eventually looked up again.
type RedisSeenSet struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

// NewRedisSeenSet wraps client. A ttl of zero keeps entries forever.
func NewRedisSeenSet(client *redis.Client, ttl time.Duration) *RedisSeenSet {
	return &RedisSeenSet{client: client, ttl: ttl}
}

func (s *RedisSeenSet) key(q domain.WordQuery) string {
	return seenKeyPrefix + q.String()
}

// Close releases the underlying client.
func (s *RedisSeenSet) Close() error {
	return s.client.Close()
}

func (s *RedisSeenSet) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Lookup returns the stored result for q, if any.
func (s *RedisSeenSet) Lookup(ctx context.Context, q domain.WordQuery) (domain.FetchResult, bool, error) {
	raw, err := s.client.Get(ctx, s.key(q)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.FetchResult{}, false, nil
	}
	if err != nil {
		return domain.FetchResult{}, false, err
	}

	var res domain.FetchResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return domain.FetchResult{}, false, fmt.Errorf("decode seen entry for %q: %w", q, err)
	}
	return res, true, nil
}

// Store remembers res for q.
func (s *RedisSeenSet) Store(ctx context.Context, q domain.WordQuery, res domain.FetchResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(q), string(data), s.ttl).Err()
}

// Forget drops q so the next run fetches it again.
func (s *RedisSeenSet) Forget(ctx context.Context, q domain.WordQuery) error {
	return s.client.Del(ctx, s.key(q)).Err()
}
