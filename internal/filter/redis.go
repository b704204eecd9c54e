package filter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the Redis set holding operator-managed extra words.
const DefaultRedisKey = "chat:profanity:words"

const redisTimeout = 2 * time.Second

// RedisSource reads extra words from a Redis set so operators can extend the
// list without redeploying.
type RedisSource struct {
	client redis.Cmdable
	key    string
}

// NewRedisSource creates a RedisSource reading the set at key.
func NewRedisSource(client redis.Cmdable, key string) *RedisSource {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisSource{client: client, key: key}
}

// Words returns every member of the set.
func (s *RedisSource) Words(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	words, err := s.client.SMembers(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("filter: read redis set %s: %w", s.key, err)
	}
	return words, nil
}

// Load adds every word in the set to f and returns how many were read.
func (s *RedisSource) Load(ctx context.Context, f *Filter) (int, error) {
	words, err := s.Words(ctx)
	if err != nil {
		return 0, err
	}
	f.Add(words...)
	return len(words), nil
}

// Seed stores words in the set when the set is empty or missing, giving
// operators a starting list to curate. It reports whether it wrote anything.
func (s *RedisSource) Seed(ctx context.Context, words ...string) (bool, error) {
	cardCtx, cancel := context.WithTimeout(ctx, redisTimeout)
	n, err := s.client.SCard(cardCtx, s.key).Result()
	cancel()
	if err != nil {
		return false, fmt.Errorf("filter: size redis set %s: %w", s.key, err)
	}
	if n > 0 || len(words) == 0 {
		return false, nil
	}
	if err := s.Put(ctx, words...); err != nil {
		return false, err
	}
	return true, nil
}

// Put stores words in the set.
func (s *RedisSource) Put(ctx context.Context, words ...string) error {
	if len(words) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	members := make([]any, len(words))
	for i, w := range words {
		members[i] = w
	}
	if err := s.client.SAdd(ctx, s.key, members...).Err(); err != nil {
		return fmt.Errorf("filter: write redis set %s: %w", s.key, err)
	}
	return nil
}
