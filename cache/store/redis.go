package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sweetpotato0/studygen/cache"
	"github.com/sweetpotato0/studygen/content"
)

const (
	fieldDoc     = "doc"
	fieldQuality = "quality"
	fieldAt      = "generated_at"
)

// RedisStore keeps each artifact in a hash: the encoded document plus the
// quality status and generation time, so operators can scan a keyspace
// with HGET without decoding documents.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisConfig holds Redis configuration. A zero TTL keeps artifacts until
// they are overwritten.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// NewRedisStore creates a Redis-backed artifact cache.
func NewRedisStore(config *RedisConfig) *RedisStore {
	cfg := RedisConfig{Addr: "localhost:6379", Prefix: "studygen:content:"}
	if config != nil {
		cfg = *config
	}
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		prefix: cfg.Prefix,
		ttl:    cfg.TTL,
	}
}

// Get implements cache.Store.
func (s *RedisStore) Get(ctx context.Context, userID, topicID string) (*content.GeneratedTopicContent, error) {
	raw, err := s.client.HGet(ctx, s.key(userID, topicID), fieldDoc).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, cache.NotFound(userID, topicID)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", cache.Key(userID, topicID), err)
	}
	return cache.Decode(raw)
}

// Put implements cache.Store. The hash is replaced as a whole so a shorter
// artifact never inherits fields from an earlier one.
func (s *RedisStore) Put(ctx context.Context, userID, topicID string, doc *content.GeneratedTopicContent) error {
	data, err := cache.Encode(doc)
	if err != nil {
		return err
	}
	key := s.key(userID, topicID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			fieldDoc, data,
			fieldQuality, string(doc.QualityStatus),
			fieldAt, doc.Metadata.GeneratedAt.UTC().Format(time.RFC3339),
		)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put %s: %w", cache.Key(userID, topicID), err)
	}
	return nil
}

// Ping checks if the Redis connection is alive.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(userID, topicID string) string {
	return s.prefix + cache.Key(userID, topicID)
}
