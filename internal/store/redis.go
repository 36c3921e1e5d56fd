package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the document as a single string key. SET replaces the
// value atomically.
type RedisStore struct {
	client *redis.Client
	key    string
}

func NewRedisStore(redisURL, key string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, key), nil
}

func NewRedisStoreWithClient(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultDocumentKey
	}
	return &RedisStore{client: client, key: "document:" + key}
}

func (s *RedisStore) Load(ctx context.Context) (AppDocument, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return AppDocument{}, unavailable("key %s not set", s.key)
	}
	if err != nil {
		return AppDocument{}, readFailed("get %s: %v", s.key, err)
	}
	return Decode(data)
}

func (s *RedisStore) Save(ctx context.Context, doc AppDocument) error {
	payload, err := Encode(doc)
	if err != nil {
		return writeFailed("%v", err)
	}
	if err := s.client.Set(ctx, s.key, payload, 0).Err(); err != nil {
		return writeFailed("set %s: %v", s.key, err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
