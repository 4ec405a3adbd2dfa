package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultRedisKey is the hash mapping schema names to documents
const DefaultRedisKey = "jsonguard:schemas"

// RedisSource reads schema documents from the fields of a Redis hash
type RedisSource struct {
	client redis.UniversalClient
	key    string
}

// OpenRedis connects to Redis and verifies the connection
func OpenRedis(ctx context.Context, cfg Config) (*RedisSource, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if cfg.RedisPoolSize > 0 {
		opts.PoolSize = cfg.RedisPoolSize
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisSource(client, cfg.RedisKey), nil
}

// NewRedisSource reads from the hash at key (DefaultRedisKey when empty).
// The source owns client and closes it.
func NewRedisSource(client redis.UniversalClient, key string) *RedisSource {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisSource{client: client, key: key}
}

// Client returns the Redis client, for health checks
func (s *RedisSource) Client() redis.UniversalClient {
	return s.client
}

// Kind implements Source
func (s *RedisSource) Kind() string {
	return TypeRedis
}

// List implements Source
func (s *RedisSource) List(ctx context.Context) ([]Document, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list schemas: %w", err)
	}
	docs := make([]Document, 0, len(fields))
	for name, document := range fields {
		docs = append(docs, s.document(name, document))
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	return docs, nil
}

// Get implements Source
func (s *RedisSource) Get(ctx context.Context, name string) (Document, error) {
	document, err := s.client.HGet(ctx, s.key, name).Result()
	if errors.Is(err, redis.Nil) {
		return Document{}, fmt.Errorf("%w: %q", ErrSchemaNotFound, name)
	}
	if err != nil {
		return Document{}, fmt.Errorf("failed to get schema %q: %w", name, err)
	}
	return s.document(name, document), nil
}

func (s *RedisSource) document(name, document string) Document {
	return Document{
		Name:     name,
		Data:     []byte(document),
		Format:   FormatJSON,
		Location: fmt.Sprintf("redis:%s/%s", s.key, name),
	}
}

// Close implements Source
func (s *RedisSource) Close() error {
	return s.client.Close()
}
