package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/lgulliver/imagegate/pkg/config"
)

// RedisStorage keeps image bytes as plain Redis strings under prefix+key.
// Suited to small default/placeholder sets and to edge replicas.
type RedisStorage struct {
	client *redis.Client
	prefix string
}

// NewRedisStorage connects to Redis and verifies the connection
func NewRedisStorage(cfg *config.RedisConfig, prefix string) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info().Str("addr", cfg.RedisAddr()).Str("prefix", prefix).Msg("redis storage initialized")
	return NewRedisStorageWithClient(client, prefix), nil
}

// NewRedisStorageWithClient wraps an existing client
func NewRedisStorageWithClient(client *redis.Client, prefix string) *RedisStorage {
	return &RedisStorage{client: client, prefix: prefix}
}

func (rs *RedisStorage) redisKey(key string) string {
	return rs.prefix + key
}

// Store buffers content and writes it without expiry
func (rs *RedisStorage) Store(ctx context.Context, key string, content io.Reader, contentType string) error {
	data, err := io.ReadAll(content)
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}

	if err := rs.client.Set(ctx, rs.redisKey(key), data, 0).Err(); err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to store image in redis")
		return fmt.Errorf("failed to store value: %w", err)
	}

	log.Info().
		Str("key", key).
		Str("content_type", contentType).
		Int("bytes_written", len(data)).
		Msg("image stored")
	return nil
}

// Retrieve loads the whole value; Redis has no streaming reads
func (rs *RedisStorage) Retrieve(ctx context.Context, key string) (*Object, error) {
	data, err := rs.client.Get(ctx, rs.redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			log.Debug().Str("key", key).Msg("image not found")
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to get value: %w", err)
	}

	return &Object{Body: io.NopCloser(bytes.NewReader(data)), Size: int64(len(data))}, nil
}

// Delete removes the key
func (rs *RedisStorage) Delete(ctx context.Context, key string) error {
	return rs.client.Del(ctx, rs.redisKey(key)).Err()
}

// Exists checks if the key exists
func (rs *RedisStorage) Exists(ctx context.Context, key string) (bool, error) {
	count, err := rs.client.Exists(ctx, rs.redisKey(key)).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetSize returns the stored value length
func (rs *RedisStorage) GetSize(ctx context.Context, key string) (int64, error) {
	exists, err := rs.Exists(ctx, key)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return rs.client.StrLen(ctx, rs.redisKey(key)).Result()
}

// List scans for keys under prefix and strips the storage prefix
func (rs *RedisStorage) List(ctx context.Context, prefix string) ([]string, error) {
	keys := []string{}
	pattern := escapeGlob(rs.prefix+prefix) + "*"

	iter := rs.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), rs.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan keys: %w", err)
	}
	return keys, nil
}

// Close closes the Redis connection
func (rs *RedisStorage) Close() error {
	return rs.client.Close()
}

// escapeGlob quotes the characters SCAN MATCH treats as pattern syntax
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
