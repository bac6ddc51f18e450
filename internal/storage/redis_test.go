package storage

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, "img:def/", escapeGlob("img:def/"))
	assert.Equal(t, `img:\*\?\[x\]`, escapeGlob("img:*?[x]"))
	assert.Equal(t, `a\\b`, escapeGlob(`a\b`))
}

// setupRedisStorage needs a live server at REDIS_ADDR; each test gets its own prefix
func setupRedisStorage(t *testing.T) *RedisStorage {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping redis storage test")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, client.Ping(context.Background()).Err())

	storage := NewRedisStorageWithClient(client, "test:"+uuid.NewString()+":")
	t.Cleanup(func() {
		ctx := context.Background()
		keys, _ := storage.List(ctx, "")
		for _, key := range keys {
			_ = storage.Delete(ctx, key)
		}
		storage.Close()
	})
	return storage
}

func TestRedisStorage_RoundTrip(t *testing.T) {
	storage := setupRedisStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.Store(ctx, "def/site.webp", strings.NewReader("site default"), "image/webp"))
	require.NoError(t, storage.Store(ctx, "a.jpg", strings.NewReader("a"), "image/jpeg"))

	obj, err := storage.Retrieve(ctx, "def/site.webp")
	require.NoError(t, err)
	data, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	assert.Equal(t, "site default", string(data))
	assert.Equal(t, int64(len("site default")), obj.Size)

	size, err := storage.GetSize(ctx, "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)

	keys, err := storage.List(ctx, "def/")
	require.NoError(t, err)
	assert.Equal(t, []string{"def/site.webp"}, keys)

	require.NoError(t, storage.Delete(ctx, "a.jpg"))
	exists, err := storage.Exists(ctx, "a.jpg")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRedisStorage_Missing(t *testing.T) {
	storage := setupRedisStorage(t)
	ctx := context.Background()

	_, err := storage.Retrieve(ctx, "missing.png")
	assert.True(t, IsNotFound(err))

	_, err = storage.GetSize(ctx, "missing.png")
	assert.True(t, IsNotFound(err))
}
