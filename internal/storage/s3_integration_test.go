//go:build integration

package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/localstack"

	"github.com/lgulliver/imagegate/pkg/config"
)

// TestS3Storage_LocalStack runs the S3 backend against a LocalStack container.
// Requires Docker.
func TestS3Storage_LocalStack(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := localstack.Run(ctx, "localstack/localstack:3.0")
	require.NoError(t, err, "failed to start LocalStack")
	defer func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Errorf("failed to terminate container: %v", err)
		}
	}()

	endpoint, err := container.PortEndpoint(ctx, "4566/tcp", "")
	require.NoError(t, err)

	storage, err := NewS3Storage(ctx, &config.StorageConfig{
		Type:      "s3",
		Bucket:    "images",
		Region:    "us-east-1",
		Endpoint:  "http://" + endpoint,
		AccessKey: "test",
		SecretKey: "test",
		PathStyle: true,
	})
	require.NoError(t, err)
	require.NoError(t, storage.EnsureBucket(ctx))

	require.NoError(t, storage.Store(ctx, "2023/photo.webp", strings.NewReader("webp bytes"), "image/webp"))

	obj, err := storage.Retrieve(ctx, "2023/photo.webp")
	require.NoError(t, err)
	data, err := io.ReadAll(obj.Body)
	obj.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "webp bytes", string(data))
	assert.Equal(t, int64(len("webp bytes")), obj.Size)

	_, err = storage.Retrieve(ctx, "photo.webp")
	assert.True(t, IsNotFound(err), "missing key should map to ErrNotFound, got %v", err)

	exists, err := storage.Exists(ctx, "photo.webp")
	require.NoError(t, err)
	assert.False(t, exists)

	keys, err := storage.List(ctx, "2023/")
	require.NoError(t, err)
	assert.Equal(t, []string{"2023/photo.webp"}, keys)
}
