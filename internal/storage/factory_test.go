package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lgulliver/imagegate/pkg/config"
)

func TestStorageFactory_CreateLocalStorage(t *testing.T) {
	factory := NewStorageFactory(&config.StorageConfig{
		Type:      "local",
		LocalPath: t.TempDir(),
	}, nil)

	storage, err := factory.CreateStorage(context.Background())
	require.NoError(t, err)
	require.NotNil(t, storage)

	ctx := context.Background()
	content := "content from factory test"

	require.NoError(t, storage.Store(ctx, "factory.webp", strings.NewReader(content), "image/webp"))

	exists, err := storage.Exists(ctx, "factory.webp")
	require.NoError(t, err)
	assert.True(t, exists)

	obj, err := storage.Retrieve(ctx, "factory.webp")
	require.NoError(t, err)
	defer obj.Body.Close()

	data, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestStorageFactory_UnsupportedType(t *testing.T) {
	factory := NewStorageFactory(&config.StorageConfig{Type: "gcs"}, nil)

	storage, err := factory.CreateStorage(context.Background())

	assert.Error(t, err)
	assert.Nil(t, storage)
	assert.Contains(t, err.Error(), "unsupported storage type")
}

func TestStorageFactory_MissingSettings(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.StorageConfig
		wantErr string
	}{
		{
			name:    "s3 without bucket",
			cfg:     &config.StorageConfig{Type: "s3"},
			wantErr: "requires a bucket",
		},
		{
			name:    "redis without redis config",
			cfg:     &config.StorageConfig{Type: "redis"},
			wantErr: "requires redis configuration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage, err := NewStorageFactory(tt.cfg, nil).CreateStorage(context.Background())

			require.Error(t, err)
			assert.Nil(t, storage)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestStorageFactory_LocalStorageError(t *testing.T) {
	factory := NewStorageFactory(&config.StorageConfig{
		Type:      "local",
		LocalPath: createTempFile(t),
	}, nil)

	storage, err := factory.CreateStorage(context.Background())
	assert.Error(t, err)
	assert.Nil(t, storage)
}
