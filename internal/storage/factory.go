package storage

import (
	"context"
	"fmt"

	"github.com/lgulliver/imagegate/pkg/config"
)

// StorageFactory creates storage instances based on configuration
type StorageFactory struct {
	config      *config.StorageConfig
	redisConfig *config.RedisConfig
}

// NewStorageFactory creates a new storage factory. redisConfig is only
// consulted for the redis backend and may be nil otherwise.
func NewStorageFactory(storageConfig *config.StorageConfig, redisConfig *config.RedisConfig) *StorageFactory {
	return &StorageFactory{config: storageConfig, redisConfig: redisConfig}
}

// CreateStorage creates a storage instance based on the configured type
func (sf *StorageFactory) CreateStorage(ctx context.Context) (BlobStorage, error) {
	switch sf.config.Type {
	case "local":
		local, err := NewLocalStorage(sf.config.LocalPath)
		if err != nil {
			return nil, err
		}
		return local, nil
	case "s3":
		if sf.config.Bucket == "" {
			return nil, fmt.Errorf("s3 storage requires a bucket")
		}
		s3Storage, err := NewS3Storage(ctx, sf.config)
		if err != nil {
			return nil, err
		}
		return s3Storage, nil
	case "redis":
		if sf.redisConfig == nil {
			return nil, fmt.Errorf("redis storage requires redis configuration")
		}
		redisStorage, err := NewRedisStorage(sf.redisConfig, sf.config.KeyPrefix)
		if err != nil {
			return nil, err
		}
		return redisStorage, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", sf.config.Type)
	}
}
