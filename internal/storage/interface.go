package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned (wrapped) by every backend when a key does not exist
var ErrNotFound = errors.New("blob not found")

// Object is an open blob. Size is -1 when the backend cannot report it.
type Object struct {
	Body io.ReadCloser
	Size int64
}

// BlobStorage defines the interface for image storage
type BlobStorage interface {
	// Store saves content at the given key
	Store(ctx context.Context, key string, content io.Reader, contentType string) error

	// Retrieve opens the blob at the given key
	Retrieve(ctx context.Context, key string) (*Object, error)

	// Delete removes content at the given key
	Delete(ctx context.Context, key string) error

	// Exists checks if content exists at the given key
	Exists(ctx context.Context, key string) (bool, error)

	// GetSize returns the size of content at the given key
	GetSize(ctx context.Context, key string) (int64, error)

	// List returns keys matching the prefix
	List(ctx context.Context, prefix string) ([]string, error)
}

// IsNotFound reports whether err means the key is absent
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
