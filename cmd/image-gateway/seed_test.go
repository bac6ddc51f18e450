package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lgulliver/imagegate/internal/storage"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		full := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	}
	return root
}

func TestSeedDirectory(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.png":              "png",
		"2023/b.jpg":         "jpeg",
		"def/default.webp":   "webp",
		".DS_Store":          "junk",
		".cache/skipped.png": "skipped",
	})

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	summary, err := seedDirectory(ctx, store, root, seedOptions{})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Uploaded)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, int64(len("png")+len("jpeg")+len("webp")), summary.Bytes)

	keys, err := store.List(ctx, "")
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"2023/b.jpg", "a.png", "def/default.webp"}, keys)

	obj, err := store.Retrieve(ctx, "2023/b.jpg")
	require.NoError(t, err)
	defer obj.Body.Close()
	data, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(data))
}

func TestSeedDirectory_Prefix(t *testing.T) {
	root := writeTree(t, map[string]string{"site.webp": "named"})

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = seedDirectory(ctx, store, root, seedOptions{Prefix: "/def/"})
	require.NoError(t, err)

	exists, err := store.Exists(ctx, "def/site.webp")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSeedDirectory_DryRun(t *testing.T) {
	root := writeTree(t, map[string]string{"a.png": "png", "b/c.gif": "gif"})

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	summary, err := seedDirectory(ctx, store, root, seedOptions{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Uploaded)

	keys, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestSeedDirectory_NotADirectory(t *testing.T) {
	root := writeTree(t, map[string]string{"a.png": "png"})

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = seedDirectory(context.Background(), store, filepath.Join(root, "a.png"), seedOptions{})
	assert.Error(t, err)

	_, err = seedDirectory(context.Background(), store, filepath.Join(root, "missing"), seedOptions{})
	assert.Error(t, err)
}

func TestSeedDirectory_SkipExisting(t *testing.T) {
	root := writeTree(t, map[string]string{
		"same.png":    "12345",
		"changed.png": "new content",
		"fresh.png":   "fresh",
	})

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.Store(ctx, "same.png", strings.NewReader("abcde"), "image/png"))
	require.NoError(t, store.Store(ctx, "changed.png", strings.NewReader("old"), "image/png"))

	summary, err := seedDirectory(ctx, store, root, seedOptions{SkipExisting: true})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Uploaded)
	assert.Equal(t, 1, summary.Skipped)

	size, err := store.GetSize(ctx, "changed.png")
	require.NoError(t, err)
	assert.Equal(t, int64(len("new content")), size)

	obj, err := store.Retrieve(ctx, "same.png")
	require.NoError(t, err)
	defer obj.Body.Close()
	data, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	assert.Equal(t, "abcde", string(data), "same-size object is left untouched")
}

func TestSeedDirectory_Prune(t *testing.T) {
	root := writeTree(t, map[string]string{"site.webp": "named", "default.webp": "global"})

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.Store(ctx, "def/retired.webp", strings.NewReader("old"), "image/webp"))
	require.NoError(t, store.Store(ctx, "photos/keep.jpg", strings.NewReader("outside prefix"), "image/jpeg"))

	t.Run("dry run keeps everything", func(t *testing.T) {
		summary, err := seedDirectory(ctx, store, root, seedOptions{Prefix: "def", Prune: true, DryRun: true})
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Pruned)

		exists, err := store.Exists(ctx, "def/retired.webp")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("deletes stale keys under prefix", func(t *testing.T) {
		summary, err := seedDirectory(ctx, store, root, seedOptions{Prefix: "def", Prune: true})
		require.NoError(t, err)
		assert.Equal(t, 2, summary.Uploaded)
		assert.Equal(t, 1, summary.Pruned)

		keys, err := store.List(ctx, "")
		require.NoError(t, err)
		sort.Strings(keys)
		assert.Equal(t, []string{"def/default.webp", "def/site.webp", "photos/keep.jpg"}, keys)
	})
}
