package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/lgulliver/imagegate/internal/images"
	"github.com/lgulliver/imagegate/internal/storage"
	"github.com/lgulliver/imagegate/pkg/types"
	"github.com/lgulliver/imagegate/pkg/utils"
)

type seedOptions struct {
	Prefix       string
	DryRun       bool
	SkipExisting bool // skip files whose key already holds an object of the same size
	Prune        bool // delete keys under Prefix that have no local file
}

// seedDirectory uploads every regular, non-hidden file under root. Keys are
// the slash separated paths relative to root, joined onto opts.Prefix.
func seedDirectory(ctx context.Context, store storage.BlobStorage, root string, opts seedOptions) (types.SeedSummary, error) {
	var summary types.SeedSummary

	info, err := os.Stat(root)
	if err != nil {
		return summary, fmt.Errorf("failed to stat seed directory: %w", err)
	}
	if !info.IsDir() {
		return summary, fmt.Errorf("%s is not a directory", root)
	}

	prefix := utils.CleanKey(opts.Prefix)
	seen := make(map[string]bool)

	err = filepath.WalkDir(root, func(file string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if file == root {
			return nil
		}

		rel, err := utils.KeyFromPath(root, file)
		if err != nil {
			return err
		}
		if utils.IsHidden(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			summary.Skipped++
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			summary.Skipped++
			return nil
		}

		key := rel
		if prefix != "" {
			key = path.Join(prefix, rel)
		}
		seen[key] = true

		fileInfo, err := d.Info()
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", file, err)
		}

		if opts.SkipExisting {
			size, err := store.GetSize(ctx, key)
			switch {
			case err == nil && size == fileInfo.Size():
				log.Debug().Str("key", key).Msg("already present, skipping")
				summary.Skipped++
				return nil
			case err != nil && !storage.IsNotFound(err):
				return fmt.Errorf("failed to check %s: %w", key, err)
			}
		}

		if opts.DryRun {
			log.Info().Str("key", key).Int64("size", fileInfo.Size()).Msg("would upload")
		} else if err := uploadFile(ctx, store, file, key); err != nil {
			return err
		}

		summary.Uploaded++
		summary.Bytes += fileInfo.Size()
		return nil
	})
	if err != nil {
		return summary, fmt.Errorf("seed failed: %w", err)
	}

	if opts.Prune {
		pruned, err := pruneStale(ctx, store, prefix, seen, opts.DryRun)
		summary.Pruned = pruned
		if err != nil {
			return summary, err
		}
	}

	return summary, nil
}

func uploadFile(ctx context.Context, store storage.BlobStorage, file, key string) error {
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", file, err)
	}
	defer f.Close()

	if err := store.Store(ctx, key, f, images.ContentTypeOrDefault(key)); err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}

	log.Debug().Str("key", key).Msg("uploaded")
	return nil
}

// pruneStale deletes stored keys under prefix that are not in keep
func pruneStale(ctx context.Context, store storage.BlobStorage, prefix string, keep map[string]bool, dryRun bool) (int, error) {
	listPrefix := prefix
	if listPrefix != "" && !strings.HasSuffix(listPrefix, "/") {
		listPrefix += "/"
	}

	keys, err := store.List(ctx, listPrefix)
	if err != nil {
		return 0, fmt.Errorf("failed to list %q: %w", listPrefix, err)
	}

	pruned := 0
	for _, key := range keys {
		if keep[key] {
			continue
		}
		if dryRun {
			log.Info().Str("key", key).Msg("would delete")
		} else if err := store.Delete(ctx, key); err != nil {
			return pruned, fmt.Errorf("failed to delete %s: %w", key, err)
		}
		pruned++
	}
	return pruned, nil
}
