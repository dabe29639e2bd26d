// Package file implements the directory-of-files shard model shared by the
// file-driven stages: a directory tree is an enumerable collection of shards
// (one physical file per logical shard), each read and written as a stream of
// lines in the configured charset.
package file

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
)

// List walks root recursively and returns the slash-separated paths of all
// regular files relative to root, sorted lexicographically so every run
// visits shards in the same order.
//
// Entries that cannot be read are passed to onSkip (when non-nil) and
// skipped; only a failure on root itself is returned.
func List(root string, onSkip func(path string, err error)) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			if onSkip != nil {
				onSkip(path, err)
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", root, err)
	}
	sort.Strings(out)
	return out, nil
}

// Path joins a shard identifier returned by List onto dir.
func Path(dir, shard string) string {
	return filepath.Join(dir, filepath.FromSlash(shard))
}
