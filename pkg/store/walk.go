package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// AudioFiles walks the store depth-first and returns every file whose name
// ends in .mp3 (any case). At each level the files of a directory come
// first, then its subdirectories; both are sorted by name so reruns visit
// files in the same order.
func (s *Store) AudioFiles(ctx context.Context) ([]string, error) {
	var out []string
	if !Exists(s.root) {
		return out, nil
	}
	if err := walkSorted(ctx, s.root, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func walkSorted(ctx context.Context, dir string, out *[]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read %s: %w", dir, err)
	}

	var files, dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
			continue
		}
		if isAudio(e.Name()) {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	sort.Strings(dirs)

	for _, name := range files {
		*out = append(*out, filepath.Join(dir, name))
	}
	for _, name := range dirs {
		if err := walkSorted(ctx, filepath.Join(dir, name), out); err != nil {
			return err
		}
	}
	return nil
}

func isAudio(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), audioExtension)
}
