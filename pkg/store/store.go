// Package store is the filesystem-backed episode store. The directory tree
// under the root is the only source of truth: one subdirectory per episode,
// named {date}-{slug} when the publication date is known.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"podscribe/pkg/domain"
)

const (
	RecordFile     = "data.json"
	AudioFile      = "content.mp3"
	TranscriptExt  = ".txt"
	PublisherFile  = "publisher_transcript.txt"
	lockFile       = ".podscribe.lock"
	audioExtension = ".mp3"
)

var ErrEmptySlug = errors.New("slug is empty")

// Store answers "does this episode already have a directory?" and computes
// episode paths. The root listing is read once by Open; lookups run against
// that in-memory listing.
type Store struct {
	root  string
	names []string          // directory names under root, sorted
	hits  map[string]string // slug -> matched directory name
}

// Open lists root's immediate subdirectories. A missing root is treated as
// an empty store; it is created on first write.
func Open(root string) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("store root is empty")
	}
	s := &Store{root: filepath.Clean(root)}
	if err := s.Refresh(); err != nil {
		return nil, err
	}
	return s, nil
}

// Root returns the store root directory.
func (s *Store) Root() string {
	return s.root
}

// Refresh re-reads the root listing.
func (s *Store) Refresh() error {
	entries, err := os.ReadDir(s.root)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("list store %s: %w", s.root, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	s.names = names
	s.hits = make(map[string]string)
	return nil
}

// HasRecord returns the path of the first episode directory whose name
// contains slug. Matching is by substring so that a directory with any date
// prefix counts as already processed.
func (s *Store) HasRecord(slug string) (string, bool) {
	if slug == "" {
		return "", false
	}
	if name, ok := s.hits[slug]; ok {
		return filepath.Join(s.root, name), true
	}
	for _, name := range s.names {
		if strings.Contains(name, slug) {
			s.hits[slug] = name
			return filepath.Join(s.root, name), true
		}
	}
	return "", false
}

// PathFor returns the canonical directory for an episode. date may be empty.
func (s *Store) PathFor(date, slug string) (string, error) {
	if slug == "" {
		return "", ErrEmptySlug
	}
	name := slug
	if date != "" {
		name = date + "-" + slug
	}
	return filepath.Join(s.root, name), nil
}

// EnsureDir creates path and its parents. Directories created directly under
// the root become visible to HasRecord immediately.
func (s *Store) EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	if filepath.Dir(filepath.Clean(path)) == s.root {
		s.add(filepath.Base(path))
	}
	return nil
}

// Move renames the episode directory from to the path to, carrying its audio
// and transcripts along. It refuses to replace an existing directory.
func (s *Store) Move(from, to string) error {
	from, to = filepath.Clean(from), filepath.Clean(to)
	if from == to {
		return nil
	}
	if _, err := os.Stat(to); err == nil {
		return fmt.Errorf("move %s: %s already exists", from, to)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("move %s: %w", from, err)
	}
	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("move %s to %s: %w", from, to, err)
	}
	if filepath.Dir(from) == s.root {
		s.remove(filepath.Base(from))
	}
	if filepath.Dir(to) == s.root {
		s.add(filepath.Base(to))
	}
	return nil
}

func (s *Store) remove(name string) {
	i := sort.SearchStrings(s.names, name)
	if i < len(s.names) && s.names[i] == name {
		s.names = append(s.names[:i], s.names[i+1:]...)
	}
	for slug, hit := range s.hits {
		if hit == name {
			delete(s.hits, slug)
		}
	}
}

func (s *Store) add(name string) {
	i := sort.SearchStrings(s.names, name)
	if i < len(s.names) && s.names[i] == name {
		return
	}
	s.names = append(s.names, "")
	copy(s.names[i+1:], s.names[i:])
	s.names[i] = name

	// A new name may now be the first match for a cached slug.
	for slug := range s.hits {
		if strings.Contains(name, slug) {
			delete(s.hits, slug)
		}
	}
}

// WriteRecord writes episode as data.json inside dir, replacing any previous file.
func (s *Store) WriteRecord(dir string, episode *domain.Episode) (string, error) {
	if episode == nil {
		return "", fmt.Errorf("episode is nil")
	}
	if err := s.EnsureDir(dir); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(episode); err != nil {
		return "", fmt.Errorf("encode record %s: %w", episode.Slug, err)
	}

	path := filepath.Join(dir, RecordFile)
	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return "", err
	}
	return path, nil
}

// ReadRecord decodes the data.json inside dir.
func ReadRecord(dir string) (*domain.Episode, error) {
	data, err := os.ReadFile(filepath.Join(dir, RecordFile))
	if err != nil {
		return nil, err
	}
	var episode domain.Episode
	if err := json.Unmarshal(data, &episode); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Join(dir, RecordFile), err)
	}
	return &episode, nil
}

// TranscriptPath returns where the transcript of audioPath is stored.
func TranscriptPath(audioPath string) string {
	return audioPath + TranscriptExt
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// WriteText atomically writes text to path.
func WriteText(path, text string) error {
	return writeFileAtomic(path, []byte(text))
}
