package store

import (
	"os"
	"path/filepath"
)

// EpisodeDir summarizes one episode directory.
type EpisodeDir struct {
	Name          string
	Path          string
	HasRecord     bool
	HasAudio      bool
	HasTranscript bool
	AudioBytes    int64
}

// Episodes lists episode directories in name order with the state of their
// files. It reads from disk, not from the cached listing.
func (s *Store) Episodes() ([]EpisodeDir, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	out := make([]EpisodeDir, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(s.root, e.Name())
		audio := filepath.Join(dir, AudioFile)
		ep := EpisodeDir{
			Name:          e.Name(),
			Path:          dir,
			HasRecord:     Exists(filepath.Join(dir, RecordFile)),
			HasTranscript: Exists(TranscriptPath(audio)),
		}
		if info, err := os.Stat(audio); err == nil {
			ep.HasAudio = true
			ep.AudioBytes = info.Size()
		}
		out = append(out, ep)
	}
	return out, nil
}
