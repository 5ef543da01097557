package replication

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"podscribe/pkg/domain"
	"podscribe/pkg/logging"
	"podscribe/pkg/store"
)

type mockSaver struct {
	saved []string
	err   error
}

func (m *mockSaver) SaveEpisode(_ context.Context, entry *domain.CatalogEntry) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, entry.Slug)
	return nil
}

type mockUpserter struct {
	batches [][]string
}

func (m *mockUpserter) UpsertEpisodes(_ context.Context, entries []domain.CatalogEntry) error {
	var slugs []string
	for _, e := range entries {
		slugs = append(slugs, e.Slug)
	}
	m.batches = append(m.batches, slugs)
	return nil
}

func seedStore(t *testing.T) *store.Store {
	t.Helper()
	root := t.TempDir()
	st, err := store.Open(root)
	if err != nil {
		t.Fatal(err)
	}

	episode := &domain.Episode{
		URL:            "https://www.example.com/show/episode-a",
		Slug:           "episode-a",
		MP3:            []string{"https://media.example.com/a.mp3"},
		ContentFromURL: "Texte.",
		CrawledAt:      time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	episode.SetDate(time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC))
	dir, _ := st.PathFor(*episode.Date, episode.Slug)
	if _, err := st.WriteRecord(dir, episode); err != nil {
		t.Fatal(err)
	}
	audio := filepath.Join(dir, store.AudioFile)
	if err := os.WriteFile(audio, []byte("mp3"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(store.TranscriptPath(audio), []byte("Speaker 1: bonjour"), 0o644); err != nil {
		t.Fatal(err)
	}

	// A directory without data.json is not exported.
	if err := os.MkdirAll(filepath.Join(root, "partial"), 0o755); err != nil {
		t.Fatal(err)
	}
	return st
}

func TestLoadEntries(t *testing.T) {
	st := seedStore(t)
	exporter, err := NewExporter(Config{Mongo: &mockSaver{}, Logger: logging.Discard()})
	if err != nil {
		t.Fatal(err)
	}

	entries, skipped, err := exporter.LoadEntries(st)
	if err != nil {
		t.Fatalf("LoadEntries() error = %v", err)
	}
	if len(entries) != 1 || skipped != 1 {
		t.Fatalf("entries = %d, skipped = %d", len(entries), skipped)
	}

	entry := entries[0]
	if entry.Slug != "episode-a" || entry.Directory != "2024-05-31-episode-a" {
		t.Errorf("entry identity = %q %q", entry.Slug, entry.Directory)
	}
	if !entry.HasAudio || entry.Transcript != "Speaker 1: bonjour" {
		t.Errorf("entry audio/transcript = %v %q", entry.HasAudio, entry.Transcript)
	}
	if entry.Date == nil || *entry.Date != "2024-05-31" {
		t.Errorf("Date = %v", entry.Date)
	}
	if entry.ExportedAt.IsZero() {
		t.Error("ExportedAt not set")
	}
}

func TestExportToMongoAndSupabase(t *testing.T) {
	st := seedStore(t)
	saver := &mockSaver{}
	upserter := &mockUpserter{}
	exporter, err := NewExporter(Config{Mongo: saver, Supabase: upserter, Logger: logging.Discard()})
	if err != nil {
		t.Fatal(err)
	}

	stats, err := exporter.Export(context.Background(), st)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if stats.MongoSaved != 1 || stats.SupabaseUpserted != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if len(saver.saved) != 1 || saver.saved[0] != "episode-a" {
		t.Errorf("saved = %v", saver.saved)
	}
	if len(upserter.batches) != 1 {
		t.Errorf("batches = %v", upserter.batches)
	}
}

func TestExportStopsOnSaveError(t *testing.T) {
	st := seedStore(t)
	exporter, _ := NewExporter(Config{Mongo: &mockSaver{err: errors.New("down")}, Logger: logging.Discard()})

	if _, err := exporter.Export(context.Background(), st); err == nil || !strings.Contains(err.Error(), "episode-a") {
		t.Errorf("Export() error = %v", err)
	}
}

func TestNewExporterRequiresTarget(t *testing.T) {
	if _, err := NewExporter(Config{}); err == nil {
		t.Error("NewExporter() without targets should fail")
	}
}

func TestBuildSlugInQuery(t *testing.T) {
	query, args := buildSlugInQuery([]any{"a", "b", "c"})
	if !strings.Contains(query, "WHERE slug IN ($1, $2, $3)") {
		t.Errorf("query = %q", query)
	}
	if !strings.HasPrefix(query, "/* q_3_") {
		t.Errorf("query prefix = %q", query)
	}
	if len(args) != 3 {
		t.Errorf("args = %v", args)
	}
}

func TestBatchEnd(t *testing.T) {
	if got := batchEnd(200, 100, 250); got != 250 {
		t.Errorf("batchEnd() = %d, want 250", got)
	}
	if got := batchEnd(0, 100, 250); got != 100 {
		t.Errorf("batchEnd() = %d, want 100", got)
	}
}
