package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"podscribe/pkg/content"
	"podscribe/pkg/logging"
	"podscribe/pkg/resolver"
	"podscribe/pkg/store"
)

const (
	urlA = "https://www.example.com/podcasts/show/episode-a"
	urlB = "https://www.example.com/podcasts/show/episode-b"
	mp3A = "https://media.example.com/a.mp3"
	mp3B = "https://media.example.com/b.mp3"
)

type ingestFixture struct {
	root     string
	store    *store.Store
	pages    *mockPages
	fetcher  *mockFetcher
	ingester *Ingester
}

func newIngestFixture(t *testing.T, links ...string) *ingestFixture {
	t.Helper()
	root := t.TempDir()
	st, err := store.Open(root)
	if err != nil {
		t.Fatal(err)
	}
	pages := &mockPages{pages: map[string]string{
		urlA: episodePage("vendredi 31 mai 2024", mp3A),
		urlB: episodePage("samedi 1er juin 2024", mp3B),
	}}
	fetcher := &mockFetcher{fail: map[string]bool{}}
	return &ingestFixture{
		root:    root,
		store:   st,
		pages:   pages,
		fetcher: fetcher,
		ingester: &Ingester{
			Store:    st,
			Source:   &mockSource{links: links},
			Resolver: resolver.New(st, pages, content.DefaultProfile(), logging.Discard()),
			Fetcher:  fetcher,
			Logger:   logging.Discard(),
		},
	}
}

func TestIngesterCapturesEpisodes(t *testing.T) {
	f := newIngestFixture(t, urlA, urlB)

	stats, err := f.ingester.Run(context.Background(), "https://feed.example.com/rss")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.Resolved != 2 || stats.Downloaded != 2 {
		t.Errorf("stats = %+v", stats)
	}

	dirA := filepath.Join(f.root, "2024-05-31-episode-a")
	record, err := store.ReadRecord(dirA)
	if err != nil {
		t.Fatalf("ReadRecord() error = %v", err)
	}
	if len(record.MP3) != 1 || record.MP3[0] != mp3A {
		t.Errorf("MP3 = %v, want one deduplicated URL", record.MP3)
	}
	if !store.Exists(filepath.Join(dirA, store.AudioFile)) {
		t.Error("content.mp3 missing for episode-a")
	}
	if !store.Exists(filepath.Join(f.root, "2024-06-01-episode-b", store.RecordFile)) {
		t.Error("data.json missing for episode-b")
	}
}

func TestIngesterIsIdempotent(t *testing.T) {
	f := newIngestFixture(t, urlA, urlB)
	ctx := context.Background()

	if _, err := f.ingester.Run(ctx, "feed"); err != nil {
		t.Fatal(err)
	}
	pageRequests, downloads := len(f.pages.requests), len(f.fetcher.calls)

	stats, err := f.ingester.Run(ctx, "feed")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Cached != 2 || stats.Resolved != 0 {
		t.Errorf("second run stats = %+v", stats)
	}
	if len(f.pages.requests) != pageRequests || len(f.fetcher.calls) != downloads {
		t.Errorf("second run made requests: pages %d->%d, downloads %d->%d",
			pageRequests, len(f.pages.requests), downloads, len(f.fetcher.calls))
	}

	entries, err := os.ReadDir(f.root)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("store has %d entries, want 2", len(entries))
	}
}

func TestIngesterForceOverwritesRecord(t *testing.T) {
	f := newIngestFixture(t, urlA)
	ctx := context.Background()

	if _, err := f.ingester.Run(ctx, "feed"); err != nil {
		t.Fatal(err)
	}
	dir := filepath.Join(f.root, "2024-05-31-episode-a")
	recordPath := filepath.Join(dir, store.RecordFile)
	if err := os.WriteFile(recordPath, []byte(`{"url":"stale"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	f.ingester.Force = true
	stats, err := f.ingester.Run(ctx, "feed")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Resolved != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if len(f.pages.requests) != 2 {
		t.Errorf("page requests = %d, want 2", len(f.pages.requests))
	}
	record, err := store.ReadRecord(dir)
	if err != nil {
		t.Fatal(err)
	}
	if record.URL != urlA {
		t.Errorf("record not overwritten: url = %q", record.URL)
	}
	// Audio already present, not downloaded again.
	if len(f.fetcher.calls) != 1 {
		t.Errorf("downloads = %d, want 1", len(f.fetcher.calls))
	}
}

func TestIngesterForceKeepsOneDirectoryPerSlug(t *testing.T) {
	tests := []struct {
		name   string
		stored string
	}{
		{name: "date changed", stored: "2024-05-30-episode-a"},
		{name: "undated directory", stored: "episode-a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			old := filepath.Join(root, tt.stored)
			seedEpisodeDir(t, old, map[string]string{
				store.RecordFile:                      `{"url":"stale"}`,
				store.AudioFile:                       "audio",
				store.TranscriptPath(store.AudioFile): "transcript",
			})

			st, err := store.Open(root)
			if err != nil {
				t.Fatal(err)
			}
			pages := &mockPages{pages: map[string]string{urlA: episodePage("vendredi 31 mai 2024", mp3A)}}
			fetcher := &mockFetcher{fail: map[string]bool{}}
			ingester := &Ingester{
				Store:    st,
				Source:   &mockSource{links: []string{urlA}},
				Resolver: resolver.New(st, pages, content.DefaultProfile(), logging.Discard()),
				Fetcher:  fetcher,
				Force:    true,
				Logger:   logging.Discard(),
			}

			if _, err := ingester.Run(context.Background(), "feed"); err != nil {
				t.Fatal(err)
			}

			entries, err := os.ReadDir(root)
			if err != nil {
				t.Fatal(err)
			}
			var dirs []string
			for _, e := range entries {
				if e.IsDir() {
					dirs = append(dirs, e.Name())
				}
			}
			if len(dirs) != 1 || dirs[0] != "2024-05-31-episode-a" {
				t.Fatalf("store directories = %v, want [2024-05-31-episode-a]", dirs)
			}

			dir := filepath.Join(root, dirs[0])
			record, err := store.ReadRecord(dir)
			if err != nil {
				t.Fatal(err)
			}
			if record.URL != urlA {
				t.Errorf("record not overwritten: url = %q", record.URL)
			}
			for _, name := range []string{store.AudioFile, store.TranscriptPath(store.AudioFile)} {
				if !store.Exists(filepath.Join(dir, name)) {
					t.Errorf("%s did not move with the directory", name)
				}
			}
			if len(fetcher.calls) != 0 {
				t.Errorf("downloads = %v, want none", fetcher.calls)
			}
		})
	}
}

func TestIngesterInterruptedDownloadIsResumed(t *testing.T) {
	f := newIngestFixture(t, urlA)
	ctx := context.Background()
	dir := filepath.Join(f.root, "2024-05-31-episode-a")

	f.fetcher.onFetch = func(string) error {
		if !store.Exists(filepath.Join(dir, store.RecordFile)) {
			t.Error("data.json not written before the download started")
		}
		return context.Canceled
	}
	if _, err := f.ingester.Run(ctx, "feed"); err != nil {
		t.Fatal(err)
	}
	if store.Exists(filepath.Join(dir, store.AudioFile)) {
		t.Fatal("content.mp3 exists after interrupted download")
	}

	f.fetcher.onFetch = nil
	stats, err := f.ingester.Run(ctx, "feed")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Cached != 1 || stats.Downloaded != 1 {
		t.Errorf("second run stats = %+v", stats)
	}
	if !store.Exists(filepath.Join(dir, store.AudioFile)) {
		t.Error("content.mp3 missing after resume")
	}
}

func seedEpisodeDir(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestIngesterResolveFailurePolicy(t *testing.T) {
	const broken = "https://www.example.com/podcasts/show/broken"

	t.Run("propagate", func(t *testing.T) {
		f := newIngestFixture(t, broken, urlA)
		f.ingester.OnResolveError = PolicyPropagate

		stats, err := f.ingester.Run(context.Background(), "feed")
		var resolveErr *resolver.Error
		if !errors.As(err, &resolveErr) || resolveErr.URL != broken {
			t.Fatalf("Run() error = %v, want resolver error for %s", err, broken)
		}
		if stats.Resolved != 0 {
			t.Errorf("episodes after the failure were processed: %+v", stats)
		}
	})

	t.Run("recover", func(t *testing.T) {
		f := newIngestFixture(t, broken, urlA)
		f.ingester.OnResolveError = PolicyRecover

		stats, err := f.ingester.Run(context.Background(), "feed")
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if stats.Failed != 1 || stats.Resolved != 1 {
			t.Errorf("stats = %+v", stats)
		}
	})
}

func TestIngesterDownloadFailureIsRetriedNextRun(t *testing.T) {
	f := newIngestFixture(t, urlA)
	f.fetcher.fail[mp3A] = true
	ctx := context.Background()

	stats, err := f.ingester.Run(ctx, "feed")
	if err != nil {
		t.Fatalf("download failure should not stop the run: %v", err)
	}
	if stats.DownloadFailed != 1 {
		t.Errorf("stats = %+v", stats)
	}
	audio := filepath.Join(f.root, "2024-05-31-episode-a", store.AudioFile)
	if store.Exists(audio) {
		t.Fatal("content.mp3 exists after failed download")
	}

	delete(f.fetcher.fail, mp3A)
	stats, err = f.ingester.Run(ctx, "feed")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Cached != 1 || stats.Downloaded != 1 {
		t.Errorf("second run stats = %+v", stats)
	}
	if !store.Exists(audio) {
		t.Error("content.mp3 missing after retry")
	}
	if len(f.pages.requests) != 1 {
		t.Errorf("page requests = %d, want 1", len(f.pages.requests))
	}
}

func TestIngesterPublisherTranscript(t *testing.T) {
	f := newIngestFixture(t, urlA)
	profile := content.DefaultProfile()
	profile.TranscriptLinks = true
	f.ingester.Resolver = resolver.New(f.store, f.pages, profile, logging.Discard())
	docs := &mockDocuments{body: "Transcription officielle.", contentType: "text/plain"}
	f.ingester.Documents = docs

	stats, err := f.ingester.Run(context.Background(), "feed")
	if err != nil {
		t.Fatal(err)
	}
	if stats.PublisherTranscripts != 1 || docs.calls != 1 {
		t.Errorf("stats = %+v, calls = %d", stats, docs.calls)
	}

	got, err := os.ReadFile(filepath.Join(f.root, "2024-05-31-episode-a", store.PublisherFile))
	if err != nil || string(got) != "Transcription officielle." {
		t.Errorf("publisher transcript = %q, %v", got, err)
	}
}

func TestIngesterCanceled(t *testing.T) {
	f := newIngestFixture(t, urlA, urlB)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.ingester.Run(ctx, "feed"); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if len(f.pages.requests) != 0 {
		t.Errorf("pages requested after cancel: %v", f.pages.requests)
	}
}
