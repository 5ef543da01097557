package download

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"podscribe/pkg/logging"
)

func TestFetchWritesFile(t *testing.T) {
	payload := bytes.Repeat([]byte("ID3"), 10000) // spans several chunks
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write(payload)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "2024-05-31-episode", "content.mp3")
	if err := New(nil, logging.Discard()).Fetch(context.Background(), server.URL+"/ep.mp3", dest); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read dest: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("downloaded %d bytes, want %d", len(got), len(payload))
	}
	if _, err := os.Stat(dest + partSuffix); !os.IsNotExist(err) {
		t.Errorf("partial file left behind: %v", err)
	}
}

func TestFetchNotFoundLeavesNoFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "content.mp3")
	err := New(nil, logging.Discard()).Fetch(context.Background(), server.URL, dest)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("Fetch() error = %v, want 404 StatusError", err)
	}
	if !IsStatus(err, http.StatusNotFound) {
		t.Error("IsStatus(404) = false")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Errorf("dest exists after 404: %v", err)
	}
}

func TestFetchTruncatedBodyLeavesNoFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(100000))
		w.Write([]byte("only a little"))
		// Hijack and close the connection to cut the body short.
		hj, ok := w.(http.Hijacker)
		if !ok {
			return
		}
		w.(http.Flusher).Flush()
		conn, _, err := hj.Hijack()
		if err == nil {
			conn.Close()
		}
	}))
	defer server.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "content.mp3")
	if err := New(nil, logging.Discard()).Fetch(context.Background(), server.URL, dest); err == nil {
		t.Fatal("Fetch() error = nil, want truncated download error")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("files left after truncated download: %v", entries)
	}
}

func TestFetchCanceledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("data"))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dest := filepath.Join(t.TempDir(), "content.mp3")
	if err := New(nil, logging.Discard()).Fetch(ctx, server.URL, dest); !errors.Is(err, context.Canceled) {
		t.Errorf("Fetch() error = %v, want context.Canceled", err)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("dest should not exist")
	}
}

func TestFetchLocalFailureDoesNotReadRestOfBody(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, dir string) string
	}{
		{
			name: "partial file not creatable",
			setup: func(t *testing.T, dir string) string {
				dest := filepath.Join(dir, "content.mp3")
				if err := os.Mkdir(dest+partSuffix, 0o755); err != nil {
					t.Fatal(err)
				}
				return dest
			},
		},
		{
			name: "parent is a file",
			setup: func(t *testing.T, dir string) string {
				parent := filepath.Join(dir, "episode")
				if err := os.WriteFile(parent, []byte("x"), 0o644); err != nil {
					t.Fatal(err)
				}
				return filepath.Join(parent, "content.mp3")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			release := make(chan struct{})
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Length", "1000000")
				w.Write(bytes.Repeat([]byte("a"), ChunkSize))
				w.(http.Flusher).Flush()
				select {
				case <-release:
				case <-r.Context().Done():
				}
			}))
			defer server.Close()
			defer close(release)

			dest := tt.setup(t, t.TempDir())
			done := make(chan error, 1)
			go func() {
				done <- New(nil, logging.Discard()).Fetch(context.Background(), server.URL+"/ep.mp3", dest)
			}()

			select {
			case err := <-done:
				if err == nil {
					t.Fatal("Fetch() succeeded, want a local write error")
				}
			case <-time.After(5 * time.Second):
				t.Fatal("Fetch() kept reading the body after a local failure")
			}
			if _, err := os.Stat(dest); !os.IsNotExist(err) {
				t.Errorf("dest exists after failure: %v", err)
			}
		})
	}
}
