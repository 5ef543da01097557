// Package download streams episode audio to disk.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"podscribe/pkg/httpclient"
	"podscribe/pkg/logging"

	"github.com/dustin/go-humanize"
)

// ChunkSize is the size of each read from the response body.
const ChunkSize = 8 * 1024

const partSuffix = ".part"

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("download %s: unexpected status code: %d", e.URL, e.StatusCode)
}

// Fetcher downloads assets over HTTP.
type Fetcher struct {
	client *httpclient.HTTPClient
	logger *slog.Logger
}

// New creates a fetcher. The client's overall timeout is removed: a download
// is bounded only by its context.
func New(client *httpclient.HTTPClient, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = httpclient.NewClient(httpclient.BrowserClient, 0)
	}
	return &Fetcher{
		client: client.WithTimeout(0),
		logger: logging.OrDefault(logger),
	}
}

// Fetch downloads url to dest. The body is written to dest+".part" and
// renamed once complete, so dest only ever holds a full download. It does
// not check whether dest already exists.
func (f *Fetcher) Fetch(ctx context.Context, url, dest string) error {
	resp, err := f.client.Get(ctx, url)
	if err != nil {
		f.logger.Error("download failed", "url", url, "error", err)
		return fmt.Errorf("download %s: %w", url, err)
	}
	// A body left unread after a local failure is closed, not drained: the
	// rest of the audio would otherwise be downloaded for nothing.
	drain := true
	defer func() {
		if drain {
			httpclient.DrainAndClose(resp.Body)
			return
		}
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f.logger.Error("download failed", "url", url, "status", resp.StatusCode)
		return &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		drain = false
		return fmt.Errorf("create directory for %s: %w", dest, err)
	}

	part := dest + partSuffix
	written, err := writeStream(part, resp.Body)
	if err != nil {
		drain = false
		os.Remove(part)
		f.logger.Error("download interrupted", "url", url, "dest", dest, "error", err)
		return fmt.Errorf("download %s: %w", url, err)
	}

	if resp.ContentLength > 0 && written != resp.ContentLength {
		os.Remove(part)
		err := fmt.Errorf("download %s: %w: got %d of %d bytes", url, io.ErrUnexpectedEOF, written, resp.ContentLength)
		f.logger.Error("download truncated", "url", url, "dest", dest, "error", err)
		return err
	}

	if err := os.Rename(part, dest); err != nil {
		os.Remove(part)
		return fmt.Errorf("rename %s: %w", part, err)
	}

	f.logger.Info("downloaded", "url", url, "dest", dest, "size", humanize.Bytes(uint64(written)))
	return nil
}

func writeStream(path string, body io.Reader) (int64, error) {
	out, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}

	written, copyErr := io.CopyBuffer(onlyWriter{out}, onlyReader{body}, make([]byte, ChunkSize))
	closeErr := out.Close()
	if copyErr != nil {
		return written, copyErr
	}
	if closeErr != nil {
		return written, closeErr
	}
	return written, nil
}

// onlyReader and onlyWriter hide WriterTo and ReaderFrom so io.CopyBuffer
// moves data through the chunk buffer.
type onlyReader struct {
	io.Reader
}

type onlyWriter struct {
	io.Writer
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}
