package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"

	"podscribe/pkg/content"
	"podscribe/pkg/domain"
	"podscribe/pkg/httpclient"
	"podscribe/pkg/logging"
	"podscribe/pkg/store"
)

// maxTranscriptBytes bounds publisher transcript documents.
const maxTranscriptBytes = 50 << 20

// IngestStats summarizes one ingestion run.
type IngestStats struct {
	Discovered           int
	Resolved             int
	Cached               int
	Failed               int
	Downloaded           int
	DownloadFailed       int
	PublisherTranscripts int
}

// Ingester captures the episodes of a feed into the store.
type Ingester struct {
	Store    *store.Store
	Source   EpisodeSource
	Resolver EpisodeResolver
	Fetcher  AssetFetcher

	// Documents fetches publisher transcripts. Nil disables their capture.
	Documents DocumentFetcher

	// OnResolveError applies to resolution failures. Download failures
	// never stop the run.
	OnResolveError FailurePolicy
	Force          bool
	Logger         *slog.Logger
}

// Run reads feedURL and captures every episode it lists.
func (in *Ingester) Run(ctx context.Context, feedURL string) (IngestStats, error) {
	logger := logging.OrDefault(in.Logger)
	var stats IngestStats

	logger.Info("starting podcast extraction", "feed", feedURL, "force", in.Force)
	refs := in.Source.Read(ctx, feedURL)
	stats.Discovered = len(refs)
	logger.Info("episodes found", "count", len(refs))

	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		episode, dir, fromCache, err := in.Resolver.Resolve(ctx, ref.Link, in.Force)
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			stats.Failed++
			if in.OnResolveError == PolicyPropagate {
				return stats, err
			}
			logger.Warn("skipping episode", "url", ref.Link, "error", err)
			continue
		}

		if fromCache {
			stats.Cached++
			in.resumeAudio(ctx, logger, dir, &stats)
			continue
		}

		if err := in.capture(ctx, logger, episode, dir, &stats); err != nil {
			return stats, err
		}
		stats.Resolved++
	}

	logger.Info("podcast extraction completed",
		"discovered", stats.Discovered,
		"resolved", stats.Resolved,
		"cached", stats.Cached,
		"failed", stats.Failed,
		"downloaded", stats.Downloaded)
	return stats, nil
}

func (in *Ingester) capture(ctx context.Context, logger *slog.Logger, episode *domain.Episode, dir string, stats *IngestStats) error {
	if err := in.Store.EnsureDir(dir); err != nil {
		return err
	}

	// The record goes first so an interrupted download can be resumed from it.
	path, err := in.Store.WriteRecord(dir, episode)
	if err != nil {
		return fmt.Errorf("write record for %s: %w", episode.URL, err)
	}
	logger.Info("episode saved", "url", episode.URL, "path", path)

	in.downloadAudio(ctx, logger, episode.MP3, dir, stats)

	if in.Documents != nil && episode.TranscriptURL != "" {
		in.capturePublisherTranscript(ctx, logger, episode.TranscriptURL, dir, stats)
	}
	return nil
}

// resumeAudio retries the audio of a stored episode whose earlier download
// failed, using the candidates recorded in its data.json.
func (in *Ingester) resumeAudio(ctx context.Context, logger *slog.Logger, dir string, stats *IngestStats) {
	if store.Exists(filepath.Join(dir, store.AudioFile)) {
		return
	}
	record, err := store.ReadRecord(dir)
	if err != nil {
		logger.Warn("stored episode has no readable record, run with --force to refetch it",
			"path", dir, "error", err)
		return
	}
	if !record.HasAudio() {
		return
	}
	logger.Info("retrying missing audio", "path", dir)
	in.downloadAudio(ctx, logger, record.MP3, dir, stats)
}

// downloadAudio saves the first candidate that downloads successfully.
func (in *Ingester) downloadAudio(ctx context.Context, logger *slog.Logger, candidates []string, dir string, stats *IngestStats) {
	dest := filepath.Join(dir, store.AudioFile)
	if len(candidates) == 0 {
		logger.Debug("no audio found", "path", dir)
		return
	}
	if store.Exists(dest) {
		return
	}

	for _, u := range candidates {
		if ctx.Err() != nil {
			return
		}
		if err := in.Fetcher.Fetch(ctx, u, dest); err != nil {
			logger.Warn("audio candidate failed", "url", u, "error", err)
			continue
		}
		stats.Downloaded++
		return
	}
	stats.DownloadFailed++
}

func (in *Ingester) capturePublisherTranscript(ctx context.Context, logger *slog.Logger, transcriptURL, dir string, stats *IngestStats) {
	dest := filepath.Join(dir, store.PublisherFile)
	if store.Exists(dest) {
		return
	}

	text, err := in.fetchTranscript(ctx, transcriptURL)
	if err != nil {
		logger.Warn("publisher transcript unavailable", "url", transcriptURL, "error", err)
		return
	}
	if err := store.WriteText(dest, text); err != nil {
		logger.Warn("failed to save publisher transcript", "path", dest, "error", err)
		return
	}
	stats.PublisherTranscripts++
	logger.Info("publisher transcript saved", "url", transcriptURL, "path", dest)
}

func (in *Ingester) fetchTranscript(ctx context.Context, transcriptURL string) (string, error) {
	resp, err := in.Documents.Get(ctx, transcriptURL)
	if err != nil {
		return "", err
	}
	defer httpclient.DrainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTranscriptBytes))
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	return content.TranscriptText(body, resp.Header.Get("Content-Type"), transcriptURL)
}
