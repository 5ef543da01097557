// Package replication copies the episode store into external catalogs.
// The store stays the source of truth; exports are one-way.
package replication

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"podscribe/pkg/db"
	"podscribe/pkg/domain"
	"podscribe/pkg/logging"
	"podscribe/pkg/store"
)

const exportBatchSize = 100

// Config wires the export targets. Any target left nil is skipped.
type Config struct {
	Mongo    db.EpisodeSaver
	Postgres db.DBProvider
	Supabase EpisodeUpserter
	Logger   *slog.Logger
}

// EpisodeUpserter writes a batch of entries through an API.
type EpisodeUpserter interface {
	UpsertEpisodes(ctx context.Context, entries []domain.CatalogEntry) error
}

// Stats summarizes one export.
type Stats struct {
	Episodes         int
	Skipped          int
	MongoSaved       int
	PostgresInserted int
	PostgresUpdated  int
	SupabaseUpserted int
}

// Exporter reads every recorded episode of a store and writes it to the
// configured targets.
type Exporter struct {
	mongo    db.EpisodeSaver
	pg       db.DBProvider
	supabase EpisodeUpserter
	logger   *slog.Logger
	now      func() time.Time
}

func NewExporter(cfg Config) (*Exporter, error) {
	if cfg.Mongo == nil && cfg.Postgres == nil && cfg.Supabase == nil {
		return nil, fmt.Errorf("at least one export target is required")
	}
	return &Exporter{
		mongo:    cfg.Mongo,
		pg:       cfg.Postgres,
		supabase: cfg.Supabase,
		logger:   logging.OrDefault(cfg.Logger),
		now:      time.Now,
	}, nil
}

// Export copies the store's episodes to every configured target.
func (e *Exporter) Export(ctx context.Context, st *store.Store) (Stats, error) {
	var stats Stats

	entries, skipped, err := e.LoadEntries(st)
	if err != nil {
		return stats, err
	}
	stats.Episodes = len(entries)
	stats.Skipped = skipped
	e.logger.Info("loaded episodes from store", "episodes", len(entries), "skipped", skipped)

	if e.mongo != nil {
		for i := range entries {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			if err := e.mongo.SaveEpisode(ctx, &entries[i]); err != nil {
				return stats, fmt.Errorf("save episode %s to mongo: %w", entries[i].Slug, err)
			}
			stats.MongoSaved++
		}
		e.logger.Info("mongo export complete", "saved", stats.MongoSaved)
	}

	if e.pg != nil {
		inserted, updated, err := e.exportPostgres(ctx, entries)
		stats.PostgresInserted, stats.PostgresUpdated = inserted, updated
		if err != nil {
			return stats, err
		}
		e.logger.Info("postgres export complete", "inserted", inserted, "updated", updated)
	}

	if e.supabase != nil {
		for start := 0; start < len(entries); start += exportBatchSize {
			end := batchEnd(start, exportBatchSize, len(entries))
			if err := e.supabase.UpsertEpisodes(ctx, entries[start:end]); err != nil {
				return stats, fmt.Errorf("supabase batch [%d:%d]: %w", start, end, err)
			}
			stats.SupabaseUpserted += end - start
		}
		e.logger.Info("supabase export complete", "upserted", stats.SupabaseUpserted)
	}

	return stats, nil
}

// LoadEntries builds a catalog entry for every directory holding a
// data.json. Directories with a missing or unreadable record are counted
// as skipped.
func (e *Exporter) LoadEntries(st *store.Store) ([]domain.CatalogEntry, int, error) {
	dirs, err := st.Episodes()
	if err != nil {
		return nil, 0, fmt.Errorf("list store: %w", err)
	}

	exportedAt := e.now().UTC()
	entries := make([]domain.CatalogEntry, 0, len(dirs))
	skipped := 0
	for _, dir := range dirs {
		if !dir.HasRecord {
			skipped++
			continue
		}
		record, err := store.ReadRecord(dir.Path)
		if err != nil {
			e.logger.Warn("skipping unreadable record", "path", dir.Path, "error", err)
			skipped++
			continue
		}
		entry, err := newEntry(record, dir)
		if err != nil {
			e.logger.Warn("skipping episode", "path", dir.Path, "error", err)
			skipped++
			continue
		}
		entry.ExportedAt = exportedAt
		entries = append(entries, entry)
	}
	return entries, skipped, nil
}

func newEntry(record *domain.Episode, dir store.EpisodeDir) (domain.CatalogEntry, error) {
	entry := domain.CatalogEntry{
		Slug:          record.Slug,
		URL:           record.URL,
		Title:         record.Title,
		Date:          record.Date,
		MP3:           record.MP3,
		Content:       record.ContentFromURL,
		TranscriptURL: record.TranscriptURL,
		HasAudio:      dir.HasAudio,
		Directory:     dir.Name,
		CrawledAt:     record.CrawledAt,
	}
	if entry.Slug == "" {
		return entry, store.ErrEmptySlug
	}
	if entry.MP3 == nil {
		entry.MP3 = []string{}
	}

	if len(record.StructuredMetadata) > 0 {
		metadata, err := json.Marshal(record.StructuredMetadata)
		if err != nil {
			return entry, fmt.Errorf("encode metadata: %w", err)
		}
		entry.Metadata = metadata
	}

	var err error
	if dir.HasTranscript {
		entry.Transcript, err = readOptional(store.TranscriptPath(filepath.Join(dir.Path, store.AudioFile)))
		if err != nil {
			return entry, err
		}
	}
	entry.PublisherTranscript, err = readOptional(filepath.Join(dir.Path, store.PublisherFile))
	return entry, err
}

func readOptional(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func batchEnd(start, batchSize, totalLen int) int {
	end := start + batchSize
	if end > totalLen {
		return totalLen
	}
	return end
}
