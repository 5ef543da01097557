package replication

import (
	"context"
	"crypto/md5"
	"database/sql"
	"fmt"
	"strings"

	"podscribe/pkg/domain"
)

const episodeDDL = `
CREATE TABLE IF NOT EXISTS episode (
  slug TEXT PRIMARY KEY,
  url TEXT NOT NULL,
  title TEXT NOT NULL DEFAULT '',
  published_on DATE,
  mp3 TEXT[] NOT NULL DEFAULT '{}',
  content TEXT NOT NULL DEFAULT '',
  metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
  transcript_url TEXT NOT NULL DEFAULT '',
  transcript TEXT NOT NULL DEFAULT '',
  has_audio BOOLEAN NOT NULL DEFAULT false,
  crawled_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  exported_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// Rows are replaced on conflict: a later export carries newer transcripts.
const upsertEpisodeQuery = `
INSERT INTO episode (slug, url, title, published_on, mp3, content, metadata, transcript_url, transcript, has_audio, crawled_at, exported_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (slug) DO UPDATE SET
  url = EXCLUDED.url,
  title = EXCLUDED.title,
  published_on = EXCLUDED.published_on,
  mp3 = EXCLUDED.mp3,
  content = EXCLUDED.content,
  metadata = EXCLUDED.metadata,
  transcript_url = EXCLUDED.transcript_url,
  transcript = EXCLUDED.transcript,
  has_audio = EXCLUDED.has_audio,
  crawled_at = EXCLUDED.crawled_at,
  exported_at = EXCLUDED.exported_at`

func (e *Exporter) exportPostgres(ctx context.Context, entries []domain.CatalogEntry) (inserted, updated int, err error) {
	if err := e.ensureEpisodeSchema(ctx); err != nil {
		return 0, 0, err
	}

	for start := 0; start < len(entries); start += exportBatchSize {
		end := batchEnd(start, exportBatchSize, len(entries))
		batch := entries[start:end]

		existing, err := e.existingSlugs(ctx, batch)
		if err != nil {
			return inserted, updated, fmt.Errorf("check existing slugs for batch [%d:%d]: %w", start, end, err)
		}
		if err := e.upsertEpisodesTx(ctx, batch); err != nil {
			return inserted, updated, fmt.Errorf("upsert batch [%d:%d]: %w", start, end, err)
		}

		for _, entry := range batch {
			if existing[entry.Slug] {
				updated++
			} else {
				inserted++
			}
		}
		e.logger.Debug("postgres batch exported", "start", start, "end", end, "existing", len(existing))
	}
	return inserted, updated, nil
}

func (e *Exporter) ensureEpisodeSchema(ctx context.Context) error {
	if e.pg.DB() == nil {
		return fmt.Errorf("postgres DB not connected")
	}
	if _, err := e.pg.DB().ExecContext(ctx, episodeDDL); err != nil {
		return fmt.Errorf("create episode table: %w", err)
	}
	return nil
}

// existingSlugs returns which slugs of batch already have a row.
func (e *Exporter) existingSlugs(ctx context.Context, batch []domain.CatalogEntry) (map[string]bool, error) {
	slugs := make([]any, 0, len(batch))
	for _, entry := range batch {
		slugs = append(slugs, entry.Slug)
	}
	if len(slugs) == 0 {
		return map[string]bool{}, nil
	}

	query, args := buildSlugInQuery(slugs)
	rows, err := e.pg.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query existing slugs: %w", err)
	}
	defer rows.Close()

	set := make(map[string]bool)
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, fmt.Errorf("scan slug: %w", err)
		}
		set[slug] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return set, nil
}

// buildSlugInQuery builds a SELECT with one placeholder per slug. The
// comment prefix makes each batch shape a distinct statement, which keeps
// the pgx statement cache from reusing a plan with a different arity.
func buildSlugInQuery(slugs []any) (string, []any) {
	var hashSuffix string
	if first, ok := slugs[0].(string); ok {
		hash := md5.Sum([]byte(first))
		hashSuffix = fmt.Sprintf("%x", hash[:4])
	}

	var b strings.Builder
	fmt.Fprintf(&b, `/* q_%d_%s */ SELECT slug FROM episode WHERE slug IN (`, len(slugs), hashSuffix)
	for i := range slugs {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "$%d", i+1)
	}
	b.WriteString(")")
	return b.String(), slugs
}

func (e *Exporter) upsertEpisodesTx(ctx context.Context, batch []domain.CatalogEntry) error {
	tx, err := e.pg.DB().BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertEpisodeQuery)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, entry := range batch {
		if _, err := stmt.ExecContext(ctx, upsertArgs(&entry)...); err != nil {
			return fmt.Errorf("upsert episode slug=%q: %w", entry.Slug, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func upsertArgs(entry *domain.CatalogEntry) []any {
	var publishedOn any
	if entry.Date != nil {
		publishedOn = *entry.Date
	}
	metadata := "{}"
	if len(entry.Metadata) > 0 {
		metadata = string(entry.Metadata)
	}
	return []any{
		entry.Slug,
		entry.URL,
		entry.Title,
		publishedOn,
		entry.MP3,
		entry.Content,
		metadata,
		entry.TranscriptURL,
		entry.Transcript,
		entry.HasAudio,
		entry.CrawledAt,
		entry.ExportedAt,
	}
}
