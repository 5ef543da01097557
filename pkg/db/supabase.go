package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"podscribe/pkg/domain"

	supabase "github.com/supabase-community/supabase-go"
)

// EpisodeTable is the table episodes are exported to.
const EpisodeTable = "episode"

// SupabaseConfig holds configuration required to connect to Supabase.
type SupabaseConfig struct {
	// ConnectionString is the Supabase Postgres connection string.
	// If not provided, it is built from SupabaseURL and Password.
	ConnectionString string

	// SupabaseURL is the project URL, e.g. "https://[project-ref].supabase.co".
	SupabaseURL string

	// SupabaseKey is the API key used by the REST client. Use the
	// service_role key: exports write rows.
	SupabaseKey string

	// Password is the database password, not the API key.
	Password string

	Pool PoolConfig
}

// SupabaseClient talks to Supabase either through a direct Postgres
// connection or, when only URL and key are configured, through the REST API.
type SupabaseClient struct {
	db          *sql.DB
	supabaseSDK *supabase.Client
	cfg         SupabaseConfig
}

// NewSupabaseClient constructs a Supabase client.
func NewSupabaseClient(cfg SupabaseConfig) *SupabaseClient {
	return &SupabaseClient{cfg: cfg}
}

// Connect initializes the REST client and, when credentials allow it, the
// direct database connection. A failing direct connection is tolerated when
// the REST client is available.
func (c *SupabaseClient) Connect(ctx context.Context) error {
	if c.cfg.SupabaseURL != "" && c.cfg.SupabaseKey != "" {
		sdkClient, err := supabase.NewClient(c.cfg.SupabaseURL, c.cfg.SupabaseKey, nil)
		if err != nil {
			return fmt.Errorf("initialize supabase SDK: %w", err)
		}
		c.supabaseSDK = sdkClient
	}

	connStr, err := c.connectionString()
	if err != nil && c.supabaseSDK == nil {
		return err
	}

	if connStr != "" {
		// The pooler rejects named prepared statements.
		connStr = addConnectionParam(connStr, "statement_cache_capacity", "0")
		connStr = addConnectionParam(connStr, "default_query_exec_mode", "simple_protocol")

		db, err := openDB(ctx, connStr, c.cfg.Pool)
		switch {
		case err == nil:
			c.db = db
		case c.supabaseSDK == nil:
			return fmt.Errorf("supabase: %w", err)
		}
	}

	if c.db == nil && c.supabaseSDK == nil {
		return fmt.Errorf("either connection string/password or Supabase URL+key must be provided")
	}
	return nil
}

// Close closes the database connection.
func (c *SupabaseClient) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// DB exposes the underlying sql.DB handle. Nil in REST-only mode.
func (c *SupabaseClient) DB() *sql.DB {
	return c.db
}

// HasDirectDB returns true if direct database connection is available.
func (c *SupabaseClient) HasDirectDB() bool {
	return c.db != nil
}

// UpsertEpisodes writes entries through the REST API, keyed by slug.
func (c *SupabaseClient) UpsertEpisodes(_ context.Context, entries []domain.CatalogEntry) error {
	if c.supabaseSDK == nil {
		return fmt.Errorf("supabase REST client not initialized")
	}
	if len(entries) == 0 {
		return nil
	}

	rows := make([]episodeRow, 0, len(entries))
	for i := range entries {
		rows = append(rows, newEpisodeRow(&entries[i]))
	}

	if _, _, err := c.supabaseSDK.From(EpisodeTable).Upsert(rows, "slug", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("upsert %d episodes: %w", len(rows), err)
	}
	return nil
}

// episodeRow is the REST payload of one episode table row.
type episodeRow struct {
	Slug          string          `json:"slug"`
	URL           string          `json:"url"`
	Title         string          `json:"title"`
	PublishedOn   *string         `json:"published_on"`
	MP3           []string        `json:"mp3"`
	Content       string          `json:"content"`
	Metadata      json.RawMessage `json:"metadata"`
	TranscriptURL string          `json:"transcript_url"`
	Transcript    string          `json:"transcript"`
	HasAudio      bool            `json:"has_audio"`
	CrawledAt     string          `json:"crawled_at"`
}

func newEpisodeRow(e *domain.CatalogEntry) episodeRow {
	metadata := e.Metadata
	if len(metadata) == 0 {
		metadata = json.RawMessage("{}")
	}
	return episodeRow{
		Slug:          e.Slug,
		URL:           e.URL,
		Title:         e.Title,
		PublishedOn:   e.Date,
		MP3:           e.MP3,
		Content:       e.Content,
		Metadata:      metadata,
		TranscriptURL: e.TranscriptURL,
		Transcript:    e.Transcript,
		HasAudio:      e.HasAudio,
		CrawledAt:     e.CrawledAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// connectionString returns the configured connection string, or builds one
// from the project URL and password. Empty when neither is configured.
func (c *SupabaseClient) connectionString() (string, error) {
	if c.cfg.ConnectionString != "" {
		return c.cfg.ConnectionString, nil
	}
	if c.cfg.Password == "" {
		return "", fmt.Errorf("supabase password is required when connection string is not provided")
	}
	return buildConnectionString(c.cfg.SupabaseURL, c.cfg.Password)
}

// buildConnectionString derives the direct Postgres DSN of a project from
// its URL ("https://[project-ref].supabase.co").
func buildConnectionString(projectURL, password string) (string, error) {
	if projectURL == "" {
		return "", fmt.Errorf("supabase URL is required when connection string is not provided")
	}

	parsedURL, err := url.Parse(projectURL)
	if err != nil {
		return "", fmt.Errorf("parse supabase URL: %w", err)
	}

	parts := strings.Split(parsedURL.Host, ".")
	if len(parts) < 2 || parts[0] == "" {
		return "", fmt.Errorf("invalid supabase URL format: expected [project-ref].supabase.co")
	}
	projectRef := parts[0]

	return fmt.Sprintf("postgresql://postgres:%s@db.%s.supabase.co:5432/postgres?sslmode=require",
		url.QueryEscape(password), projectRef), nil
}

// addConnectionParam adds a query parameter to the connection string if not already present.
func addConnectionParam(connStr, key, value string) string {
	if strings.Contains(connStr, key+"=") {
		return connStr
	}

	separator := "?"
	if strings.Contains(connStr, "?") {
		separator = "&"
	}
	return connStr + separator + key + "=" + value
}
