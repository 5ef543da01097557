package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Paths contains filesystem locations.
type Paths struct {
	StoreDir string `toml:"store_dir" yaml:"store_dir"`
}

// Feed describes where episodes are discovered.
type Feed struct {
	URL          string `toml:"url" yaml:"url"`
	Kind         string `toml:"kind" yaml:"kind"`
	MaxPages     int    `toml:"max_pages" yaml:"max_pages"`
	LinkSelector string `toml:"link_selector" yaml:"link_selector"`
	PathFilter   string `toml:"path_filter" yaml:"path_filter"`
}

// HTTP contains outbound HTTP settings shared by every fetch.
type HTTP struct {
	Profile        string `toml:"profile" yaml:"profile"`
	TimeoutSeconds int    `toml:"timeout_seconds" yaml:"timeout_seconds"`
}

// Ingest contains ingestion behavior switches.
type Ingest struct {
	OnResolveError       string `toml:"on_resolve_error" yaml:"on_resolve_error"`
	PublisherTranscripts bool   `toml:"publisher_transcripts" yaml:"publisher_transcripts"`
}

// Gladia contains transcription API settings.
type Gladia struct {
	APIKey               string `toml:"api_key" yaml:"api_key"`
	Endpoint             string `toml:"endpoint" yaml:"endpoint"`
	RateLimitWaitSeconds int    `toml:"rate_limit_wait_seconds" yaml:"rate_limit_wait_seconds"`
	MaxRateLimitRetries  int    `toml:"max_rate_limit_retries" yaml:"max_rate_limit_retries"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

// Export contains catalog export targets. Every target is optional.
type Export struct {
	MongoURI         string `toml:"mongo_uri" yaml:"mongo_uri"`
	MongoDatabase    string `toml:"mongo_database" yaml:"mongo_database"`
	MongoCollection  string `toml:"mongo_collection" yaml:"mongo_collection"`
	PostgresDSN      string `toml:"postgres_dsn" yaml:"postgres_dsn"`
	SupabaseURL      string `toml:"supabase_url" yaml:"supabase_url"`
	SupabaseKey      string `toml:"supabase_key" yaml:"supabase_key"`
	SupabasePassword string `toml:"supabase_password" yaml:"supabase_password"`
}

// Config is built once at startup and handed to each component constructor.
type Config struct {
	Paths   Paths   `toml:"paths" yaml:"paths"`
	Feed    Feed    `toml:"feed" yaml:"feed"`
	HTTP    HTTP    `toml:"http" yaml:"http"`
	Ingest  Ingest  `toml:"ingest" yaml:"ingest"`
	Gladia  Gladia  `toml:"gladia" yaml:"gladia"`
	Logging Logging `toml:"logging" yaml:"logging"`
	Export  Export  `toml:"export" yaml:"export"`
}

// Purpose selects which settings Validate treats as required.
type Purpose int

const (
	PurposeIngest Purpose = iota
	PurposeTranscribe
	PurposeRun
	PurposeStatus
	PurposeExport
)

const (
	FeedKindRSS     = "rss"
	FeedKindListing = "listing"
	FeedKindSitemap = "sitemap"

	ResolveErrorAbort    = "abort"
	ResolveErrorContinue = "continue"
)

// ErrMissingSetting marks a required setting that was not provided.
var ErrMissingSetting = errors.New("missing required setting")

// Default returns the configuration used when no file overrides a value.
func Default() Config {
	return Config{
		Feed: Feed{
			Kind:         FeedKindRSS,
			MaxPages:     5,
			LinkSelector: "span.CardTitle a[href]",
		},
		HTTP: HTTP{
			Profile:        "browser",
			TimeoutSeconds: 60,
		},
		Ingest: Ingest{
			OnResolveError: ResolveErrorAbort,
		},
		Gladia: Gladia{
			Endpoint:             "https://api.gladia.io/audio/text/audio-transcription/",
			RateLimitWaitSeconds: 3600,
		},
		Logging: Logging{
			Level:  "info",
			Format: "auto",
		},
		Export: Export{
			MongoDatabase:   "podscribe",
			MongoCollection: "episodes",
		},
	}
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/podscribe/config.toml")
}

// Load reads the configuration file at path (or the default location when
// path is empty), applies environment overrides and normalizes paths.
// A missing file is not an error: defaults and environment still apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, err
	}
	if exists {
		if err := decodeFile(resolved, &cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv(os.LookupEnv)
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		if err := toml.NewDecoder(file).Decode(cfg); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		def, err := DefaultConfigPath()
		if err != nil {
			return "", false, err
		}
		path = def
	}
	expanded, err := expandPath(path)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(expanded)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("config path %s is a directory", expanded)
	}
	return expanded, true, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("PODSCRIBE_STORE_DIR"); ok && v != "" {
		c.Paths.StoreDir = v
	}
	if v, ok := lookup("PODSCRIBE_FEED_URL"); ok && v != "" {
		c.Feed.URL = v
	}
	if v, ok := lookup("GLADIA_API_KEY"); ok && v != "" {
		c.Gladia.APIKey = v
	}
	if v, ok := lookup("PODSCRIBE_GLADIA_KEY"); ok && v != "" {
		c.Gladia.APIKey = v
	}
}

func (c *Config) normalize() error {
	if c.Paths.StoreDir != "" {
		dir, err := expandPath(c.Paths.StoreDir)
		if err != nil {
			return fmt.Errorf("store_dir: %w", err)
		}
		c.Paths.StoreDir = dir
	}
	c.Feed.URL = strings.TrimSpace(c.Feed.URL)
	c.Feed.Kind = strings.ToLower(strings.TrimSpace(c.Feed.Kind))
	c.Feed.PathFilter = strings.TrimSpace(c.Feed.PathFilter)
	if c.Feed.Kind == "" {
		c.Feed.Kind = FeedKindRSS
	}
	c.Ingest.OnResolveError = strings.ToLower(strings.TrimSpace(c.Ingest.OnResolveError))
	if c.Ingest.OnResolveError == "" {
		c.Ingest.OnResolveError = ResolveErrorAbort
	}
	c.Gladia.APIKey = strings.TrimSpace(c.Gladia.APIKey)
	return nil
}

// Validate checks the settings the given command needs. Missing settings are
// reported together so a single run surfaces all of them.
func (c *Config) Validate(purpose Purpose) error {
	var errs []error
	missing := func(name string) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrMissingSetting, name))
	}

	if c.Paths.StoreDir == "" {
		missing("paths.store_dir")
	}
	if purpose == PurposeIngest || purpose == PurposeRun {
		if c.Feed.URL == "" {
			missing("feed.url")
		}
	}
	if purpose == PurposeTranscribe || purpose == PurposeRun {
		if c.Gladia.APIKey == "" {
			missing("gladia.api_key")
		}
	}
	if purpose == PurposeExport {
		if c.Export.MongoURI == "" && c.Export.PostgresDSN == "" && c.Export.SupabaseURL == "" {
			missing("export.mongo_uri, export.postgres_dsn or export.supabase_url")
		}
	}

	switch c.Feed.Kind {
	case FeedKindRSS, FeedKindListing, FeedKindSitemap:
	default:
		errs = append(errs, fmt.Errorf("feed.kind: unsupported value %q", c.Feed.Kind))
	}
	switch c.Ingest.OnResolveError {
	case ResolveErrorAbort, ResolveErrorContinue:
	default:
		errs = append(errs, fmt.Errorf("ingest.on_resolve_error: unsupported value %q", c.Ingest.OnResolveError))
	}
	if c.Gladia.RateLimitWaitSeconds < 0 {
		errs = append(errs, fmt.Errorf("gladia.rate_limit_wait_seconds must not be negative"))
	}
	if c.Gladia.MaxRateLimitRetries < 0 {
		errs = append(errs, fmt.Errorf("gladia.max_rate_limit_retries must not be negative"))
	}

	return errors.Join(errs...)
}

// HTTPTimeout returns the per-request timeout.
func (c *Config) HTTPTimeout() time.Duration {
	if c.HTTP.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// RateLimitWait returns the fixed wait applied after a 429 response.
func (c *Config) RateLimitWait() time.Duration {
	return time.Duration(c.Gladia.RateLimitWaitSeconds) * time.Second
}

func expandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Abs(path)
}
