// Package resolver turns an episode page URL into an episode record and the
// directory it belongs in.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"podscribe/pkg/content"
	"podscribe/pkg/domain"
	"podscribe/pkg/httpclient"
	"podscribe/pkg/logging"
	"podscribe/pkg/store"
)

var ErrEmptyEpisodeURL = errors.New("episode URL is empty")

// Error reports a failure to resolve the page at URL.
type Error struct {
	URL string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("resolve %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// PageFetcher fetches the raw HTML of a page.
type PageFetcher interface {
	GetBody(ctx context.Context, url string) ([]byte, error)
}

// Resolver resolves episode pages against a store.
type Resolver struct {
	store   *store.Store
	fetcher PageFetcher
	profile content.Profile
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a resolver. A nil fetcher uses a browser-profile HTTP client.
func New(st *store.Store, fetcher PageFetcher, profile content.Profile, logger *slog.Logger) *Resolver {
	if fetcher == nil {
		fetcher = httpclient.NewClient(httpclient.BrowserClient, httpclient.DefaultTimeout)
	}
	return &Resolver{
		store:   st,
		fetcher: fetcher,
		profile: profile,
		logger:  logging.OrDefault(logger),
		now:     time.Now,
	}
}

// Resolve returns the episode record for pageURL and its directory.
//
// When the store already holds a directory for the slug and force is false,
// the existing path is returned with a record carrying only URL and Slug,
// fromCache is true and no request is made. Otherwise the page is fetched
// and parsed; the returned path is where the record should be written.
func (r *Resolver) Resolve(ctx context.Context, pageURL string, force bool) (episode *domain.Episode, path string, fromCache bool, err error) {
	slug, err := SlugFromURL(pageURL)
	if err != nil {
		return nil, "", false, &Error{URL: pageURL, Err: err}
	}

	existing, stored := r.store.HasRecord(slug)
	if stored && !force {
		r.logger.Debug("episode already stored", "url", pageURL, "path", existing)
		return &domain.Episode{URL: pageURL, Slug: slug}, existing, true, nil
	}

	episode, err = r.fetch(ctx, pageURL, slug)
	if err != nil {
		r.logger.Error("failed to resolve episode", "url", pageURL, "error", err)
		return nil, "", false, &Error{URL: pageURL, Err: err}
	}

	date := ""
	if episode.Date != nil {
		date = *episode.Date
	}
	path, err = r.store.PathFor(date, slug)
	if err != nil {
		return nil, "", false, &Error{URL: pageURL, Err: err}
	}
	if stored && existing != path {
		path, err = r.relocate(existing, path)
		if err != nil {
			return nil, "", false, &Error{URL: pageURL, Err: err}
		}
	}
	return episode, path, false, nil
}

// relocate moves a stored episode to its canonical directory so a refresh
// keeps one directory per slug. When the canonical directory is already
// taken the stored one is refreshed in place.
func (r *Resolver) relocate(existing, canonical string) (string, error) {
	if store.Exists(canonical) {
		r.logger.Warn("canonical directory already exists, refreshing stored one",
			"path", existing, "canonical", canonical)
		return existing, nil
	}
	if err := r.store.Move(existing, canonical); err != nil {
		return "", err
	}
	r.logger.Info("episode directory renamed", "from", existing, "to", canonical)
	return canonical, nil
}

func (r *Resolver) fetch(ctx context.Context, pageURL, slug string) (*domain.Episode, error) {
	crawledAt := r.now().UTC()

	body, err := r.fetcher.GetBody(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	page, err := content.ParsePage(string(body), pageURL, r.profile)
	if err != nil {
		return nil, err
	}
	if page.JSONLD.Skipped > 0 {
		r.logger.Warn("skipped malformed JSON-LD blocks", "url", pageURL, "skipped", page.JSONLD.Skipped)
	}

	episode := &domain.Episode{
		URL:                pageURL,
		Slug:               slug,
		Title:              page.Title,
		MP3:                page.MP3,
		ContentFromURL:     page.Body,
		StructuredMetadata: page.JSONLD.Types,
		TranscriptURL:      page.TranscriptURL,
		CrawledAt:          crawledAt,
	}
	episode.SetDate(page.Date)

	r.logger.Info("episode resolved",
		"url", pageURL,
		"date", *episode.Date,
		"mp3", len(episode.MP3),
		"metadata_types", len(episode.StructuredMetadata))
	return episode, nil
}

// SlugFromURL returns the last non-empty path segment of rawURL. Query and
// fragment are ignored.
func SlugFromURL(rawURL string) (string, error) {
	if strings.TrimSpace(rawURL) == "" {
		return "", ErrEmptyEpisodeURL
	}
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("invalid episode URL: %w", err)
	}

	segments := strings.Split(u.Path, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(segments[i]); s != "" {
			return s, nil
		}
	}
	return "", store.ErrEmptySlug
}
