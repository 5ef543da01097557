// Package feed discovers episode links from a podcast feed, the show's
// listing pages or a sitemap.
package feed

import (
	"context"
	"fmt"
	"log/slog"

	"podscribe/pkg/domain"
	"podscribe/pkg/httpclient"
)

// Source yields the episode links published at a feed URL. Sources never
// fail: fetch and parse problems are logged and produce an empty result.
type Source interface {
	Read(ctx context.Context, url string) []domain.EpisodeRef
}

const (
	KindRSS     = "rss"
	KindListing = "listing"
	KindSitemap = "sitemap"
)

// Options configures the sources built by New.
type Options struct {
	Client       *httpclient.HTTPClient
	Logger       *slog.Logger
	MaxPages     int
	LinkSelector string
	// PathFilter, when set, keeps only links containing it.
	PathFilter string
}

// New returns the source for kind. An empty kind means rss. Sitemap sources
// always drop root links, since sitemaps list every page of a site.
func New(kind string, opts Options) (Source, error) {
	var (
		src     Source
		filters []Filter
	)
	switch kind {
	case KindRSS, "":
		src = NewRSSReader(opts.Client, opts.Logger)
	case KindListing:
		src = NewListingReader(opts.Client, opts.Logger, opts.MaxPages, opts.LinkSelector)
	case KindSitemap:
		src = NewSitemapReader(opts.Client, opts.Logger)
		filters = append(filters, BaseURLFilter{})
	default:
		return nil, fmt.Errorf("unknown feed kind %q", kind)
	}

	if opts.PathFilter != "" {
		filters = append(filters, ContainsPathFilter{PathSegment: opts.PathFilter})
	}
	if len(filters) == 0 {
		return src, nil
	}
	return &Filtered{Source: src, Filters: filters, Logger: opts.Logger}, nil
}
