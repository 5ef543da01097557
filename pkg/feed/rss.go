package feed

import (
	"bytes"
	"context"
	"log/slog"
	"strings"

	"podscribe/pkg/domain"
	"podscribe/pkg/httpclient"
	"podscribe/pkg/logging"

	"github.com/mmcdole/gofeed"
)

// RSSReader reads RSS and Atom feeds.
type RSSReader struct {
	client     *httpclient.HTTPClient
	feedParser *gofeed.Parser
	logger     *slog.Logger
}

// NewRSSReader creates a new RSS reader. A nil client uses the browser profile.
func NewRSSReader(client *httpclient.HTTPClient, logger *slog.Logger) *RSSReader {
	if client == nil {
		client = httpclient.NewClient(httpclient.BrowserClient, httpclient.DefaultTimeout)
	}
	return &RSSReader{
		client:     client,
		feedParser: gofeed.NewParser(),
		logger:     logging.OrDefault(logger),
	}
}

// Read fetches and parses the feed at feedURL. Items without a link are
// dropped; feed order is preserved.
func (r *RSSReader) Read(ctx context.Context, feedURL string) []domain.EpisodeRef {
	body, err := r.client.GetBody(ctx, feedURL)
	if err != nil {
		r.logger.Error("failed to fetch feed", "url", feedURL, "error", err)
		return []domain.EpisodeRef{}
	}

	feed, err := r.feedParser.Parse(bytes.NewReader(body))
	if err != nil {
		r.logger.Error("failed to parse feed", "url", feedURL, "error", err)
		return []domain.EpisodeRef{}
	}

	refs := make([]domain.EpisodeRef, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil || strings.TrimSpace(item.Link) == "" {
			continue
		}
		ref := domain.EpisodeRef{
			Link:  strings.TrimSpace(item.Link),
			Title: strings.TrimSpace(item.Title),
		}
		if item.PublishedParsed != nil {
			published := *item.PublishedParsed
			ref.Published = &published
		}
		refs = append(refs, ref)
	}

	r.logger.Info("feed read", "url", feedURL, "items", len(feed.Items), "episodes", len(refs))
	return refs
}
