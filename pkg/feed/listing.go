package feed

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"podscribe/pkg/domain"
	"podscribe/pkg/httpclient"
	"podscribe/pkg/logging"

	"github.com/PuerkitoBio/goquery"
)

const (
	DefaultMaxPages     = 5
	DefaultLinkSelector = "span.CardTitle a[href]"
)

// ListingReader walks the paginated HTML listing of a show ({url}?p=1..N)
// and collects the episode links of every page.
type ListingReader struct {
	client   *httpclient.HTTPClient
	logger   *slog.Logger
	maxPages int
	selector string
}

// NewListingReader creates a listing reader. Zero values select the defaults.
func NewListingReader(client *httpclient.HTTPClient, logger *slog.Logger, maxPages int, selector string) *ListingReader {
	if client == nil {
		client = httpclient.NewClient(httpclient.BrowserClient, httpclient.DefaultTimeout)
	}
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	if strings.TrimSpace(selector) == "" {
		selector = DefaultLinkSelector
	}
	return &ListingReader{
		client:   client,
		logger:   logging.OrDefault(logger),
		maxPages: maxPages,
		selector: selector,
	}
}

// Read returns the links found on every listing page, deduplicated in
// first-seen order. Pages that fail to load are logged and skipped.
func (r *ListingReader) Read(ctx context.Context, listingURL string) []domain.EpisodeRef {
	seen := make(map[string]bool)
	refs := []domain.EpisodeRef{}

	for page := 1; page <= r.maxPages; page++ {
		if ctx.Err() != nil {
			break
		}

		pageURL, err := pageURL(listingURL, page)
		if err != nil {
			r.logger.Error("invalid listing url", "url", listingURL, "error", err)
			return refs
		}

		body, err := r.client.GetBody(ctx, pageURL)
		if err != nil {
			r.logger.Warn("failed to fetch listing page", "url", pageURL, "error", err)
			continue
		}

		links, err := r.extractLinks(body, pageURL)
		if err != nil {
			r.logger.Warn("failed to parse listing page", "url", pageURL, "error", err)
			continue
		}

		for _, ref := range links {
			if seen[ref.Link] {
				continue
			}
			seen[ref.Link] = true
			refs = append(refs, ref)
		}
		r.logger.Debug("listing page read", "url", pageURL, "links", len(links))
	}

	r.logger.Info("listing read", "url", listingURL, "pages", r.maxPages, "episodes", len(refs))
	return refs
}

func (r *ListingReader) extractLinks(body []byte, base string) ([]domain.EpisodeRef, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, err
	}

	var refs []domain.EpisodeRef
	doc.Find(r.selector).Each(func(_ int, sel *goquery.Selection) {
		href, exists := sel.Attr("href")
		if !exists || strings.TrimSpace(href) == "" {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := baseURL.ResolveReference(ref)
		abs.Fragment = ""
		refs = append(refs, domain.EpisodeRef{
			Link:  abs.String(),
			Title: strings.TrimSpace(sel.Text()),
		})
	})
	return refs, nil
}

// pageURL sets the p query parameter of listingURL to page.
func pageURL(listingURL string, page int) (string, error) {
	u, err := url.Parse(listingURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("p", fmt.Sprint(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
