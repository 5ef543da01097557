package feed

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"podscribe/pkg/domain"
	"podscribe/pkg/httpclient"
	"podscribe/pkg/logging"
)

// maxIndexDepth bounds nested sitemap indexes.
const maxIndexDepth = 3

// urlSet represents a regular sitemap structure
type urlSet struct {
	XMLName xml.Name   `xml:"urlset"`
	URLs    []urlEntry `xml:"url"`
}

// urlEntry represents a single URL entry in XML
type urlEntry struct {
	Location string `xml:"loc"`
	LastMod  string `xml:"lastmod,omitempty"`
}

// sitemapIndex represents a sitemap index structure
type sitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Sitemaps []sitemapRef `xml:"sitemap"`
}

// sitemapRef represents a reference to another sitemap in an index
type sitemapRef struct {
	Location string `xml:"loc"`
}

// SitemapReader reads episode links from an XML sitemap or sitemap index.
type SitemapReader struct {
	client *httpclient.HTTPClient
	logger *slog.Logger
}

// NewSitemapReader creates a sitemap reader. A nil client uses the browser profile.
func NewSitemapReader(client *httpclient.HTTPClient, logger *slog.Logger) *SitemapReader {
	if client == nil {
		client = httpclient.NewClient(httpclient.BrowserClient, httpclient.DefaultTimeout)
	}
	return &SitemapReader{client: client, logger: logging.OrDefault(logger)}
}

// Read returns every location of the sitemap in document order. Child
// sitemaps of an index that fail to load are logged and skipped.
func (r *SitemapReader) Read(ctx context.Context, sitemapURL string) []domain.EpisodeRef {
	refs, err := r.read(ctx, sitemapURL, 0)
	if err != nil {
		r.logger.Error("failed to read sitemap", "url", sitemapURL, "error", err)
		return []domain.EpisodeRef{}
	}
	r.logger.Info("sitemap read", "url", sitemapURL, "episodes", len(refs))
	return refs
}

func (r *SitemapReader) read(ctx context.Context, sitemapURL string, depth int) ([]domain.EpisodeRef, error) {
	body, err := r.client.GetBody(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}

	// Read first few bytes to detect sitemap type
	head := body
	if len(head) > 512 {
		head = head[:512]
	}
	if !bytes.Contains(head, []byte("sitemapindex")) {
		return parseSitemap(body)
	}

	if depth >= maxIndexDepth {
		return nil, fmt.Errorf("sitemap index nested deeper than %d levels", maxIndexDepth)
	}
	children, err := parseSitemapIndex(body)
	if err != nil {
		return nil, err
	}

	refs := []domain.EpisodeRef{}
	for _, child := range children {
		if ctx.Err() != nil {
			return refs, nil
		}
		childRefs, err := r.read(ctx, child, depth+1)
		if err != nil {
			r.logger.Warn("skipping child sitemap", "url", child, "error", err)
			continue
		}
		refs = append(refs, childRefs...)
	}
	return refs, nil
}

func parseSitemapIndex(body []byte) ([]string, error) {
	var index sitemapIndex
	if err := xml.NewDecoder(bytes.NewReader(body)).Decode(&index); err != nil {
		return nil, fmt.Errorf("failed to decode sitemap index XML: %w", err)
	}

	urls := make([]string, 0, len(index.Sitemaps))
	for _, ref := range index.Sitemaps {
		if loc := strings.TrimSpace(ref.Location); loc != "" {
			urls = append(urls, loc)
		}
	}
	return urls, nil
}

func parseSitemap(body []byte) ([]domain.EpisodeRef, error) {
	var set urlSet
	if err := xml.NewDecoder(bytes.NewReader(body)).Decode(&set); err != nil {
		return nil, fmt.Errorf("failed to decode sitemap XML: %w", err)
	}

	refs := make([]domain.EpisodeRef, 0, len(set.URLs))
	for _, entry := range set.URLs {
		loc := strings.TrimSpace(entry.Location)
		if loc == "" {
			continue
		}
		ref := domain.EpisodeRef{Link: loc}
		if t, ok := parseLastMod(entry.LastMod); ok {
			ref.Published = &t
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// parseLastMod accepts the W3C datetime forms sitemaps use.
func parseLastMod(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04Z07:00", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
