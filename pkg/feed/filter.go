package feed

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"podscribe/pkg/domain"
	"podscribe/pkg/logging"
)

// Filter decides whether a discovered link is an episode worth resolving.
type Filter interface {
	ShouldKeep(link string) bool
}

// BaseURLFilter drops links to a site root.
type BaseURLFilter struct{}

// ShouldKeep returns false if link is a base/root URL
func (BaseURLFilter) ShouldKeep(link string) bool {
	parsed, err := url.Parse(link)
	if err != nil {
		// Unparseable links fail later, with the URL in the error.
		return true
	}
	return strings.Trim(parsed.Path, "/") != ""
}

// ContainsPathFilter keeps links containing a path segment, such as the
// show's "/podcasts/<show>/" prefix.
type ContainsPathFilter struct {
	PathSegment string
}

// ShouldKeep returns true if link contains the path segment
func (f ContainsPathFilter) ShouldKeep(link string) bool {
	return strings.Contains(link, f.PathSegment)
}

// Filtered wraps a source and drops the links any filter rejects.
type Filtered struct {
	Source  Source
	Filters []Filter
	Logger  *slog.Logger
}

// Read implements Source.
func (f *Filtered) Read(ctx context.Context, feedURL string) []domain.EpisodeRef {
	refs := f.Source.Read(ctx, feedURL)
	kept := make([]domain.EpisodeRef, 0, len(refs))
	for _, ref := range refs {
		if f.keep(ref.Link) {
			kept = append(kept, ref)
		}
	}
	if dropped := len(refs) - len(kept); dropped > 0 {
		logging.OrDefault(f.Logger).Debug("filtered feed links", "url", feedURL, "dropped", dropped)
	}
	return kept
}

func (f *Filtered) keep(link string) bool {
	for _, filter := range f.Filters {
		if !filter.ShouldKeep(link) {
			return false
		}
	}
	return true
}
