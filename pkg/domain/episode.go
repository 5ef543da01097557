package domain

import (
	"encoding/json"
	"time"
)

// EpisodeRef is an episode link discovered by a feed source. It is consumed
// immediately by the resolver and never persisted on its own.
type EpisodeRef struct {
	Link      string
	Title     string
	Published *time.Time
}

// Episode is the record persisted as data.json inside an episode directory.
//
// Slug is the identity key: it is derived from the last path segment of URL
// and names the storage directory together with the optional Date.
type Episode struct {
	// URL is the canonical URL of the episode page.
	URL string `json:"url" bson:"url"`

	// Slug is the last path segment of URL.
	Slug string `json:"slug" bson:"slug"`

	// Title is the episode title, when one could be extracted.
	Title string `json:"title,omitempty" bson:"title,omitempty"`

	// Date is the publication date formatted as YYYY-MM-DD. Nil when unknown.
	Date *string `json:"date" bson:"date,omitempty"`

	// MP3 lists candidate audio URLs in first-seen order, without duplicates.
	MP3 []string `json:"mp3" bson:"mp3"`

	// ContentFromURL is the newline-joined text of the page's content containers.
	ContentFromURL string `json:"content_from_url" bson:"content_from_url"`

	// StructuredMetadata maps a JSON-LD @type to the raw object of that type.
	StructuredMetadata map[string]json.RawMessage `json:"structured_metadata" bson:"-"`

	// TranscriptURL is a transcript document linked by the publisher, when found.
	TranscriptURL string `json:"transcript_url,omitempty" bson:"transcript_url,omitempty"`

	// CrawledAt is when the page was fetched.
	CrawledAt time.Time `json:"crawled_at" bson:"crawled_at"`
}

// HasAudio reports whether any audio candidate was found for the episode.
func (e *Episode) HasAudio() bool {
	return e != nil && len(e.MP3) > 0
}

// DateLayout is the layout used for Episode.Date and directory prefixes.
const DateLayout = "2006-01-02"

// SetDate stores t as the episode date.
func (e *Episode) SetDate(t time.Time) {
	s := t.Format(DateLayout)
	e.Date = &s
}
