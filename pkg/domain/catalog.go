package domain

import (
	"encoding/json"
	"time"
)

// CatalogEntry is the exported view of one stored episode: its record plus
// the state of the files captured next to it.
type CatalogEntry struct {
	Slug                string          `json:"slug" bson:"slug"`
	URL                 string          `json:"url" bson:"url"`
	Title               string          `json:"title" bson:"title"`
	Date                *string         `json:"date" bson:"date,omitempty"`
	MP3                 []string        `json:"mp3" bson:"mp3"`
	Content             string          `json:"content" bson:"content"`
	Metadata            json.RawMessage `json:"metadata" bson:"-"`
	TranscriptURL       string          `json:"transcript_url" bson:"transcript_url,omitempty"`
	Transcript          string          `json:"transcript" bson:"transcript,omitempty"`
	PublisherTranscript string          `json:"publisher_transcript" bson:"publisher_transcript,omitempty"`
	HasAudio            bool            `json:"has_audio" bson:"has_audio"`
	Directory           string          `json:"directory" bson:"directory"`
	CrawledAt           time.Time       `json:"crawled_at" bson:"crawled_at"`
	ExportedAt          time.Time       `json:"exported_at" bson:"exported_at"`
}
