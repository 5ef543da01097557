// Package pipeline drives the two passes over the episode store: ingestion
// (feed -> resolver -> audio download -> data.json) and transcription
// (store walk -> transcription submitter).
package pipeline

import (
	"context"
	"net/http"

	"podscribe/pkg/domain"
	"podscribe/pkg/transcribe"
)

// EpisodeSource lists the episode links of a feed.
type EpisodeSource interface {
	Read(ctx context.Context, url string) []domain.EpisodeRef
}

// EpisodeResolver turns an episode URL into a record and its directory.
type EpisodeResolver interface {
	Resolve(ctx context.Context, url string, force bool) (*domain.Episode, string, bool, error)
}

// AssetFetcher downloads url to dest.
type AssetFetcher interface {
	Fetch(ctx context.Context, url, dest string) error
}

// DocumentFetcher fetches publisher documents such as transcripts.
type DocumentFetcher interface {
	Get(ctx context.Context, url string) (*http.Response, error)
}

// AudioSubmitter transcribes one audio file.
type AudioSubmitter interface {
	Submit(ctx context.Context, audioPath string) (transcribe.Result, error)
}

// FailurePolicy decides what a batch does when one item fails.
type FailurePolicy int

const (
	// PolicyPropagate stops the batch and returns the first error.
	PolicyPropagate FailurePolicy = iota
	// PolicyRecover logs the error and moves on to the next item.
	PolicyRecover
)

func (p FailurePolicy) String() string {
	if p == PolicyRecover {
		return "recover"
	}
	return "propagate"
}
