package main

import (
	"log/slog"

	"podscribe/pkg/config"
	"podscribe/pkg/content"
	"podscribe/pkg/download"
	"podscribe/pkg/feed"
	"podscribe/pkg/httpclient"
	"podscribe/pkg/pipeline"
	"podscribe/pkg/resolver"
	"podscribe/pkg/store"
	"podscribe/pkg/transcribe"
)

func newIngester(cfg *config.Config, st *store.Store, logger *slog.Logger, force bool) (*pipeline.Ingester, error) {
	profile, err := httpclient.ParseClientType(cfg.HTTP.Profile)
	if err != nil {
		return nil, err
	}
	client := httpclient.NewClient(profile, cfg.HTTPTimeout())

	source, err := feed.New(cfg.Feed.Kind, feed.Options{
		Client:       client,
		Logger:       logger,
		MaxPages:     cfg.Feed.MaxPages,
		LinkSelector: cfg.Feed.LinkSelector,
		PathFilter:   cfg.Feed.PathFilter,
	})
	if err != nil {
		return nil, err
	}

	pageProfile := content.DefaultProfile()
	pageProfile.TranscriptLinks = cfg.Ingest.PublisherTranscripts

	ingester := &pipeline.Ingester{
		Store:          st,
		Source:         source,
		Resolver:       resolver.New(st, client, pageProfile, logger),
		Fetcher:        download.New(client, logger),
		OnResolveError: pipeline.PolicyPropagate,
		Force:          force,
		Logger:         logger,
	}
	if cfg.Ingest.OnResolveError == config.ResolveErrorContinue {
		ingester.OnResolveError = pipeline.PolicyRecover
	}
	if cfg.Ingest.PublisherTranscripts {
		ingester.Documents = client
	}
	return ingester, nil
}

func newTranscriber(cfg *config.Config, st *store.Store, logger *slog.Logger) *pipeline.Transcriber {
	client := transcribe.NewGladiaClient(cfg.Gladia.APIKey, transcribe.WithEndpoint(cfg.Gladia.Endpoint))
	submitter := transcribe.NewSubmitter(client, transcribe.Options{
		RateLimitWait:       cfg.RateLimitWait(),
		MaxRateLimitRetries: cfg.Gladia.MaxRateLimitRetries,
		Logger:              logger,
	})
	return &pipeline.Transcriber{
		Store:     st,
		Submitter: submitter,
		Logger:    logger,
	}
}
