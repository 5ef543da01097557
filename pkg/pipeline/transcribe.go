package pipeline

import (
	"context"
	"log/slog"

	"podscribe/pkg/logging"
	"podscribe/pkg/store"
	"podscribe/pkg/transcribe"
)

// TranscribeStats summarizes one transcription run.
type TranscribeStats struct {
	AudioFiles     int
	Transcribed    int
	AlreadyDone    int
	Failed         int
	RateLimitWaits int
}

// Transcriber submits every audio file of the store that has no transcript.
type Transcriber struct {
	Store     *store.Store
	Submitter AudioSubmitter
	Logger    *slog.Logger
}

// Run walks the store in sorted depth-first order. Per-file API failures
// are counted and skipped; errors returned by the submitter stop the run.
func (t *Transcriber) Run(ctx context.Context) (TranscribeStats, error) {
	logger := logging.OrDefault(t.Logger)
	var stats TranscribeStats

	files, err := t.Store.AudioFiles(ctx)
	if err != nil {
		return stats, err
	}
	stats.AudioFiles = len(files)
	logger.Info("starting transcription", "audio_files", len(files))

	for _, audio := range files {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		result, err := t.Submitter.Submit(ctx, audio)
		stats.RateLimitWaits += result.RateLimitWaits
		if err != nil {
			return stats, err
		}

		switch result.Outcome {
		case transcribe.OutcomeSuccess:
			stats.Transcribed++
		case transcribe.OutcomeAlreadyDone:
			stats.AlreadyDone++
		case transcribe.OutcomePermanentFailure:
			stats.Failed++
		}
	}

	logger.Info("transcription completed",
		"transcribed", stats.Transcribed,
		"already_done", stats.AlreadyDone,
		"failed", stats.Failed,
		"rate_limit_waits", stats.RateLimitWaits)
	return stats, nil
}
