package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"podscribe/pkg/logging"
	"podscribe/pkg/store"
)

// DefaultRateLimitWait is how long to pause after the API answers 429.
const DefaultRateLimitWait = time.Hour

// Outcome is the terminal state of one submission.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeAlreadyDone
	OutcomePermanentFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeAlreadyDone:
		return "already_done"
	case OutcomePermanentFailure:
		return "permanent_failure"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result describes what happened to one audio file.
type Result struct {
	AudioPath      string
	TranscriptPath string
	Outcome        Outcome
	RateLimitWaits int
	Err            error
}

// ErrRateLimitRetriesExhausted is returned when MaxRateLimitRetries is set
// and every retry was rate limited.
var ErrRateLimitRetriesExhausted = errors.New("rate limit retries exhausted")

// Options tunes the submitter.
type Options struct {
	// RateLimitWait defaults to DefaultRateLimitWait.
	RateLimitWait time.Duration
	// MaxRateLimitRetries caps rate-limit retries per file. Zero retries forever.
	MaxRateLimitRetries int
	// Sleep pauses between rate-limited attempts. It must return early with
	// the context error when ctx is done.
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger *slog.Logger
}

// Submitter drives one audio file through transcription.
type Submitter struct {
	client     Client
	wait       time.Duration
	maxRetries int
	sleep      func(ctx context.Context, d time.Duration) error
	logger     *slog.Logger
}

// NewSubmitter creates a submitter around client.
func NewSubmitter(client Client, opts Options) *Submitter {
	s := &Submitter{
		client:     client,
		wait:       opts.RateLimitWait,
		maxRetries: opts.MaxRateLimitRetries,
		sleep:      opts.Sleep,
		logger:     logging.OrDefault(opts.Logger),
	}
	if s.wait <= 0 {
		s.wait = DefaultRateLimitWait
	}
	if s.sleep == nil {
		s.sleep = sleepContext
	}
	return s
}

// Submit transcribes audioPath unless its transcript already exists.
//
// A rate-limited request is retried after the configured wait, with no
// attempt cap unless MaxRateLimitRetries is set. Any other API or transport
// failure is logged and reported as OutcomePermanentFailure with a nil
// error. A successful response without a prediction, a failed transcript
// write, or context cancellation is returned as an error.
func (s *Submitter) Submit(ctx context.Context, audioPath string) (Result, error) {
	result := Result{
		AudioPath:      audioPath,
		TranscriptPath: store.TranscriptPath(audioPath),
	}

	if store.Exists(result.TranscriptPath) {
		s.logger.Debug("transcript exists, skipping", "audio", audioPath)
		result.Outcome = OutcomeAlreadyDone
		return result, nil
	}

	for {
		s.logger.Info("submitting audio for transcription", "audio", audioPath)
		text, err := s.client.Transcribe(ctx, audioPath)

		var rateLimited *RateLimitError
		switch {
		case err == nil:
			if err := store.WriteText(result.TranscriptPath, text); err != nil {
				return result, fmt.Errorf("write transcript %s: %w", result.TranscriptPath, err)
			}
			s.logger.Info("transcription saved", "audio", audioPath, "transcript", result.TranscriptPath)
			result.Outcome = OutcomeSuccess
			return result, nil

		case errors.Is(err, ErrMissingPrediction):
			s.logger.Error("transcription response missing prediction", "audio", audioPath)
			return result, fmt.Errorf("%s: %w", audioPath, err)

		case ctx.Err() != nil:
			return result, ctx.Err()

		case errors.As(err, &rateLimited):
			if s.maxRetries > 0 && result.RateLimitWaits >= s.maxRetries {
				s.logger.Error("rate limit retries exhausted", "audio", audioPath, "waits", result.RateLimitWaits)
				result.Outcome = OutcomePermanentFailure
				result.Err = fmt.Errorf("%w: %v", ErrRateLimitRetriesExhausted, err)
				return result, nil
			}
			result.RateLimitWaits++
			s.logger.Warn("rate limit exceeded, waiting before retry",
				"audio", audioPath,
				"wait", s.wait.String(),
				"attempt", result.RateLimitWaits)
			if err := s.sleep(ctx, s.wait); err != nil {
				return result, err
			}

		default:
			s.logger.Error("transcription failed", "audio", audioPath, "error", err)
			result.Outcome = OutcomePermanentFailure
			result.Err = err
			return result, nil
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
