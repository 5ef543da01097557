package transcribe

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"podscribe/pkg/logging"
)

type mockClient struct {
	calls     atomic.Int32
	responses []mockResponse
}

type mockResponse struct {
	text string
	err  error
}

func (m *mockClient) Transcribe(_ context.Context, _ string) (string, error) {
	n := int(m.calls.Add(1)) - 1
	if n >= len(m.responses) {
		n = len(m.responses) - 1
	}
	r := m.responses[n]
	return r.text, r.err
}

type recordingSleep struct {
	waits []time.Duration
}

func (r *recordingSleep) Sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func TestSubmitSkipsExistingTranscript(t *testing.T) {
	audio := writeAudio(t, t.TempDir(), "content.mp3")
	if err := os.WriteFile(audio+".txt", []byte("done"), 0o644); err != nil {
		t.Fatal(err)
	}

	client := &mockClient{}
	s := NewSubmitter(client, Options{Logger: logging.Discard()})

	result, err := s.Submit(context.Background(), audio)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if result.Outcome != OutcomeAlreadyDone {
		t.Errorf("Outcome = %v, want already_done", result.Outcome)
	}
	if client.calls.Load() != 0 {
		t.Errorf("client called %d times, want 0", client.calls.Load())
	}
}

func TestSubmitRetriesAfterRateLimit(t *testing.T) {
	audio := writeAudio(t, t.TempDir(), "content.mp3")
	client := &mockClient{responses: []mockResponse{
		{err: &RateLimitError{Body: "too many"}},
		{text: "bonjour"},
	}}
	sleeper := &recordingSleep{}
	s := NewSubmitter(client, Options{Sleep: sleeper.Sleep, Logger: logging.Discard()})

	result, err := s.Submit(context.Background(), audio)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if result.Outcome != OutcomeSuccess {
		t.Errorf("Outcome = %v, want success", result.Outcome)
	}
	if result.RateLimitWaits != 1 {
		t.Errorf("RateLimitWaits = %d, want 1", result.RateLimitWaits)
	}
	if len(sleeper.waits) != 1 || sleeper.waits[0] != 3600*time.Second {
		t.Errorf("waits = %v, want [1h0m0s]", sleeper.waits)
	}
	if client.calls.Load() != 2 {
		t.Errorf("client called %d times, want 2", client.calls.Load())
	}

	got, err := os.ReadFile(audio + ".txt")
	if err != nil || string(got) != "bonjour" {
		t.Errorf("transcript = %q, %v", got, err)
	}
}

func TestSubmitRateLimitRetryCap(t *testing.T) {
	audio := writeAudio(t, t.TempDir(), "content.mp3")
	client := &mockClient{responses: []mockResponse{{err: &RateLimitError{}}}}
	sleeper := &recordingSleep{}
	s := NewSubmitter(client, Options{
		RateLimitWait:       time.Minute,
		MaxRateLimitRetries: 2,
		Sleep:               sleeper.Sleep,
		Logger:              logging.Discard(),
	})

	result, err := s.Submit(context.Background(), audio)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if result.Outcome != OutcomePermanentFailure || !errors.Is(result.Err, ErrRateLimitRetriesExhausted) {
		t.Errorf("result = %+v", result)
	}
	if client.calls.Load() != 3 || len(sleeper.waits) != 2 || sleeper.waits[0] != time.Minute {
		t.Errorf("calls = %d, waits = %v", client.calls.Load(), sleeper.waits)
	}
}

func TestSubmitPermanentFailure(t *testing.T) {
	audio := writeAudio(t, t.TempDir(), "content.mp3")
	client := &mockClient{responses: []mockResponse{{err: &StatusError{StatusCode: 500, Body: "oops"}}}}
	s := NewSubmitter(client, Options{Logger: logging.Discard()})

	result, err := s.Submit(context.Background(), audio)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if result.Outcome != OutcomePermanentFailure {
		t.Errorf("Outcome = %v, want permanent_failure", result.Outcome)
	}
	if _, err := os.Stat(audio + ".txt"); !os.IsNotExist(err) {
		t.Error("transcript written after failure")
	}
	if client.calls.Load() != 1 {
		t.Errorf("client called %d times, want 1", client.calls.Load())
	}
}

func TestSubmitMissingPredictionPropagates(t *testing.T) {
	audio := writeAudio(t, t.TempDir(), "content.mp3")
	client := &mockClient{responses: []mockResponse{{err: ErrMissingPrediction}}}
	s := NewSubmitter(client, Options{Logger: logging.Discard()})

	if _, err := s.Submit(context.Background(), audio); !errors.Is(err, ErrMissingPrediction) {
		t.Errorf("Submit() error = %v, want ErrMissingPrediction", err)
	}
}

func TestSubmitCanceledDuringWait(t *testing.T) {
	audio := writeAudio(t, t.TempDir(), "content.mp3")
	client := &mockClient{responses: []mockResponse{{err: &RateLimitError{}}}}
	s := NewSubmitter(client, Options{RateLimitWait: time.Hour, Logger: logging.Discard()})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	if _, err := s.Submit(ctx, audio); !errors.Is(err, context.Canceled) {
		t.Errorf("Submit() error = %v, want context.Canceled", err)
	}
}

func TestOutcomeString(t *testing.T) {
	if OutcomeAlreadyDone.String() != "already_done" {
		t.Errorf("String() = %q", OutcomeAlreadyDone.String())
	}
}
