// Package transcribe submits episode audio to the Gladia transcription API.
package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"podscribe/pkg/httpclient"
)

const (
	DefaultEndpoint = "https://api.gladia.io/audio/text/audio-transcription/"

	gladiaAPITimeout    = 10 * time.Minute
	gladiaHeaderAPIKey  = "x-gladia-key"
	maxErrorBodyInError = 512
)

// ErrMissingPrediction is returned when a 200 response carries no
// "prediction" field.
var ErrMissingPrediction = errors.New("transcription response has no prediction")

// RateLimitError is returned on HTTP 429.
type RateLimitError struct {
	Body string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("gladia: rate limited: %s", e.Body)
}

// StatusError is returned for any other non-200 response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gladia: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Client transcribes one audio file.
type Client interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// GladiaClient calls the Gladia audio transcription endpoint.
type GladiaClient struct {
	endpoint string
	apiKey   string
	http     *httpclient.HTTPClient
}

// GladiaOption customizes a client.
type GladiaOption func(*GladiaClient)

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(client *httpclient.HTTPClient) GladiaOption {
	return func(gc *GladiaClient) {
		if client != nil {
			gc.http = client
		}
	}
}

// WithEndpoint overrides the transcription endpoint.
func WithEndpoint(endpoint string) GladiaOption {
	return func(gc *GladiaClient) {
		if strings.TrimSpace(endpoint) != "" {
			gc.endpoint = strings.TrimSpace(endpoint)
		}
	}
}

// NewGladiaClient constructs a client authenticated with apiKey.
func NewGladiaClient(apiKey string, opts ...GladiaOption) *GladiaClient {
	client := &GladiaClient{
		endpoint: DefaultEndpoint,
		apiKey:   strings.TrimSpace(apiKey),
		http:     httpclient.NewClient(httpclient.DefaultClient, gladiaAPITimeout),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Transcribe uploads audioPath with speaker diarization for two speakers
// and returns the plain-text prediction.
func (g *GladiaClient) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if g == nil {
		return "", fmt.Errorf("gladia client: nil client")
	}
	if g.apiKey == "" {
		return "", fmt.Errorf("gladia client: missing api key")
	}

	file, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("gladia client: open audio: %w", err)
	}
	defer file.Close()

	body, contentType := streamForm(file, filepath.Base(audioPath))
	defer body.Close()

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, body)
	if err != nil {
		return "", fmt.Errorf("gladia client: build request: %w", err)
	}
	request.Header.Set("Content-Type", contentType)
	request.Header.Set("Accept", "application/json")
	request.Header.Set(gladiaHeaderAPIKey, g.apiKey)

	resp, err := g.http.Do(request)
	if err != nil {
		return "", fmt.Errorf("gladia client: http request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("gladia client: read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", &RateLimitError{Body: truncate(payload)}
	case resp.StatusCode != http.StatusOK:
		return "", &StatusError{StatusCode: resp.StatusCode, Body: truncate(payload)}
	}

	return decodePrediction(payload)
}

// streamForm writes the multipart form through a pipe so the audio file is
// never held in memory.
func streamForm(audio io.Reader, filename string) (io.ReadCloser, string) {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeForm(writer, audio, filename))
	}()

	return pr, writer.FormDataContentType()
}

func writeForm(writer *multipart.Writer, audio io.Reader, filename string) error {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename="%s"`, quoteEscaper.Replace(filename)))
	header.Set("Content-Type", audioMIMEType(filename))

	part, err := writer.CreatePart(header)
	if err != nil {
		return fmt.Errorf("create audio field: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return fmt.Errorf("copy audio: %w", err)
	}

	fields := [][2]string{
		{"toggle_diarization", "true"},
		{"diarization_max_speakers", "2"},
		{"output_format", "txt"},
	}
	for _, f := range fields {
		if err := writer.WriteField(f[0], f[1]); err != nil {
			return fmt.Errorf("write %s field: %w", f[0], err)
		}
	}
	return writer.Close()
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// audioMIMEType derives audio/<ext> from the file extension.
func audioMIMEType(filename string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "" {
		return "application/octet-stream"
	}
	return "audio/" + ext
}

func decodePrediction(payload []byte) (string, error) {
	var parsed map[string]json.RawMessage
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return "", fmt.Errorf("gladia client: decode response: %w", err)
	}
	raw, ok := parsed["prediction"]
	if !ok || string(raw) == "null" {
		return "", ErrMissingPrediction
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, nil
	}
	// Structured predictions are stored as their JSON text.
	return string(raw), nil
}

func truncate(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBodyInError {
		return s[:maxErrorBodyInError] + "..."
	}
	return s
}
