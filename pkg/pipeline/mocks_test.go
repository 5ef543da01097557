package pipeline

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"

	"podscribe/pkg/domain"
	"podscribe/pkg/transcribe"
)

type mockSource struct {
	links []string
}

func (m *mockSource) Read(_ context.Context, _ string) []domain.EpisodeRef {
	refs := make([]domain.EpisodeRef, 0, len(m.links))
	for _, l := range m.links {
		refs = append(refs, domain.EpisodeRef{Link: l})
	}
	return refs
}

// mockPages serves episode pages to the resolver and counts requests.
type mockPages struct {
	pages    map[string]string
	requests []string
}

func (m *mockPages) GetBody(_ context.Context, url string) ([]byte, error) {
	m.requests = append(m.requests, url)
	page, ok := m.pages[url]
	if !ok {
		return nil, errors.New("unexpected status code: 404")
	}
	return []byte(page), nil
}

// mockFetcher writes fixed bytes to dest, or fails for URLs in fail.
// onFetch, when set, runs first and its error is returned as-is.
type mockFetcher struct {
	fail    map[string]bool
	calls   []string
	onFetch func(dest string) error
}

func (m *mockFetcher) Fetch(_ context.Context, url, dest string) error {
	m.calls = append(m.calls, url)
	if m.onFetch != nil {
		if err := m.onFetch(dest); err != nil {
			return err
		}
	}
	if m.fail[url] {
		return errors.New("unexpected status code: 404")
	}
	return os.WriteFile(dest, []byte("audio:"+url), 0o644)
}

type mockDocuments struct {
	body        string
	contentType string
	calls       int
}

func (m *mockDocuments) Get(_ context.Context, _ string) (*http.Response, error) {
	m.calls++
	header := make(http.Header)
	header.Set("Content-Type", m.contentType)
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(m.body)),
	}, nil
}

type mockSubmitter struct {
	submitted []string
	outcomes  map[string]transcribe.Outcome
	errs      map[string]error
}

func (m *mockSubmitter) Submit(_ context.Context, audioPath string) (transcribe.Result, error) {
	m.submitted = append(m.submitted, audioPath)
	if err := m.errs[audioPath]; err != nil {
		return transcribe.Result{AudioPath: audioPath}, err
	}
	outcome, ok := m.outcomes[audioPath]
	if !ok {
		outcome = transcribe.OutcomeSuccess
	}
	return transcribe.Result{AudioPath: audioPath, Outcome: outcome}, nil
}

func episodePage(date, mp3 string) string {
	return `<html><head><title>Episode</title>
<script type="application/ld+json">{"@graph":[{"@type":"RadioEpisode","contentUrl":"` + mp3 + `"}]}</script>
<script type="application/ld+json">{"@type":"AudioObject","contentUrl":"` + mp3 + `"}</script>
</head><body>
<p class="CoverEpisode-publicationInfo">` + date + `</p>
<div class="Expression-container">Texte de l'épisode.</div>
<a href="/transcripts/episode.txt">Transcription</a>
</body></html>`
}
