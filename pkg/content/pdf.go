package content

import (
	"bytes"
	"errors"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	errEmptyPDFContent       = errors.New("pdf content is empty")
	ErrUnsupportedTranscript = errors.New("unsupported transcript type")
	ErrEmptyTranscript       = errors.New("extracted transcript text is empty")
)

// TranscriptText turns a downloaded transcript document into plain text.
// The type is taken from the URL extension, then from the Content-Type.
func TranscriptText(body []byte, contentType, rawURL string) (string, error) {
	var (
		text string
		err  error
	)

	switch transcriptKind(contentType, rawURL) {
	case "txt":
		text = string(body)
	case "pdf":
		text, err = ExtractTextFromPDF(body)
	default:
		return "", ErrUnsupportedTranscript
	}
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyTranscript
	}
	return text, nil
}

func transcriptKind(contentType, rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".txt":
		return "txt"
	case ".pdf":
		return "pdf"
	}

	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "text/plain"):
		return "txt"
	case strings.Contains(ct, "application/pdf"):
		return "pdf"
	}
	return ""
}

// ExtractTextFromPDF extracts the plain text of an in-memory PDF document.
func ExtractTextFromPDF(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errEmptyPDFContent
	}

	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	textReader, err := doc.GetPlainText()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, textReader); err != nil {
		return "", err
	}
	return buf.String(), nil
}
