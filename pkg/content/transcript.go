package content

import (
	"errors"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var errNoTranscriptLink = errors.New("no transcript link found in HTML")

// findTranscriptURL locates a transcript document linked from an episode page.
//
// Anchors are ranked by how much they look like a transcript link:
//  1. text mentions "transcript"/"transcription" and href is a .pdf/.txt document
//  2. href is a .pdf/.txt document
//  3. text mentions "transcript"/"transcription"
//
// The first anchor of the best rank wins.
func findTranscriptURL(doc *goquery.Document) (string, error) {
	var high, med, low []string

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if href == "" {
			return
		}

		docLike := isTranscriptDocumentHref(href)
		textLike := mentionsTranscript(sel.Text())

		switch {
		case docLike && textLike:
			high = append(high, href)
		case docLike:
			med = append(med, href)
		case textLike:
			low = append(low, href)
		}
	})

	switch {
	case len(high) > 0:
		return high[0], nil
	case len(med) > 0:
		return med[0], nil
	case len(low) > 0:
		return low[0], nil
	default:
		return "", errNoTranscriptLink
	}
}

func mentionsTranscript(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "transcript") || strings.Contains(lower, "transcription")
}

func isTranscriptDocumentHref(href string) bool {
	u, err := url.Parse(href)
	if err != nil {
		return hasTranscriptExt(href)
	}
	return hasTranscriptExt(u.Path)
}

func hasTranscriptExt(p string) bool {
	switch strings.ToLower(path.Ext(p)) {
	case ".pdf", ".txt":
		return true
	default:
		return false
	}
}

// resolveAgainst resolves ref relative to baseURL.
func resolveAgainst(baseURL, ref string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", err
	}
	return base.ResolveReference(u).String(), nil
}
