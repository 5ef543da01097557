package content

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Profile describes where a site keeps the episode fields on its pages.
type Profile struct {
	// DateSelector matches the element holding the publication date text.
	DateSelector string
	// ContentSelector matches every content container of the body text.
	ContentSelector string
	// Months is the month-name table of the site's date locale.
	Months MonthTable
	// TranscriptLinks enables looking for a publisher transcript link.
	TranscriptLinks bool
}

// DefaultProfile matches Radio France episode pages, whose dates are written
// in French ("vendredi 31 mai 2024").
func DefaultProfile() Profile {
	return Profile{
		DateSelector:    "p.CoverEpisode-publicationInfo",
		ContentSelector: "div.Expression-container",
		Months:          FrenchMonths,
	}
}

// Page holds the fields extracted from one episode page.
type Page struct {
	Title         string
	Date          time.Time
	Body          string
	JSONLD        JSONLD
	MP3           []string
	TranscriptURL string
}

var (
	ErrEmptyPage       = errors.New("empty HTML content")
	ErrNoDateMarker    = errors.New("publication date marker not found")
	errFailedToParseHT = errors.New("failed to parse HTML")
)

// ParsePage extracts the episode fields from html. baseURL is used to
// resolve relative transcript links. A missing or malformed publication
// date fails the whole page.
func ParsePage(html, baseURL string, profile Profile) (*Page, error) {
	if strings.TrimSpace(html) == "" {
		return nil, ErrEmptyPage
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errors.Join(errFailedToParseHT, err)
	}

	page := &Page{JSONLD: ExtractJSONLD(doc)}

	marker := doc.Find(profile.DateSelector).First()
	if marker.Length() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoDateMarker, profile.DateSelector)
	}
	page.Date, err = ParseDate(marker.Text(), profile.Months)
	if err != nil {
		return nil, err
	}

	var texts []string
	doc.Find(profile.ContentSelector).Each(func(_ int, sel *goquery.Selection) {
		texts = append(texts, sel.Text())
	})
	page.Body = strings.Join(texts, "\n")

	page.MP3 = ExtractMP3URLs(page.JSONLD.Scripts)

	// Title is informational; a page without one is still a valid episode.
	if title, err := ExtractTitle(html); err == nil {
		page.Title = title
	}

	if profile.TranscriptLinks {
		if href, err := findTranscriptURL(doc); err == nil {
			if resolved, err := resolveAgainst(baseURL, href); err == nil {
				page.TranscriptURL = resolved
			}
		}
	}

	return page, nil
}
