package content

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// MonthTable lists month names from January to December in the locale a
// site publishes its dates in.
type MonthTable [12]string

var (
	FrenchMonths = MonthTable{
		"janvier", "février", "mars", "avril", "mai", "juin",
		"juillet", "août", "septembre", "octobre", "novembre", "décembre",
	}
	EnglishMonths = MonthTable{
		"january", "february", "march", "april", "may", "june",
		"july", "august", "september", "october", "november", "december",
	}
)

var (
	ErrDateShape    = errors.New("publication date does not match <weekday> <day> <month> <year>")
	ErrUnknownMonth = errors.New("unknown month name")
)

// Month returns the 1-based month for name, comparing case-insensitively
// and independently of Unicode normalization form.
func (m MonthTable) Month(name string) (time.Month, bool) {
	key := foldToken(name)
	for i, candidate := range m {
		if foldToken(candidate) == key {
			return time.Month(i + 1), true
		}
	}
	return 0, false
}

// ParseDate parses a human-readable date such as "Friday 31 May 2024" or
// "vendredi 31 mai 2024". Leading words before the weekday are tolerated;
// the day, month and year must be consecutive and preceded by at least one
// word. Unknown month names are an error, never a default.
func ParseDate(text string, months MonthTable) (time.Time, error) {
	tokens := strings.Fields(text)
	for i := range tokens {
		tokens[i] = strings.Trim(tokens[i], ",.;:()")
	}

	for i := 1; i+2 < len(tokens); i++ {
		day, ok := parseDay(tokens[i])
		if !ok {
			continue
		}
		year, ok := parseYear(tokens[i+2])
		if !ok {
			continue
		}

		month, ok := months.Month(tokens[i+1])
		if !ok {
			return time.Time{}, fmt.Errorf("%w: %q in %q", ErrUnknownMonth, tokens[i+1], text)
		}

		t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		if t.Day() != day || t.Month() != month {
			return time.Time{}, fmt.Errorf("%w: day %d does not exist in %s %d", ErrDateShape, day, month, year)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrDateShape, strings.TrimSpace(text))
}

func parseDay(token string) (int, bool) {
	// French writes the first of the month as "1er".
	token = strings.TrimSuffix(token, "er")
	if len(token) == 0 || len(token) > 2 {
		return 0, false
	}
	day, err := strconv.Atoi(token)
	if err != nil || day < 1 || day > 31 {
		return 0, false
	}
	return day, true
}

func parseYear(token string) (int, bool) {
	if len(token) != 4 {
		return 0, false
	}
	year, err := strconv.Atoi(token)
	if err != nil {
		return 0, false
	}
	return year, true
}

func foldToken(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}
