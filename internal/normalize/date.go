// Package normalize holds the pure text, date, URL and identity helpers used
// by every extractor. Nothing here performs I/O.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ISODate is the layout every stored date uses.
const ISODate = "2006-01-02"

var (
	dmyPattern = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})`)
	isoPattern = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)

	// trailingDMY matches a closing date appended to a listing title,
	// e.g. "Consultoría en comercio exterior 15/03/2025".
	trailingDMY = regexp.MustCompile(`\s*[-–:]?\s*(\d{1,2}/\d{1,2}/\d{4})\s*$`)
)

// Layouts tried, in order, once the locale-specific rules fail.
var fallbackLayouts = []string{
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"2 January 2006",
	"2 Jan 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"January 2 2006",
	"Jan 2 2006",
	"Mon Jan 2 2006",
}

// ParseDate converts free-form date text into an ISO date relative to the
// current time. See ParseDateAt.
func ParseDate(text string) (string, bool) {
	return ParseDateAt(text, time.Now())
}

// ParseDateAt converts free-form date text into an ISO date (YYYY-MM-DD).
// Rules are applied in order: relative words ("hoy"/"today",
// "ayer"/"yesterday"), the first DD/MM/YYYY occurrence, the first embedded
// ISO date, then a fixed list of generic layouts. It never fails: unparseable
// input yields ("", false).
func ParseDateAt(text string, now time.Time) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", false
	}
	lower := strings.ToLower(trimmed)

	switch {
	case strings.Contains(lower, "hoy"), strings.Contains(lower, "today"):
		return now.Format(ISODate), true
	case strings.Contains(lower, "ayer"), strings.Contains(lower, "yesterday"):
		return now.AddDate(0, 0, -1).Format(ISODate), true
	}

	if m := dmyPattern.FindStringSubmatch(trimmed); m != nil {
		if iso, ok := dmyToISO(m[1], m[2], m[3]); ok {
			return iso, true
		}
	}

	if m := isoPattern.FindString(trimmed); m != "" {
		if _, err := time.Parse(ISODate, m); err == nil {
			return m, true
		}
	}

	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.UTC().Format(ISODate), true
		}
	}
	return "", false
}

// dmyToISO reorders day, month and year. Impossible calendar dates are rejected.
func dmyToISO(day, month, year string) (string, bool) {
	d, _ := strconv.Atoi(day)
	m, _ := strconv.Atoi(month)
	iso := fmt.Sprintf("%s-%02d-%02d", year, m, d)
	if _, err := time.Parse(ISODate, iso); err != nil {
		return "", false
	}
	return iso, true
}

// SplitClosingDate removes a trailing DD/MM/YYYY from title and returns the
// remaining title together with the date as ISO. When the title carries no
// such date it is returned unchanged with a nil date.
func SplitClosingDate(title string) (string, *string) {
	loc := trailingDMY.FindStringSubmatchIndex(title)
	if loc == nil {
		return title, nil
	}
	raw := title[loc[2]:loc[3]]
	m := dmyPattern.FindStringSubmatch(raw)
	iso, ok := dmyToISO(m[1], m[2], m[3])
	if !ok {
		return title, nil
	}
	rest := strings.TrimSpace(title[:loc[0]])
	if rest == "" {
		rest = title
	}
	return rest, &iso
}

// Today returns now as an ISO date in now's location.
func Today(now time.Time) string {
	return now.Format(ISODate)
}
