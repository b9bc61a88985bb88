package indexer

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/hyperjump/lexembed/internal/models"
)

// Preprocess composes accents (NFC), trims text and collapses every whitespace run,
// newlines included, to a single space.
func Preprocess(text string) string {
	text = strings.TrimSpace(norm.NFC.String(text))
	var b strings.Builder
	b.Grow(len(text))
	wasSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !wasSpace {
				b.WriteRune(' ')
				wasSpace = true
			}
			continue
		}
		b.WriteRune(r)
		wasSpace = false
	}
	return b.String()
}

const maxTitleLen = 200

var datePattern = regexp.MustCompile(`\b(\d{1,2})[-/](\d{1,2})[-/](\d{2,4})\b`)

// ExtractMetadata guesses a title (the first line, if short) and a date (the first
// day/month/year date in the text) from raw content.
func ExtractMetadata(content string) models.Metadata {
	var meta models.Metadata
	first, _, _ := strings.Cut(content, "\n")
	if first = strings.TrimSpace(first); first != "" && len([]rune(first)) < maxTitleLen {
		meta.Title = first
	}
	for _, m := range datePattern.FindAllStringSubmatch(content, -1) {
		if d, ok := parseDate(m[1], m[2], m[3]); ok {
			meta.Date = d
			break
		}
	}
	return meta
}

// parseDate reads a day/month/year date. Two-digit years map to 1969-2068.
func parseDate(day, month, year string) (time.Time, bool) {
	layout := "2/1/2006"
	switch len(year) {
	case 2:
		layout = "2/1/06"
	case 4:
	default:
		return time.Time{}, false
	}
	d, err := time.Parse(layout, day+"/"+month+"/"+year)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// mergeMetadata fills empty fields of base from extra.
func mergeMetadata(base, extra models.Metadata) models.Metadata {
	if base.Title == "" {
		base.Title = extra.Title
	}
	if base.Author == "" {
		base.Author = extra.Author
	}
	if base.Source == "" {
		base.Source = extra.Source
	}
	if base.Pages == 0 {
		base.Pages = extra.Pages
	}
	if base.Date.IsZero() {
		base.Date = extra.Date
	}
	return base
}
