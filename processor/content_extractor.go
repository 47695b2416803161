package processor

import (
	"regexp"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/NextMind-AI/repstats/records"
)

var mentionPattern = regexp.MustCompile(`@([\p{L}\p{N}_]+)`)

// mentionedChannel returns the first @handle in text, lowercased.
// Casers are stateful, so each call builds its own.
func mentionedChannel(text string) (string, bool) {
	m := mentionPattern.FindStringSubmatch(cases.Lower(language.Und).String(text))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// excerpt keeps the first records.ExcerptLimit characters of text.
func excerpt(text string) *string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) > records.ExcerptLimit {
		text = string(runes[:records.ExcerptLimit])
	}
	return &text
}
