package textutil

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

var plainTextPolicy = bluemonday.StrictPolicy()

const maxDecodePasses = 4

// StripMarkup removes every HTML element from value and returns plain text.
// Entities are decoded before sanitising, and the pair is repeated until the
// text is stable, so encoded markup cannot survive as a live element.
func StripMarkup(value string) string {
	if value == "" {
		return ""
	}
	if !strings.ContainsAny(value, "<>&") {
		return CollapseWhitespace(value)
	}
	for i := 0; i < maxDecodePasses; i++ {
		next := html.UnescapeString(plainTextPolicy.Sanitize(html.UnescapeString(value)))
		if next == value {
			return CollapseWhitespace(value)
		}
		value = next
	}
	return CollapseWhitespace(strings.Map(func(r rune) rune {
		if r == '<' || r == '>' {
			return -1
		}
		return r
	}, value))
}

// CollapseWhitespace trims value and folds internal runs of whitespace into single spaces.
func CollapseWhitespace(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	pendingSpace := false
	for _, r := range strings.TrimSpace(value) {
		if unicode.IsSpace(r) {
			pendingSpace = true
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
