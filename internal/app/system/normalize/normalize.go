// Package normalize cleans user-supplied strings before they are validated
// and stored. Factories call these explicitly; nothing normalizes on save.
package normalize

import (
	"html"
	"strings"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/microcosm-cc/bluemonday"
)

// strict strips every tag. Free text is stored and rendered as plain text.
var strict = bluemonday.StrictPolicy()

// Email trims and lowercases an email address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims surrounding whitespace and preserves case.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// Role trims and lowercases a role value.
func Role(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Status trims and lowercases a status value.
func Status(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Text removes markup from free text (topics, messages, reasons) and trims
// the result. Entities escaped by the sanitizer are decoded again so the
// stored value is the plain text the user typed.
func Text(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

// Fold returns the case-insensitive key stored alongside display strings.
func Fold(s string) string {
	return text.Fold(strings.TrimSpace(s))
}

// ContentType lowercases a MIME type and drops any parameters.
func ContentType(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	return s
}
