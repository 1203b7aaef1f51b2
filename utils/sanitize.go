package utils

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	textPolicy = bluemonday.StrictPolicy()
	htmlPolicy = bluemonday.UGCPolicy()
)

// SanitizeText strips all markup from a plain text field such as a title or
// a tag. The result is unescaped: "Rice &amp; Wheat" comes back as "Rice & Wheat".
func SanitizeText(input string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(input)))
}

// SanitizeHTML keeps user generated content markup while removing anything executable.
func SanitizeHTML(input string) string {
	return strings.TrimSpace(htmlPolicy.Sanitize(input))
}
