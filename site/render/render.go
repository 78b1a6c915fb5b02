// Package render converts stored content block bodies into HTML safe for
// direct embedding in public pages.
package render

import (
	"bytes"
	"fmt"
	"html"

	"labsite/site/schema"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

var htmlSanitizer = bluemonday.UGCPolicy()

// ToHtml renders a content body according to its declared type. Plain text
// is escaped, html is sanitized, and markdown is converted then sanitized.
func ToHtml(contentType, body string) (string, error) {
	switch contentType {
	case schema.ContentText:
		return html.EscapeString(body), nil
	case schema.ContentHtml:
		return htmlSanitizer.Sanitize(body), nil
	case schema.ContentMarkdown:
		var buf bytes.Buffer
		if err := goldmark.Convert([]byte(body), &buf); err != nil {
			return "", fmt.Errorf("error rendering markdown: %w", err)
		}
		return htmlSanitizer.Sanitize(buf.String()), nil
	default:
		return "", fmt.Errorf("cannot render unknown content type '%v'", contentType)
	}
}
