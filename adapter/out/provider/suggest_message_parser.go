// Package provider implements mail provider adapters.
package provider

import (
	"encoding/base64"
	"html"
	"regexp"
	"strings"

	"google.golang.org/api/gmail/v1"
)

const bodyMaxChars = 4000

var (
	scriptRe = regexp.MustCompile(`(?is)<script.*?</script>`)
	styleRe  = regexp.MustCompile(`(?is)<style.*?</style>`)
	tagRe    = regexp.MustCompile(`<[^>]+>`)
	spaceRe  = regexp.MustCompile(`[ \t\r\f]+`)
	lineRe   = regexp.MustCompile(`\n{3,}`)
)

// stripHTML reduces markup to readable text
func stripHTML(s string) string {
	s = scriptRe.ReplaceAllString(s, " ")
	s = styleRe.ReplaceAllString(s, " ")
	s = tagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return s
}

// cleanText collapses whitespace and caps the body length
func cleanText(s string) string {
	s = spaceRe.ReplaceAllString(s, " ")
	s = lineRe.ReplaceAllString(s, "\n\n")
	s = strings.TrimSpace(s)
	if len(s) > bodyMaxChars {
		s = s[:bodyMaxChars]
	}
	return s
}

func decodeBase64URL(data string) string {
	decoded, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(data)
	if err != nil {
		// Some senders pad anyway
		decoded, err = base64.URLEncoding.DecodeString(data)
		if err != nil {
			return ""
		}
	}
	return string(decoded)
}

// extractBody walks the MIME tree preferring text/plain over stripped
// text/html
func extractBody(payload *gmail.MessagePart) string {
	if payload == nil {
		return ""
	}

	if text := findPart(payload, "text/plain"); text != "" {
		return cleanText(text)
	}
	if htmlBody := findPart(payload, "text/html"); htmlBody != "" {
		return cleanText(stripHTML(htmlBody))
	}
	return ""
}

func findPart(part *gmail.MessagePart, mimeType string) string {
	if part.MimeType == mimeType && part.Body != nil && part.Body.Data != "" {
		return decodeBase64URL(part.Body.Data)
	}
	for _, child := range part.Parts {
		if found := findPart(child, mimeType); found != "" {
			return found
		}
	}
	return ""
}

func headerValue(payload *gmail.MessagePart, name string) string {
	if payload == nil {
		return ""
	}
	for _, h := range payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}
