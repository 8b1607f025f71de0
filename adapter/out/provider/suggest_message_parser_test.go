package provider

import (
	"encoding/base64"
	"strings"
	"testing"

	"google.golang.org/api/gmail/v1"
)

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "tags removed",
			in:   "<p>Hello <b>world</b></p>",
			want: "Hello world",
		},
		{
			name: "script dropped",
			in:   "<script>alert('x')</script>Visible",
			want: "Visible",
		},
		{
			name: "style dropped",
			in:   "<style>body{color:red}</style>Text",
			want: "Text",
		},
		{
			name: "entities unescaped",
			in:   "Meet at 3 &amp; bring the Q&amp;A doc",
			want: "Meet at 3 & bring the Q&A doc",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cleanText(stripHTML(tt.in))
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCleanText(t *testing.T) {
	if got := cleanText("a   \t b"); got != "a b" {
		t.Errorf("whitespace not collapsed: %q", got)
	}
	if got := cleanText("a\n\n\n\n\nb"); got != "a\n\nb" {
		t.Errorf("blank lines not collapsed: %q", got)
	}
	long := strings.Repeat("x", bodyMaxChars+100)
	if got := cleanText(long); len(got) != bodyMaxChars {
		t.Errorf("body not capped, length %d", len(got))
	}
}

func TestDecodeBase64URL(t *testing.T) {
	raw := "hello, inbox"
	unpadded := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(raw))
	padded := base64.URLEncoding.EncodeToString([]byte(raw))

	if got := decodeBase64URL(unpadded); got != raw {
		t.Errorf("unpadded decode = %q", got)
	}
	if got := decodeBase64URL(padded); got != raw {
		t.Errorf("padded decode = %q", got)
	}
	if got := decodeBase64URL("!!!not base64!!!"); got != "" {
		t.Errorf("invalid input should decode to empty, got %q", got)
	}
}

func encodePart(s string) string {
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(s))
}

func TestExtractBody(t *testing.T) {
	t.Run("prefers plain text", func(t *testing.T) {
		payload := &gmail.MessagePart{
			MimeType: "multipart/alternative",
			Parts: []*gmail.MessagePart{
				{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: encodePart("<p>html body</p>")}},
				{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: encodePart("plain body")}},
			},
		}
		if got := extractBody(payload); got != "plain body" {
			t.Errorf("got %q, want plain body", got)
		}
	})

	t.Run("falls back to stripped html", func(t *testing.T) {
		payload := &gmail.MessagePart{
			MimeType: "text/html",
			Body:     &gmail.MessagePartBody{Data: encodePart("<p>only <b>html</b></p>")},
		}
		if got := extractBody(payload); got != "only html" {
			t.Errorf("got %q, want stripped html", got)
		}
	})

	t.Run("nested parts", func(t *testing.T) {
		payload := &gmail.MessagePart{
			MimeType: "multipart/mixed",
			Parts: []*gmail.MessagePart{
				{
					MimeType: "multipart/alternative",
					Parts: []*gmail.MessagePart{
						{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: encodePart("nested plain")}},
					},
				},
			},
		}
		if got := extractBody(payload); got != "nested plain" {
			t.Errorf("got %q, want nested plain", got)
		}
	})

	t.Run("nil payload", func(t *testing.T) {
		if got := extractBody(nil); got != "" {
			t.Errorf("got %q, want empty", got)
		}
	})
}

func TestHeaderValue(t *testing.T) {
	payload := &gmail.MessagePart{
		Headers: []*gmail.MessagePartHeader{
			{Name: "Subject", Value: "Hello"},
			{Name: "From", Value: "a@example.com"},
		},
	}
	if got := headerValue(payload, "subject"); got != "Hello" {
		t.Errorf("case-insensitive lookup failed, got %q", got)
	}
	if got := headerValue(payload, "Date"); got != "" {
		t.Errorf("missing header should be empty, got %q", got)
	}
	if got := headerValue(nil, "Subject"); got != "" {
		t.Errorf("nil payload should be empty, got %q", got)
	}
}
