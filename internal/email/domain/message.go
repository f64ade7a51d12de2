package domain

import (
	"bytes"
	"encoding/base64"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/charset"
)

// Header returns the value of the named header as storable text. An exact
// name match wins over a case-insensitive one.
func (m *ProviderMessage) Header(name string) string {
	for _, h := range m.Headers {
		if h.Name == name {
			return storable(h.Value)
		}
	}
	for _, h := range m.Headers {
		if strings.EqualFold(h.Name, name) {
			return storable(h.Value)
		}
	}
	return ""
}

// ReceivedAt converts InternalDate, or returns nil when the provider sent none.
func (m *ProviderMessage) ReceivedAt() *time.Time {
	if m.InternalDate <= 0 {
		return nil
	}
	t := time.UnixMilli(m.InternalDate).UTC()
	return &t
}

// PlainText returns the first text/plain part found depth first, or the
// decoded top-level body when there is none. The result is valid UTF-8.
func (p ProviderPart) PlainText() string {
	if part, ok := findPlainText(p.Parts); ok {
		return DecodeText(part.Data, part.Charset)
	}
	return DecodeText(p.Data, p.Charset)
}

func findPlainText(parts []ProviderPart) (ProviderPart, bool) {
	for _, part := range parts {
		if part.MimeType == "text/plain" && part.Data != "" {
			return part, true
		}
		if found, ok := findPlainText(part.Parts); ok {
			return found, true
		}
	}
	return ProviderPart{}, false
}

var bodyEncodings = []*base64.Encoding{
	base64.URLEncoding,
	base64.RawURLEncoding,
	base64.StdEncoding,
	base64.RawStdEncoding,
}

// DecodeBody decodes provider body data (base64url, padded or not, with a
// standard-alphabet fallback) as UTF-8 text. Undecodable data yields "".
func DecodeBody(data string) string {
	return DecodeText(data, "")
}

// DecodeText is DecodeBody for a body in the named charset. Unknown charsets
// are read as UTF-8. Invalid sequences become U+FFFD and NUL bytes are
// dropped, so the result is always storable text.
func DecodeText(data, charsetName string) string {
	if data == "" {
		return ""
	}
	for _, enc := range bodyEncodings {
		if b, err := enc.DecodeString(data); err == nil {
			return toUTF8(b, charsetName)
		}
	}
	return ""
}

func toUTF8(b []byte, charsetName string) string {
	if charsetName != "" {
		if r, err := charset.Reader(charsetName, bytes.NewReader(b)); err == nil {
			if converted, err := io.ReadAll(r); err == nil {
				b = converted
			}
		}
	}
	return storable(string(b))
}

// storable replaces invalid UTF-8 with U+FFFD and drops NUL bytes; text
// columns reject both.
func storable(s string) string {
	return strings.ReplaceAll(strings.ToValidUTF8(s, "\uFFFD"), "\x00", "")
}

// InboxItem is a live provider inbox entry.
type InboxItem struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
	Snippet  string `json:"snippet"`
	Subject  string `json:"subject"`
	From     string `json:"from"`
	Date     string `json:"date"`
}

// DraftItem is a live provider draft.
type DraftItem struct {
	ID        string     `json:"id"`
	Subject   string     `json:"subject"`
	Body      string     `json:"body"`
	CreatedAt *time.Time `json:"createdAt"`
}
