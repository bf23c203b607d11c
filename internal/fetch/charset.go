package fetch

import (
	"bytes"
	"mime"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
)

var metaCharsetRe = regexp.MustCompile(`(?i)<meta[^>]+charset\s*=\s*["']?([a-zA-Z0-9_\-]+)`)

// charsetLabel returns the declared charset from the Content-Type header or,
// failing that, from a <meta charset> tag in the first 2KB of the body.
func charsetLabel(contentType string, body []byte) string {
	if contentType != "" {
		if _, params, err := mime.ParseMediaType(contentType); err == nil {
			if cs := params["charset"]; cs != "" {
				return strings.ToLower(cs)
			}
		}
	}
	head := body
	if len(head) > 2048 {
		head = head[:2048]
	}
	if m := metaCharsetRe.FindSubmatch(head); m != nil {
		return strings.ToLower(string(m[1]))
	}
	return ""
}

// decodeBody converts body to UTF-8. Unknown labels are treated as UTF-8 and
// invalid sequences are replaced.
func decodeBody(contentType string, body []byte) string {
	label := charsetLabel(contentType, body)
	if label != "" && label != "utf-8" && label != "utf8" {
		enc, err := htmlindex.Get(label)
		if err != nil {
			zap.L().Debug("fetch: unknown charset, assuming utf-8", zap.String("charset", label))
		} else if decoded, derr := enc.NewDecoder().Bytes(body); derr == nil {
			body = decoded
		}
	}
	body = bytes.TrimPrefix(body, []byte("\xef\xbb\xbf"))
	if utf8.Valid(body) {
		return string(body)
	}
	return strings.ToValidUTF8(string(body), "�")
}

// isHTMLContent reports whether a Content-Type can be parsed as a web page.
// An empty header is accepted.
func isHTMLContent(contentType string) bool {
	if contentType == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(strings.ToLower(contentType), "html")
	}
	switch mt {
	case "text/html", "application/xhtml+xml", "text/plain":
		return true
	}
	return false
}
