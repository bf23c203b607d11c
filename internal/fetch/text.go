package fetch

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var skipTextTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"svg":      true,
	"template": true,
	"iframe":   true,
	"head":     true,
}

// VisibleText returns the human-readable text under sel. Text nodes are
// separated by a space and whitespace runs are collapsed, so adjacent block
// elements never fuse into one word.
func VisibleText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		walkText(n, &b)
	}
	return CollapseSpace(b.String())
}

func walkText(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		b.WriteByte(' ')
		return
	case html.CommentNode:
		return
	case html.ElementNode:
		if skipTextTags[n.Data] {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkText(c, b)
	}
}

// CollapseSpace trims s and replaces every whitespace run with one space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// PageTitle returns the collapsed <title> text.
func PageTitle(doc *goquery.Document) string {
	return CollapseSpace(doc.Find("title").First().Text())
}

// ParseHTML parses raw HTML into a goquery document.
func ParseHTML(raw string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(raw))
}
