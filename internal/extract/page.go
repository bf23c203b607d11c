// Package extract turns fetched pages into structured company facts using
// ordered chains of heuristics over the parsed DOM.
package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sales-assistant/internal/fetch"
	"github.com/sells-group/sales-assistant/internal/model"
)

// Page is a fetched document prepared for extraction.
type Page struct {
	URL   string
	Title string
	Text  string
	Raw   string
	Doc   *goquery.Document

	nodes    []map[string]any
	mainText *string
}

// NewPage parses a successfully fetched document.
func NewPage(pd model.PageDocument) (*Page, error) {
	if !pd.OK() {
		return nil, eris.Errorf("extract: page %s not fetched (%s)", pd.URL, pd.FetchStatus)
	}
	doc, err := fetch.ParseHTML(pd.RawHTML)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: parse %s", pd.URL)
	}
	u := pd.URL
	if pd.FinalURL != "" {
		u = pd.FinalURL
	}
	p := &Page{
		URL:   u,
		Title: pd.Title,
		Text:  pd.ParsedText,
		Raw:   pd.RawHTML,
		Doc:   doc,
	}
	p.nodes = parseJSONLD(doc)
	return p, nil
}

// NewPageFromHTML builds a Page straight from markup.
func NewPageFromHTML(pageURL, raw string) (*Page, error) {
	doc, err := fetch.ParseHTML(raw)
	if err != nil {
		return nil, eris.Wrap(err, "extract: parse html")
	}
	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	return &Page{
		URL:   pageURL,
		Title: fetch.PageTitle(doc),
		Text:  fetch.VisibleText(body),
		Raw:   raw,
		Doc:   doc,
		nodes: parseJSONLD(doc),
	}, nil
}

// Meta returns the content of the first meta tag whose name or property is key.
func (p *Page) Meta(key string) string {
	sel := p.Doc.Find(`meta[name="` + key + `"], meta[property="` + key + `"]`).First()
	v, _ := sel.Attr("content")
	return fetch.CollapseSpace(v)
}

// MainText returns the readability article text of the page, computed once.
func (p *Page) MainText() string {
	if p.mainText != nil {
		return *p.mainText
	}
	text := p.readable()
	p.mainText = &text
	return text
}

func (p *Page) readable() string {
	u, err := url.Parse(p.URL)
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(strings.NewReader(p.Raw), u)
	if err != nil {
		zap.L().Debug("extract: readability failed", zap.String("url", p.URL), zap.Error(err))
		return ""
	}
	doc, err := fetch.ParseHTML(article.Content)
	if err != nil {
		return ""
	}
	return fetch.VisibleText(doc.Selection)
}

// Landmarks returns the elements matching tags whose id or class matches re.
func (p *Page) Landmarks(tags string, re *regexp.Regexp) *goquery.Selection {
	return p.Doc.Find(tags).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return attrMatches(s, re)
	})
}

func attrMatches(s *goquery.Selection, re *regexp.Regexp) bool {
	id, _ := s.Attr("id")
	cls, _ := s.Attr("class")
	return (id != "" && re.MatchString(id)) || (cls != "" && re.MatchString(cls))
}

// text returns the collapsed visible text of a selection.
func text(s *goquery.Selection) string {
	return fetch.VisibleText(s)
}
