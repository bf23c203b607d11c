// Package fetch retrieves web pages for company research. Fetching never
// fails loudly: every outcome, including network and HTTP failures, is
// recorded on the returned model.PageDocument.
package fetch

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sales-assistant/internal/model"
	"github.com/sells-group/sales-assistant/internal/resilience"
)

// DefaultUserAgent is a browser-like User-Agent; many marketing sites reject
// obvious bots.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// PageFetcher fetches one URL into a PageDocument.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) model.PageDocument
}

// Fetcher performs one HTTP GET per URL. When the response is a bot
// challenge or a JavaScript shell, the configured Renderers are tried in
// order as alternative ways to obtain the same page.
type Fetcher struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
	maxBody   int64
	renderers []Renderer
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout bounds each fetch.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodyBytes caps how much of a response body is read.
func WithMaxBodyBytes(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBody = n
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(f *Fetcher) {
		f.client = hc
	}
}

// WithRenderers sets the fallback renderers for blocked or JS-only pages.
func WithRenderers(r ...Renderer) Option {
	return func(f *Fetcher) {
		f.renderers = append(f.renderers, r...)
	}
}

// New creates a Fetcher with sensible defaults.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
				MaxIdleConnsPerHost: 4,
			},
		},
		userAgent: DefaultUserAgent,
		timeout:   15 * time.Second,
		maxBody:   2 << 20,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves rawURL. It never returns an error; the outcome is on
// PageDocument.FetchStatus and RawHTML is empty unless the status is ok.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) model.PageDocument {
	doc := model.PageDocument{
		URL:        rawURL,
		FetchedVia: "http",
		FetchedAt:  time.Now().UTC(),
	}

	target, err := NormalizeURL(rawURL)
	if err != nil {
		return failed(doc, model.FetchStatusInvalidURL, err)
	}
	doc.URL = target

	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		return failed(doc, model.FetchStatusInvalidURL, eris.Wrap(err, "fetch: create request"))
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return failed(doc, classifyError(err), eris.Wrap(err, "fetch: get"))
	}
	defer func() { _ = resp.Body.Close() }()

	doc.StatusCode = resp.StatusCode
	if resp.Request != nil && resp.Request.URL != nil {
		doc.FinalURL = resp.Request.URL.String()
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		return failed(doc, classifyError(err), eris.Wrap(err, "fetch: read body"))
	}

	block := DetectBlock(resp, body)
	doc.BlockType = string(block)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if block != BlockNone {
			if rendered, ok := f.render(ctx, target, doc); ok {
				return rendered
			}
		}
		return failed(doc, model.FetchStatusHTTPError, eris.Errorf("fetch: status %d", resp.StatusCode))
	}

	contentType := resp.Header.Get("Content-Type")
	if !isHTMLContent(contentType) {
		return failed(doc, model.FetchStatusParseError, eris.Errorf("fetch: unsupported content type %q", contentType))
	}

	if block != BlockNone {
		if rendered, ok := f.render(ctx, target, doc); ok {
			return rendered
		}
	}

	return finish(doc, decodeBody(contentType, body))
}

// render tries each renderer until one returns usable HTML.
func (f *Fetcher) render(ctx context.Context, target string, doc model.PageDocument) (model.PageDocument, bool) {
	for _, r := range f.renderers {
		html, err := r.Render(ctx, target)
		if err != nil {
			zap.L().Debug("fetch: renderer failed, trying next",
				zap.String("renderer", r.Name()),
				zap.String("url", target),
				zap.Error(err),
			)
			continue
		}
		if len(html) < minRenderedBytes {
			zap.L().Debug("fetch: renderer returned too little content",
				zap.String("renderer", r.Name()),
				zap.String("url", target),
				zap.Int("bytes", len(html)),
			)
			continue
		}
		doc.FetchedVia = r.Name()
		out := finish(doc, html)
		return out, out.FetchStatus == model.FetchStatusOK
	}
	return doc, false
}

// finish parses raw HTML into the final document.
func finish(doc model.PageDocument, raw string) model.PageDocument {
	parsed, err := ParseHTML(raw)
	if err != nil {
		return failed(doc, model.FetchStatusParseError, eris.Wrap(err, "fetch: parse html"))
	}
	body := parsed.Find("body")
	if body.Length() == 0 {
		body = parsed.Selection
	}

	doc.RawHTML = raw
	doc.Title = PageTitle(parsed)
	doc.ParsedText = VisibleText(body)
	doc.FetchStatus = model.FetchStatusOK
	doc.Error = ""
	return doc
}

func failed(doc model.PageDocument, status model.FetchStatus, err error) model.PageDocument {
	doc.FetchStatus = status
	doc.RawHTML = ""
	doc.ParsedText = ""
	if err != nil {
		doc.Error = err.Error()
	}
	zap.L().Debug("fetch: page failed",
		zap.String("url", doc.URL),
		zap.String("status", string(status)),
		zap.Int("http_status", doc.StatusCode),
		zap.Error(err),
	)
	return doc
}

func classifyError(err error) model.FetchStatus {
	if resilience.IsTimeout(err) {
		return model.FetchStatusTimeout
	}
	return model.FetchStatusNetworkError
}
