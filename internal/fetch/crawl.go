package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/sales-assistant/internal/model"
)

// CrawlOptions configures secondary-page discovery.
type CrawlOptions struct {
	MaxPerPurpose int
	RatePerSec    float64
	RespectRobots bool
	UserAgent     string
}

// Crawler discovers and fetches the secondary pages of a site: leadership,
// careers, investor, press and competitor-mention pages.
type Crawler struct {
	fetcher PageFetcher
	opts    CrawlOptions
	http    *http.Client

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	robotsMu sync.Mutex
	robots   map[string]*robotstxt.Group
}

// NewCrawler creates a Crawler that fetches pages through f.
func NewCrawler(f PageFetcher, opts CrawlOptions) *Crawler {
	if opts.MaxPerPurpose <= 0 {
		opts.MaxPerPurpose = 3
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 2
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	return &Crawler{
		fetcher:  f,
		opts:     opts,
		http:     &http.Client{Timeout: 5 * time.Second},
		limiters: make(map[string]*rate.Limiter),
		robots:   make(map[string]*robotstxt.Group),
	}
}

// Crawl fetches the homepage's secondary pages. A failed homepage yields a
// Site with no secondary pages; failed secondary pages are dropped.
func (c *Crawler) Crawl(ctx context.Context, home model.PageDocument) model.Site {
	site := model.Site{Home: home, Pages: map[model.PagePurpose][]model.PageDocument{}}
	if !home.OK() {
		return site
	}

	candidates := c.Candidates(home)

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	for _, purpose := range model.SecondaryPurposes() {
		urls := candidates[purpose]
		if len(urls) == 0 {
			continue
		}
		g.Go(func() error {
			pages := c.fetchPurpose(gCtx, purpose, urls)
			if len(pages) > 0 {
				mu.Lock()
				site.Pages[purpose] = pages
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	zap.L().Debug("fetch: crawl complete",
		zap.String("url", home.URL),
		zap.Int("purposes", len(site.Pages)),
	)
	return site
}

// Candidates returns, per purpose, the same-site URLs worth fetching: links
// found on the homepage first, then well-known paths.
func (c *Crawler) Candidates(home model.PageDocument) map[model.PagePurpose][]string {
	out := make(map[model.PagePurpose][]string)
	base, err := url.Parse(pageBase(home))
	if err != nil {
		return out
	}

	seen := map[string]bool{base.String(): true}
	add := func(p model.PagePurpose, link string) {
		if seen[link] {
			return
		}
		seen[link] = true
		out[p] = append(out[p], link)
	}

	if doc, perr := ParseHTML(home.RawHTML); perr == nil {
		doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			link, ok := resolve(base, href)
			if !ok || !SameSite(link, base.String()) {
				return
			}
			if p, ok := ClassifyLink(link, CollapseSpace(a.Text())); ok {
				add(p, link)
			}
		})
	}

	for _, p := range model.SecondaryPurposes() {
		for _, path := range commonPathsFor(p) {
			link, ok := resolve(base, path)
			if ok {
				add(p, link)
			}
		}
	}
	return out
}

// fetchPurpose fetches candidates in order until MaxPerPurpose pages
// succeed, attempting at most twice that many.
func (c *Crawler) fetchPurpose(ctx context.Context, purpose model.PagePurpose, urls []string) []model.PageDocument {
	var pages []model.PageDocument
	attempts := 0
	for _, u := range urls {
		if len(pages) >= c.opts.MaxPerPurpose || attempts >= 2*c.opts.MaxPerPurpose {
			break
		}
		if ctx.Err() != nil {
			break
		}
		if c.opts.RespectRobots && !c.allowed(ctx, u) {
			zap.L().Debug("fetch: disallowed by robots.txt", zap.String("url", u))
			continue
		}
		if err := c.wait(ctx, u); err != nil {
			break
		}
		attempts++
		doc := c.fetcher.Fetch(ctx, u)
		if !doc.OK() {
			continue
		}
		pages = append(pages, doc)
	}
	zap.L().Debug("fetch: purpose pages",
		zap.String("purpose", string(purpose)),
		zap.Int("candidates", len(urls)),
		zap.Int("fetched", len(pages)),
	)
	return pages
}

// wait blocks on the per-host rate limiter.
func (c *Crawler) wait(ctx context.Context, rawURL string) error {
	host := Domain(rawURL)
	c.mu.Lock()
	lim, ok := c.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(c.opts.RatePerSec), 1)
		c.limiters[host] = lim
	}
	c.mu.Unlock()
	return lim.Wait(ctx)
}

// allowed checks robots.txt for rawURL. Missing or unreadable robots files allow everything.
func (c *Crawler) allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	key := u.Scheme + "://" + u.Host

	c.robotsMu.Lock()
	group, cached := c.robots[key]
	if !cached {
		group = c.loadRobots(ctx, key)
		c.robots[key] = group
	}
	c.robotsMu.Unlock()

	if group == nil {
		return true
	}
	return group.Test(u.Path)
}

func (c *Crawler) loadRobots(ctx context.Context, origin string) *robotstxt.Group {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return nil
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		zap.L().Debug("fetch: unparseable robots.txt", zap.String("origin", origin), zap.Error(err))
		return nil
	}
	return data.FindGroup(c.opts.UserAgent)
}

func pageBase(doc model.PageDocument) string {
	if doc.FinalURL != "" {
		return doc.FinalURL
	}
	return doc.URL
}
