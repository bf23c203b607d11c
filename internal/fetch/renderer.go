package fetch

import (
	"context"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"

	"github.com/sells-group/sales-assistant/internal/resilience"
	"github.com/sells-group/sales-assistant/pkg/jina"
)

// minRenderedBytes is the smallest rendered HTML accepted from a renderer.
const minRenderedBytes = 512

// Renderer produces the HTML of a page by some means other than a plain GET.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
	Name() string
}

// BrowserRenderer renders pages in headless Chrome. Requires Chrome or
// Chromium on the host.
type BrowserRenderer struct {
	Timeout time.Duration
	Settle  time.Duration
}

// NewBrowserRenderer creates a BrowserRenderer with the given page timeout.
func NewBrowserRenderer(timeout time.Duration) *BrowserRenderer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BrowserRenderer{Timeout: timeout, Settle: 2 * time.Second}
}

func (b *BrowserRenderer) Name() string { return "chromedp" }

// Render navigates to url, waits for the body and scripts to settle and
// returns the outer HTML of the document.
func (b *BrowserRenderer) Render(ctx context.Context, url string) (string, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(DefaultUserAgent),
		)...,
	)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	browserCtx, cancel := context.WithTimeout(browserCtx, b.Timeout)
	defer cancel()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Sleep(b.Settle),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", eris.Wrapf(err, "fetch: browser render %s", url)
	}
	return html, nil
}

// JinaRenderer fetches rendered HTML through the Jina Reader API. A circuit
// breaker skips Jina after repeated failures.
type JinaRenderer struct {
	client  jina.Client
	breaker *resilience.CircuitBreaker
}

// NewJinaRenderer creates a JinaRenderer. Three consecutive failures open
// the circuit for a minute.
func NewJinaRenderer(client jina.Client) *JinaRenderer {
	return &JinaRenderer{
		client: client,
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:             "jina_reader",
			FailureThreshold: 3,
			ResetTimeout:     time.Minute,
		}),
	}
}

func (j *JinaRenderer) Name() string { return "jina" }

// Render returns the page HTML as seen by Jina Reader.
func (j *JinaRenderer) Render(ctx context.Context, url string) (string, error) {
	return resilience.ExecuteVal(ctx, j.breaker, func(ctx context.Context) (string, error) {
		resp, err := j.client.Read(ctx, url, jina.FormatHTML)
		if err != nil {
			return "", err
		}
		html := resp.Data.Body()
		if isChallengePage(html) {
			return "", eris.Errorf("fetch: jina returned a challenge page for %s", url)
		}
		return html, nil
	})
}

// isChallengePage reports whether content looks like a bot wall rather than a page.
func isChallengePage(content string) bool {
	content = strings.TrimSpace(content)
	if len(content) < 100 {
		return true
	}
	if len(content) >= 3000 {
		return false
	}
	lower := strings.ToLower(content)
	for _, sig := range []string{
		"checking your browser",
		"enable javascript",
		"please enable cookies",
		"access denied",
		"just a moment",
		"attention required",
	} {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}
