// Package jina provides a client for the Jina AI Reader and Embeddings APIs.
package jina

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sales-assistant/internal/resilience"
)

// Return formats accepted by the Reader API.
const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
	FormatText     = "text"
)

// Client defines the Jina AI operations.
type Client interface {
	// Read fetches a URL via Jina AI Reader in the requested return format.
	Read(ctx context.Context, targetURL, format string) (*ReadResponse, error)
	// Embed returns one embedding per input text, in input order.
	Embed(ctx context.Context, req EmbedRequest) (*EmbedResponse, error)
}

// ReadResponse is the parsed Jina Reader response.
type ReadResponse struct {
	Code int      `json:"code"`
	Data ReadData `json:"data"`
}

// ReadData holds the content from Jina. Content holds markdown, HTML or
// text depending on the requested format; HTML responses may use the html key.
type ReadData struct {
	Title   string    `json:"title"`
	URL     string    `json:"url"`
	Content string    `json:"content"`
	HTML    string    `json:"html"`
	Usage   ReadUsage `json:"usage"`
}

// Body returns the HTML when present, otherwise Content.
func (d ReadData) Body() string {
	if d.HTML != "" {
		return d.HTML
	}
	return d.Content
}

// ReadUsage tracks token consumption.
type ReadUsage struct {
	Tokens int `json:"tokens"`
}

// EmbedRequest is a request to the embeddings endpoint.
type EmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
	Task  string   `json:"task,omitempty"`
}

// EmbedResponse is the parsed embeddings response.
type EmbedResponse struct {
	Model string      `json:"model"`
	Data  []Embedding `json:"data"`
	Usage EmbedUsage  `json:"usage"`
}

// Embedding is one vector in an EmbedResponse.
type Embedding struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

// EmbedUsage tracks token consumption for embeddings.
type EmbedUsage struct {
	TotalTokens int `json:"total_tokens"`
}

// Option configures the Jina client.
type Option func(*httpClient)

// WithBaseURL sets a custom Reader base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithEmbedBaseURL sets a custom embeddings base URL (for testing).
func WithEmbedBaseURL(url string) Option {
	return func(c *httpClient) {
		c.embedBaseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithBackoff sets the initial retry backoff.
func WithBackoff(d time.Duration) Option {
	return func(c *httpClient) {
		c.backoff = d
	}
}

type httpClient struct {
	apiKey       string
	baseURL      string
	embedBaseURL string
	backoff      time.Duration
	http         *http.Client
}

// NewClient creates a new Jina AI client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:       apiKey,
		baseURL:      "https://r.jina.ai",
		embedBaseURL: "https://api.jina.ai",
		backoff:      1 * time.Second,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// retryDo sends req, re-sending body on every attempt, and retries
// transport failures and throttled or 5xx responses. Any other status is
// returned to the caller with its body.
func (c *httpClient) retryDo(ctx context.Context, req *http.Request, body []byte) ([]byte, int, error) {
	type reply struct {
		body   []byte
		status int
	}

	retry := resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: c.backoff,
		MaxBackoff:     8 * c.backoff,
		OnRetry:        resilience.RetryLogger("jina", req.URL.Path),
	}
	r, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (reply, error) {
		attempt := req.Clone(ctx)
		if body != nil {
			attempt.Body = io.NopCloser(bytes.NewReader(body))
			attempt.ContentLength = int64(len(body))
		}

		resp, err := c.http.Do(attempt)
		if err != nil {
			return reply{}, resilience.NewTransientError(err, 0)
		}
		defer resp.Body.Close() //nolint:errcheck

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return reply{}, eris.Wrap(err, "jina: read response body")
		}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return reply{}, resilience.NewTransientError(
				eris.Errorf("jina: status %d: %s", resp.StatusCode, string(data)),
				resp.StatusCode,
			).WithRetryAfter(resp.Header)
		}
		return reply{body: data, status: resp.StatusCode}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return r.body, r.status, nil
}

func (c *httpClient) Read(ctx context.Context, targetURL, format string) (*ReadResponse, error) {
	if format == "" {
		format = FormatMarkdown
	}
	reqURL := fmt.Sprintf("%s/%s", c.baseURL, targetURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "jina: create request")
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Return-Format", format)

	body, statusCode, err := c.retryDo(ctx, req, nil)
	if err != nil {
		return nil, eris.Wrap(err, "jina: request failed")
	}

	if statusCode != http.StatusOK {
		return nil, eris.Errorf("jina: unexpected status %d: %s", statusCode, string(body))
	}

	var result ReadResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "jina: unmarshal response")
	}

	return &result, nil
}

func (c *httpClient) Embed(ctx context.Context, er EmbedRequest) (*EmbedResponse, error) {
	if len(er.Input) == 0 {
		return &EmbedResponse{Model: er.Model}, nil
	}

	payload, err := json.Marshal(er)
	if err != nil {
		return nil, eris.Wrap(err, "jina: marshal embed request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.embedBaseURL+"/v1/embeddings", nil)
	if err != nil {
		return nil, eris.Wrap(err, "jina: create embed request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	body, statusCode, err := c.retryDo(ctx, req, payload)
	if err != nil {
		return nil, eris.Wrap(err, "jina: embed request failed")
	}

	if statusCode != http.StatusOK {
		return nil, eris.Errorf("jina: embed unexpected status %d: %s", statusCode, string(body))
	}

	var result EmbedResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "jina: unmarshal embed response")
	}
	if len(result.Data) != len(er.Input) {
		return nil, eris.Errorf("jina: embed returned %d vectors for %d inputs", len(result.Data), len(er.Input))
	}

	return &result, nil
}
