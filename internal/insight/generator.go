// Package insight turns an assembled SalesContext into a sales insight report
// through one generative model call.
package insight

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sales-assistant/internal/aggregate"
	"github.com/sells-group/sales-assistant/internal/config"
	"github.com/sells-group/sales-assistant/internal/model"
	"github.com/sells-group/sales-assistant/internal/resilience"
)

// Defaults for generation.
const (
	DefaultTimeout     = 60 * time.Second
	DefaultMaxTokens   = 2000
	DefaultTemperature = 0.3
	DefaultMaxAttempts = 2
)

// Generator builds prompts, calls the model and parses its report.
type Generator struct {
	llm            LLM
	timeout        time.Duration
	maxTokens      int
	temperature    float64
	maxPromptChars int
	retry          resilience.RetryConfig
	breaker        *resilience.CircuitBreaker
}

// Option configures a Generator.
type Option func(*Generator)

// WithTimeout bounds each Generate call, retries included.
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithMaxTokens sets the output token limit.
func WithMaxTokens(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxTokens = n
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(g *Generator) { g.temperature = t }
}

// WithMaxPromptChars sets the prompt body limit.
func WithMaxPromptChars(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxPromptChars = n
		}
	}
}

// WithRetry replaces the retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(g *Generator) { g.retry = cfg }
}

// WithBreaker replaces the circuit breaker.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(g *Generator) {
		if cb != nil {
			g.breaker = cb
		}
	}
}

// New creates a Generator around a model client.
func New(llm LLM, opts ...Option) *Generator {
	retry := resilience.DefaultRetryConfig().WithAttempts(DefaultMaxAttempts)
	retry.OnRetry = resilience.RetryLogger(llm.Provider(), "insight")
	g := &Generator{
		llm:            llm,
		timeout:        DefaultTimeout,
		maxTokens:      DefaultMaxTokens,
		temperature:    DefaultTemperature,
		maxPromptChars: DefaultMaxPromptChars,
		retry:          retry,
		breaker:        resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig(llm.Provider())),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// NewFromConfig builds the configured model client and wraps it.
func NewFromConfig(cfg *config.Config) (*Generator, error) {
	llm, err := NewLLM(cfg)
	if err != nil {
		return nil, err
	}
	g := New(llm,
		WithTimeout(time.Duration(cfg.Insight.TimeoutSecs)*time.Second),
		WithMaxTokens(cfg.Insight.MaxTokens),
		WithTemperature(cfg.Insight.Temperature),
		WithMaxPromptChars(cfg.Insight.MaxPromptChars),
	)
	g.retry = g.retry.WithAttempts(cfg.Insight.MaxAttempts)
	return g, nil
}

// Generate produces the report for sc. It never returns an error: a model
// failure, timeout, open circuit or unusable response yields a degraded
// report that carries the raw aggregated data instead.
func (g *Generator) Generate(ctx context.Context, sc model.SalesContext) (report model.InsightReport) {
	defer func() {
		if r := recover(); r != nil {
			report = g.degraded(sc, eris.Errorf("insight: panic during generation: %v", r), report)
		}
	}()

	prompt := BuildPrompt(sc, g.maxPromptChars)
	report = model.InsightReport{
		Provider:    g.llm.Provider(),
		Model:       g.llm.Model(),
		PromptChars: runeLen(prompt.System) + runeLen(prompt.User),
		Truncated:   prompt.TruncatedKeys(),
	}
	if len(report.Truncated) > 0 {
		zap.L().Debug("insight: prompt truncated",
			zap.Strings("sections", report.Truncated),
			zap.Int("body_chars", prompt.BodyChars()),
		)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req := Request{
		System:      prompt.System,
		User:        prompt.User,
		MaxTokens:   int64(g.maxTokens),
		Temperature: g.temperature,
	}
	comp, err := resilience.ExecuteVal(callCtx, g.breaker, func(ctx context.Context) (Completion, error) {
		return resilience.DoVal(ctx, g.retry, func(ctx context.Context) (Completion, error) {
			return g.llm.Complete(ctx, req)
		})
	})
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = eris.Wrapf(err, "insight: generation timed out after %s", g.timeout)
		}
		return g.degraded(sc, err, report)
	}

	report.Usage = comp.Usage
	report.RawResponse = comp.Text
	if comp.Model != "" {
		report.Model = comp.Model
	}

	sections, err := ParseResponse(comp.Text)
	if err != nil {
		return g.degraded(sc, err, report)
	}

	for _, key := range model.ReportSectionKeys() {
		report.Sections = append(report.Sections, model.ReportSection{
			Key:     key,
			Title:   model.ReportTitle(key),
			Content: sections[key],
		})
	}
	report.Links = HarvestLinks(sectionTexts(report.Sections)...)
	if sections[model.ReportArticleLinks] == model.ReportMissing {
		if links := contextLinks(sc); len(links) > 0 {
			setSection(&report, model.ReportArticleLinks, bulletList(links))
			report.Links = HarvestLinks(sectionTexts(report.Sections)...)
		}
	}
	return report
}

func (g *Generator) degraded(sc model.SalesContext, err error, base model.InsightReport) model.InsightReport {
	zap.L().Warn("insight: generation failed, returning degraded report",
		zap.String("provider", base.Provider),
		zap.Error(err),
	)
	base.Sections = nil
	base.Links = nil
	base.Degraded = true
	base.Error = err.Error()
	base.ContextSummary = aggregate.Summary(sc)
	return base
}

// contextLinks collects source URLs the pipeline fetched for the target and
// any links inside its press items.
func contextLinks(sc model.SalesContext) []string {
	texts := append([]string{}, sc.Target.SourceURLs...)
	if sc.Target.PressReleases.Found {
		texts = append(texts, sc.Target.PressReleases.Value)
	}
	return HarvestLinks(texts...)
}

func sectionTexts(sections []model.ReportSection) []string {
	out := make([]string, len(sections))
	for i, s := range sections {
		out[i] = s.Content
	}
	return out
}

func setSection(r *model.InsightReport, key, content string) {
	for i := range r.Sections {
		if r.Sections[i].Key == key {
			r.Sections[i].Content = content
		}
	}
}

func bulletList(items []string) string {
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = "- " + it
	}
	return strings.Join(lines, "\n")
}

// Markdown renders a report as headed markdown.
func Markdown(r model.InsightReport) string {
	var b strings.Builder
	if r.Degraded {
		b.WriteString("## Insight generation failed\n\n")
		fmt.Fprintf(&b, "%s\n\n", r.Error)
		b.WriteString("## Raw aggregated data\n\n```\n")
		b.WriteString(r.ContextSummary)
		if !strings.HasSuffix(r.ContextSummary, "\n") {
			b.WriteString("\n")
		}
		b.WriteString("```\n")
		return b.String()
	}
	for _, s := range r.Sections {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", s.Title, s.Content)
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}
