// Package aggregate merges per-company results, mentions and the ingested
// document into the SalesContext consumed by the insight generator.
package aggregate

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sells-group/sales-assistant/internal/model"
)

// Option sets optional SalesContext data during Assemble.
type Option func(*model.SalesContext)

// WithEmbeddings attaches section embeddings keyed by profile URL.
func WithEmbeddings(e map[string]map[string]model.EmbeddingVector) Option {
	return func(c *model.SalesContext) {
		for url, sections := range e {
			cp := make(map[string]model.EmbeddingVector, len(sections))
			for k, v := range sections {
				cp[k] = v
			}
			c.Embeddings[url] = cp
		}
	}
}

// WithRelevance attaches semantic search matches.
func WithRelevance(r []model.RelevanceMatch) Option {
	return func(c *model.SalesContext) {
		c.Relevance = append(c.Relevance, r...)
	}
}

// WithTime overrides the assembly timestamp.
func WithTime(t time.Time) Option {
	return func(c *model.SalesContext) {
		c.AssembledAt = t
	}
}

// Assemble merges its inputs without any network or heuristic work. The
// competitor order is kept as given; index 0 is the primary competitor.
// Optional data that is absent is carried as an explicit empty value, and
// slices are copied so later changes by the caller are not observed.
func Assemble(target model.CompanyProfile, competitors []model.CompanyProfile, mentions []model.MentionRecord, doc model.DocumentText, inputs model.SalesInput, opts ...Option) model.SalesContext {
	c := model.SalesContext{
		Inputs:      inputs,
		Target:      target,
		Competitors: append([]model.CompanyProfile{}, competitors...),
		Mentions:    append([]model.MentionRecord{}, mentions...),
		Document:    doc,
		Embeddings:  map[string]map[string]model.EmbeddingVector{},
		Relevance:   []model.RelevanceMatch{},
		AssembledAt: time.Now().UTC(),
	}
	c.Inputs.CompetitorURLs = append([]string{}, inputs.CompetitorURLs...)
	if c.Document.Status == "" {
		c.Document.Status = model.DocumentAbsent
	}
	if c.Document.Pages == nil {
		c.Document.Pages = []model.PageText{}
	}
	for _, o := range opts {
		o(&c)
	}
	return c
}

const summaryDocChars = 500

// Summary renders the raw aggregated data as plain text. Degraded reports
// carry it in place of model output.
func Summary(c model.SalesContext) string {
	var b strings.Builder

	in := c.Inputs
	fmt.Fprintf(&b, "Product: %s", orNA(in.ProductName))
	if in.ProductCategory != "" {
		fmt.Fprintf(&b, " (%s)", in.ProductCategory)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Value proposition: %s\n", orNA(in.ValueProposition))
	fmt.Fprintf(&b, "Target customer: %s\n\n", orNA(in.TargetCustomer))

	writeProfile(&b, "TARGET", c.Target)
	for i, p := range c.Competitors {
		label := fmt.Sprintf("COMPETITOR %d", i+1)
		if i == 0 {
			label += " (primary)"
		}
		writeProfile(&b, label, p)
	}

	b.WriteString("MENTIONS:")
	if len(c.Mentions) == 0 {
		b.WriteString(" none\n")
	} else {
		b.WriteString("\n")
		counts := model.MentionCounts(c.Mentions)
		names := make([]string, 0, len(counts))
		for n := range counts {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			fmt.Fprintf(&b, "- %s: %d (%s)\n", n, counts[n], strings.Join(mentionSources(c.Mentions, n), ", "))
		}
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "DOCUMENT: %s", c.Document.Status)
	if c.Document.Name != "" {
		fmt.Fprintf(&b, " %s", c.Document.Name)
	}
	if len(c.Document.Pages) > 0 {
		fmt.Fprintf(&b, ", %d pages", len(c.Document.Pages))
		if failed := c.Document.FailedPages(); len(failed) > 0 {
			fmt.Fprintf(&b, ", failed pages %v", failed)
		}
	}
	b.WriteString("\n")
	if c.Document.HasText() {
		b.WriteString(clip(strings.Join(strings.Fields(c.Document.Text), " "), summaryDocChars))
		b.WriteString("\n")
	}
	return b.String()
}

func writeProfile(b *strings.Builder, label string, p model.CompanyProfile) {
	fmt.Fprintf(b, "%s: %s (%s) [fetch: %s]\n", label, p.DisplayName(), p.URL, orNA(string(p.FetchStatus)))
	for _, kind := range model.AllFieldKinds() {
		if kind == model.FieldCompanyName {
			continue
		}
		v := p.Field(kind)
		text := v.Text()
		if v.Found && len(v.Items) > 0 {
			text = strings.Join(v.Items, "; ")
		}
		fmt.Fprintf(b, "  %s: %s\n", kind, text)
	}
	if p.Differentiators != "" {
		fmt.Fprintf(b, "  differentiators: %s\n", p.Differentiators)
	}
	b.WriteString("\n")
}

func mentionSources(mentions []model.MentionRecord, name string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range mentions {
		if m.CompetitorName != name || seen[m.SourceDocument] {
			continue
		}
		seen[m.SourceDocument] = true
		out = append(out, m.SourceDocument)
	}
	return out
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}
