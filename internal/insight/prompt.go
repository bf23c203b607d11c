package insight

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/sales-assistant/internal/model"
)

// Per-section character budgets. Every section is capped at its budget
// before the prompt-wide limit is applied.
const (
	BudgetTarget     = 3000
	BudgetPress      = 1000
	BudgetCompetitor = 1300
	BudgetMentions   = 1500
	BudgetDocument   = 4000
	BudgetDefault    = 800

	// DefaultMaxPromptChars bounds the summed section bodies.
	DefaultMaxPromptChars = 12000

	// MinSectionChars is the floor a section is never cut below.
	MinSectionChars = 200

	// TruncationMarker ends every cut section.
	TruncationMarker = "…[truncated]"
)

// Section is one headed block of the user prompt.
type Section struct {
	Key       string
	Title     string
	Body      string
	Budget    int
	Truncated bool
}

// Prompt is the serialized request for one report.
type Prompt struct {
	System   string
	User     string
	Sections []Section
}

// TruncatedKeys returns the keys of sections that were cut, in prompt order.
func (p Prompt) TruncatedKeys() []string {
	var out []string
	for _, s := range p.Sections {
		if s.Truncated {
			out = append(out, s.Key)
		}
	}
	return out
}

// BodyChars returns the summed rune length of all section bodies.
func (p Prompt) BodyChars() int {
	return totalChars(p.Sections)
}

const systemPrompt = "You are a sales intelligence agent helping sales representatives prepare for meetings with potential clients. " +
	"You extract specific insights from company websites, press releases, job postings, competitor pages and product documents. " +
	"Stick to the facts in the supplied data and say plainly when something is missing."

// BuildPrompt serializes a SalesContext into a bounded prompt. Sections are
// capped at their budgets, then the longest section is cut repeatedly until
// the bodies fit maxChars. A maxChars <= 0 uses DefaultMaxPromptChars.
func BuildPrompt(sc model.SalesContext, maxChars int) Prompt {
	if maxChars <= 0 {
		maxChars = DefaultMaxPromptChars
	}

	sections := buildSections(sc)
	fitSections(sections, maxChars)

	in := sc.Inputs
	product := orNA(in.ProductName)
	category := orNA(in.ProductCategory)

	var b strings.Builder
	b.WriteString("You are helping a sales representative prepare for a meeting with a potential client.\n\n")
	for _, s := range sections {
		fmt.Fprintf(&b, "### %s\n%s\n\n", s.Title, s.Body)
	}
	b.WriteString("### TASK\n")
	b.WriteString("Create a sales intelligence one-pager with these sections:\n\n")
	fmt.Fprintf(&b, "1. COMPANY STRATEGY: the company's activities relevant to %s, public statements by executives, and what job postings reveal about strategy or technology stack.\n", product)
	fmt.Fprintf(&b, "2. LEADERSHIP INFORMATION: leaders likely involved in purchasing %s, with titles and why they matter.\n", category)
	b.WriteString("3. COMPETITIVE LANDSCAPE: how the listed competitors position against the target and against our product, using the competitor mentions (the primary competitor first).\n")
	fmt.Fprintf(&b, "4. PRODUCT/STRATEGY SUMMARY: how the company's strategy and technology align with %s and which pain points it could address.\n", product)
	b.WriteString("5. OPPORTUNITIES: concrete openings and talking points for the sales conversation.\n")
	b.WriteString("6. ARTICLE LINKS: links to articles, press releases or pages referenced above, as a markdown bullet list with a short description each.\n\n")
	b.WriteString(`Respond with a JSON object with these exact keys: "company_strategy", "leadership_information", "competitive_landscape", "product_strategy_summary", "opportunities", "article_links". `)
	b.WriteString("Every value must be a string of markdown text. If information is missing, say what is missing.\n")

	return Prompt{
		System:   systemPrompt,
		User:     b.String(),
		Sections: sections,
	}
}

func buildSections(sc model.SalesContext) []Section {
	t := sc.Target
	sections := []Section{
		{Key: "sales_context", Title: "SALES CONTEXT", Body: salesContextBody(sc), Budget: BudgetDefault},
		{Key: "target", Title: "TARGET COMPANY DATA", Body: targetBody(t), Budget: BudgetTarget},
		{Key: "press", Title: "PRESS/NEWS CONTENT", Body: fieldBody(t, model.FieldPressReleases, model.SectionPress), Budget: BudgetPress},
		{Key: "leadership", Title: "LEADERSHIP", Body: fieldBody(t, model.FieldLeadership, model.SectionLeadership), Budget: BudgetDefault},
		{Key: "jobs", Title: "JOB POSTINGS", Body: fieldBody(t, model.FieldJobPostings, model.SectionJobs), Budget: BudgetDefault},
		{Key: "financial", Title: "FINANCIAL INFORMATION", Body: fieldBody(t, model.FieldFinancialInfo, model.SectionFinancial), Budget: BudgetDefault},
	}
	for i, c := range sc.Competitors {
		title := fmt.Sprintf("COMPETITOR %d", i+1)
		if i == 0 {
			title += " (PRIMARY)"
		}
		sections = append(sections, Section{
			Key:    fmt.Sprintf("competitor_%d", i+1),
			Title:  title,
			Body:   competitorBody(c),
			Budget: BudgetCompetitor,
		})
	}
	sections = append(sections,
		Section{Key: "mentions", Title: "COMPETITOR MENTIONS", Body: mentionsBody(sc.Mentions), Budget: BudgetMentions},
		Section{Key: "relevance", Title: "MOST RELEVANT SECTIONS", Body: relevanceBody(sc), Budget: BudgetDefault},
		Section{Key: "document", Title: "PRODUCT DOCUMENT", Body: documentBody(sc.Document), Budget: BudgetDocument},
	)
	return sections
}

func salesContextBody(sc model.SalesContext) string {
	in := sc.Inputs
	var b strings.Builder
	fmt.Fprintf(&b, "- Product: %s (category: %s)\n", orNA(in.ProductName), orNA(in.ProductCategory))
	fmt.Fprintf(&b, "- Target company: %s (%s)\n", sc.Target.DisplayName(), orNA(sc.Target.URL))
	fmt.Fprintf(&b, "- Target stakeholders: %s\n", orNA(in.TargetCustomer))
	fmt.Fprintf(&b, "- Value proposition: %s", orNA(in.ValueProposition))
	return b.String()
}

func targetBody(p model.CompanyProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", p.Name.Text())
	fmt.Fprintf(&b, "Website: %s [fetch: %s]\n", p.URL, orNA(string(p.FetchStatus)))
	fmt.Fprintf(&b, "Description: %s\n", p.Description.Text())
	fmt.Fprintf(&b, "Features:\n%s\n", listText(p.Features))
	if about := strings.TrimSpace(p.RawSections[model.SectionAbout]); about != "" {
		fmt.Fprintf(&b, "About: %s\n", about)
	}
	if main := strings.TrimSpace(p.RawSections[model.SectionMainContent]); main != "" {
		fmt.Fprintf(&b, "Main content: %s", main)
	}
	return strings.TrimSpace(b.String())
}

// fieldBody renders a list field, falling back to the raw section text when
// the field has no items.
func fieldBody(p model.CompanyProfile, kind model.FieldKind, raw string) string {
	v := p.Field(kind)
	if v.Found {
		return listText(v)
	}
	if text := strings.TrimSpace(p.RawSections[raw]); text != "" {
		return text
	}
	return model.NotFound
}

func competitorBody(p model.CompanyProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", p.DisplayName())
	fmt.Fprintf(&b, "Website: %s [fetch: %s]\n", p.URL, orNA(string(p.FetchStatus)))
	fmt.Fprintf(&b, "Description: %s\n", p.Description.Text())
	fmt.Fprintf(&b, "Features:\n%s\n", listText(p.Features))
	fmt.Fprintf(&b, "Leadership:\n%s\n", listText(p.Leadership))
	fmt.Fprintf(&b, "Press:\n%s", listText(p.PressReleases))
	if p.Differentiators != "" {
		fmt.Fprintf(&b, "\nKnown differentiators: %s", p.Differentiators)
	}
	return b.String()
}

func mentionsBody(mentions []model.MentionRecord) string {
	if len(mentions) == 0 {
		return "No competitor mentions found."
	}
	counts := model.MentionCounts(mentions)
	names := make([]string, 0, len(counts))
	for n := range counts {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})

	var b strings.Builder
	for _, n := range names {
		fmt.Fprintf(&b, "- %s: %d mentions\n", n, counts[n])
	}
	b.WriteString("Context:\n")
	for _, m := range mentions {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", m.SourceDocument, m.CompetitorName, m.ContextSnippet)
	}
	return strings.TrimSpace(b.String())
}

func relevanceBody(sc model.SalesContext) string {
	if len(sc.Relevance) == 0 {
		return "No sections matched the product category."
	}
	var b strings.Builder
	for _, r := range sc.Relevance {
		fmt.Fprintf(&b, "- [%s %.2f] %s %s: %s\n", r.Relevance, r.Score, r.ProfileURL, r.Section, r.Snippet)
	}
	return strings.TrimSpace(b.String())
}

func documentBody(d model.DocumentText) string {
	switch {
	case d.Status == model.DocumentAbsent || d.Status == "":
		return "No product document supplied."
	case !d.HasText():
		return fmt.Sprintf("The product document yielded no text (status: %s).", d.Status)
	}
	text := strings.TrimSpace(d.Text)
	if failed := d.FailedPages(); len(failed) > 0 {
		text = fmt.Sprintf("(pages %v could not be read)\n%s", failed, text)
	}
	return text
}

func listText(v model.FieldValue) string {
	if !v.Found {
		return model.NotFound
	}
	if len(v.Items) == 0 {
		return v.Value
	}
	lines := make([]string, len(v.Items))
	for i, it := range v.Items {
		lines[i] = "- " + it
	}
	return strings.Join(lines, "\n")
}

// fitSections caps each section at its budget, then while the total exceeds
// maxChars cuts the longest section (earliest wins ties) down toward the next
// shorter section, never below MinSectionChars.
func fitSections(sections []Section, maxChars int) {
	for i := range sections {
		if sections[i].Budget > 0 && runeLen(sections[i].Body) > sections[i].Budget {
			sections[i].Body = truncate(sections[i].Body, sections[i].Budget)
			sections[i].Truncated = true
		}
	}

	for {
		total := totalChars(sections)
		if total <= maxChars {
			return
		}
		idx, longest := -1, MinSectionChars
		for i := range sections {
			if n := runeLen(sections[i].Body); n > longest {
				idx, longest = i, n
			}
		}
		if idx < 0 {
			return
		}
		next := 0
		for i := range sections {
			if n := runeLen(sections[i].Body); n < longest && n > next {
				next = n
			}
		}
		target := max(longest-(total-maxChars), next, MinSectionChars)
		sections[idx].Body = truncate(sections[idx].Body, target)
		sections[idx].Truncated = true
	}
}

// truncate cuts s to at most n runes, the last of which are TruncationMarker.
func truncate(s string, n int) string {
	if runeLen(s) <= n {
		return s
	}
	keep := n - runeLen(TruncationMarker)
	if keep < 0 {
		keep = 0
	}
	return string([]rune(s)[:keep]) + TruncationMarker
}

func totalChars(sections []Section) int {
	total := 0
	for _, s := range sections {
		total += runeLen(s.Body)
	}
	return total
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
