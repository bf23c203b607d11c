package model

// Report section keys, in render order.
const (
	ReportCompanyStrategy      = "company_strategy"
	ReportLeadership           = "leadership_information"
	ReportCompetitiveLandscape = "competitive_landscape"
	ReportProductStrategy      = "product_strategy_summary"
	ReportOpportunities        = "opportunities"
	ReportArticleLinks         = "article_links"
)

// ReportMissing fills report sections the model did not return.
const ReportMissing = "Information not found in company data."

// ReportSectionKeys returns the report section keys in render order.
func ReportSectionKeys() []string {
	return []string{
		ReportCompanyStrategy,
		ReportLeadership,
		ReportCompetitiveLandscape,
		ReportProductStrategy,
		ReportOpportunities,
		ReportArticleLinks,
	}
}

// ReportTitle returns the display heading for a section key.
func ReportTitle(key string) string {
	switch key {
	case ReportCompanyStrategy:
		return "Company Strategy"
	case ReportLeadership:
		return "Leadership Information"
	case ReportCompetitiveLandscape:
		return "Competitive Landscape"
	case ReportProductStrategy:
		return "Product/Strategy Summary"
	case ReportOpportunities:
		return "Opportunities"
	case ReportArticleLinks:
		return "Article Links"
	}
	return key
}

// ReportSection is one titled section of an insight report.
type ReportSection struct {
	Key     string `json:"key"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// TokenUsage tracks LLM token consumption for one call.
type TokenUsage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Cost         float64 `json:"cost"`
}

// Add merges token usage from another instance.
func (t *TokenUsage) Add(other TokenUsage) {
	t.InputTokens += other.InputTokens
	t.OutputTokens += other.OutputTokens
	t.Cost += other.Cost
}

// InsightReport is the generated sales one-pager. A degraded report carries the
// error and a raw summary of the aggregated context instead of model output.
type InsightReport struct {
	Sections       []ReportSection `json:"sections"`
	Links          []string        `json:"links,omitempty"`
	Degraded       bool            `json:"degraded"`
	Error          string          `json:"error,omitempty"`
	ContextSummary string          `json:"context_summary,omitempty"`
	Provider       string          `json:"provider,omitempty"`
	Model          string          `json:"model,omitempty"`
	Usage          TokenUsage      `json:"usage"`
	PromptChars    int             `json:"prompt_chars"`
	Truncated      []string        `json:"truncated,omitempty"` // prompt sections that were cut
	RawResponse    string          `json:"raw_response,omitempty"`
}

// Section returns the content of a section by key.
func (r InsightReport) Section(key string) (string, bool) {
	for _, s := range r.Sections {
		if s.Key == key {
			return s.Content, true
		}
	}
	return "", false
}
