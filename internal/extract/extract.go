package extract

import (
	"strings"

	"github.com/sells-group/sales-assistant/internal/fetch"
	"github.com/sells-group/sales-assistant/internal/model"
)

// Strategy attempts to fill one field from a page.
type Strategy struct {
	Name       string
	Confidence float64
	scalar     func(*Page) string
	list       func(*Page) []string
}

func scalar(name string, confidence float64, fn func(*Page) string) Strategy {
	return Strategy{Name: name, Confidence: confidence, scalar: fn}
}

func list(name string, confidence float64, fn func(*Page) []string) Strategy {
	return Strategy{Name: name, Confidence: confidence, list: fn}
}

// Minimum lengths a scalar value must reach to be accepted.
var minChars = map[model.FieldKind]int{
	model.FieldCompanyName:   2,
	model.FieldDescription:   40,
	model.FieldFinancialInfo: 20,
}

// minItemChars is the minimum length of a list item.
const minItemChars = 3

// Maximum items kept per list field.
var maxItems = map[model.FieldKind]int{
	model.FieldFeatures:      10,
	model.FieldLeadership:    15,
	model.FieldPressReleases: 7,
	model.FieldJobPostings:   10,
}

// chains lists, per field, the strategies tried in priority order:
// structured metadata, then semantic landmarks, then positional heuristics.
var chains = map[model.FieldKind][]Strategy{
	model.FieldCompanyName: {
		scalar("json-ld", 0.95, nameFromJSONLD),
		scalar("og:site_name", 0.85, nameFromSiteName),
		scalar("application-name", 0.85, nameFromApplicationName),
		scalar("title", 0.5, nameFromTitle),
		scalar("logo_alt", 0.4, nameFromLogo),
		scalar("domain", 0.3, nameFromDomain),
	},
	model.FieldDescription: {
		scalar("json-ld", 0.95, descriptionFromJSONLD),
		scalar("meta_description", 0.85, descriptionFromMeta),
		scalar("og:description", 0.85, descriptionFromOpenGraph),
		scalar("about_section", 0.7, descriptionFromAbout),
		scalar("first_paragraph", 0.5, descriptionFromParagraph),
		scalar("main_content", 0.4, descriptionFromMainContent),
	},
	model.FieldFeatures: {
		list("feature_sections", 0.7, featuresFromSections),
		list("feature_lists", 0.65, featuresFromHeadingLists),
		list("top_headings", 0.4, featuresFromTopHeadings),
	},
	model.FieldLeadership: {
		list("json-ld", 0.95, leadershipFromJSONLD),
		list("profile_cards", 0.7, leadershipFromCards),
		list("team_sections", 0.6, leadershipFromTeamSections),
		list("text_pattern", 0.4, leadershipFromText),
	},
	model.FieldPressReleases: {
		list("json-ld", 0.95, pressFromJSONLD),
		list("article_blocks", 0.7, pressFromArticles),
		list("news_links", 0.5, pressFromLinks),
	},
	model.FieldFinancialInfo: {
		scalar("report_links", 0.7, financialFromReportLinks),
		scalar("financial_sections", 0.6, financialFromSections),
		scalar("text_pattern", 0.4, financialFromSentences),
	},
	model.FieldJobPostings: {
		list("json-ld", 0.95, jobsFromJSONLD),
		list("job_listings", 0.7, jobsFromListings),
		list("job_links", 0.5, jobsFromLinks),
	},
}

// Strategies returns the strategy chain for a field.
func Strategies(kind model.FieldKind) []Strategy {
	return chains[kind]
}

// ExtractField runs the field's strategies against a page and returns the
// first value meeting the field's minimum content. Unmatched fields are
// returned as model.Missing().
func ExtractField(p *Page, kind model.FieldKind) model.FieldValue {
	if p == nil {
		return model.Missing()
	}
	for _, s := range chains[kind] {
		if v, ok := s.apply(p, kind); ok {
			v.SourceURL = p.URL
			return v
		}
	}
	return model.Missing()
}

func (s Strategy) apply(p *Page, kind model.FieldKind) (model.FieldValue, bool) {
	if s.list != nil {
		items := cleanItems(s.list(p), maxItems[kind])
		if len(items) == 0 {
			return model.FieldValue{}, false
		}
		return model.List(items, s.Name, s.Confidence), true
	}
	v := strings.TrimSpace(s.scalar(p))
	if kind != model.FieldFinancialInfo {
		v = fetch.CollapseSpace(v)
	}
	if len(v) < minChars[kind] || strings.EqualFold(v, model.NotFound) {
		return model.FieldValue{}, false
	}
	return model.Scalar(v, s.Name, s.Confidence), true
}

// cleanItems collapses whitespace, drops short items and exact duplicates
// and keeps at most limit items in their original order.
func cleanItems(items []string, limit int) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		it = fetch.CollapseSpace(it)
		if len(it) < minItemChars || seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
