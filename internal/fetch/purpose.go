package fetch

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/sells-group/sales-assistant/internal/model"
)

// purposeRule matches links whose path or anchor text suggests a purpose,
// plus well-known paths probed when the homepage links to nothing suitable.
// Rules run from most to least specific.
type purposeRule struct {
	purpose     model.PagePurpose
	pathPattern *regexp.Regexp
	textPattern *regexp.Regexp
	commonPaths []string
}

var purposeRules = []purposeRule{
	{
		purpose:     model.PurposeCareers,
		pathPattern: regexp.MustCompile(`(?i)(careers?|/jobs?(/|$)|join-us|work-with-us|hiring|openings|vacancies)`),
		textPattern: regexp.MustCompile(`(?i)\b(careers?|jobs|join us|work with us|we're hiring|open positions|openings)\b`),
		commonPaths: []string{"/careers", "/jobs", "/work-with-us", "/join-us", "/company/careers"},
	},
	{
		purpose:     model.PurposeInvestors,
		pathPattern: regexp.MustCompile(`(?i)(investor|financials?|annual-report|shareholder|/ir(/|$)|sec-filings|earnings)`),
		textPattern: regexp.MustCompile(`(?i)\b(investors?|investor relations|financials?|annual reports?|shareholders?|earnings)\b`),
		commonPaths: []string{"/investor-relations", "/investors", "/financials", "/annual-report", "/ir"},
	},
	{
		purpose:     model.PurposePress,
		pathPattern: regexp.MustCompile(`(?i)(/news|/press|press-releases?|newsroom|/media(/|$)|announcements?)`),
		textPattern: regexp.MustCompile(`(?i)\b(news|press|press releases?|newsroom|media|announcements?)\b`),
		commonPaths: []string{"/news", "/press", "/press-releases", "/newsroom", "/media", "/about/news", "/company/news"},
	},
	{
		purpose:     model.PurposeMentions,
		pathPattern: regexp.MustCompile(`(?i)(partners?|integrations?|alternatives?|compare|comparison|competitors?|[-/]vs[-/.]|[-/]versus[-/])`),
		textPattern: regexp.MustCompile(`(?i)\b(partners?|integrations?|alternatives?|compare|comparison|vs\.?|versus)\b`),
	},
	{
		purpose:     model.PurposeLeadership,
		pathPattern: regexp.MustCompile(`(?i)(leadership|management|executive|our-team|/team|founders?|board-of-directors|/about(-us)?(/|$)|who-we-are|our-story)`),
		textPattern: regexp.MustCompile(`(?i)\b(leadership|management|executives?|our team|team|founders?|board|about us|about|who we are)\b`),
	},
}

// ClassifyLink returns the purpose a link serves, checking the path first
// and then the anchor text.
func ClassifyLink(link, anchorText string) (model.PagePurpose, bool) {
	u, err := url.Parse(link)
	if err != nil {
		return "", false
	}
	p := strings.ToLower(u.Path)
	if p == "" || p == "/" {
		return "", false
	}
	for _, r := range purposeRules {
		if r.pathPattern.MatchString(p) {
			return r.purpose, true
		}
	}
	for _, r := range purposeRules {
		if anchorText != "" && r.textPattern.MatchString(anchorText) {
			return r.purpose, true
		}
	}
	return "", false
}

// commonPathsFor returns the well-known paths for a purpose.
func commonPathsFor(p model.PagePurpose) []string {
	for _, r := range purposeRules {
		if r.purpose == p {
			return r.commonPaths
		}
	}
	return nil
}
