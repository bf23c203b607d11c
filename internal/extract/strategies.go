package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/sales-assistant/internal/fetch"
	"github.com/sells-group/sales-assistant/internal/model"
)

var (
	aboutRe     = regexp.MustCompile(`(?i)about|mission|vision|values|who-we-are`)
	featureRe   = regexp.MustCompile(`(?i)feature|solution|product|service|benefit|capabilit`)
	teamRe      = regexp.MustCompile(`(?i)team|leader|management|executive|founder|board`)
	profileRe   = regexp.MustCompile(`(?i)profile|card|member|person|executive|leader|bio`)
	jobRe       = regexp.MustCompile(`(?i)job|career|opening|position|vacanc`)
	pressRe     = regexp.MustCompile(`(?i)news|press|article|post|release|announcement`)
	financialRe = regexp.MustCompile(`(?i)financial|investor|earnings|results|performance`)
	roleAttrRe  = regexp.MustCompile(`(?i)title|role|position`)
	dateAttrRe  = regexp.MustCompile(`(?i)date|time|published`)

	featureHeadingRe = regexp.MustCompile(`(?i)\b(features?|solutions?|capabilit(y|ies)|products?|services?|what we do|benefits?)\b`)
	roleWordRe       = regexp.MustCompile(`(?i)\b(ceo|cto|cfo|coo|cmo|cio|chief|founder|co-founder|president|director|vp|vice president|head of|officer|chair(man|woman|person)?|partner|general manager|managing)\b`)
	personRoleRe     = regexp.MustCompile(`\b([A-Z][a-z]+(?: [A-Z]\.)?(?: [A-Z][a-z'\-]+){1,2}),? (?:is )?(?:our |the )?((?:Co-)?Founder(?: (?:&|and) [A-Z]{3})?|CEO|CTO|CFO|COO|CMO|President|Chief [A-Z][a-z]+ Officer|VP,? [A-Z][A-Za-z ]+|Vice President[A-Za-z ,]*)`)
	reportLinkRe     = regexp.MustCompile(`(?i)annual report|10-k|10k|financial report|earnings|quarterly results|investor presentation`)
	financeSentRe    = regexp.MustCompile(`(?i)[^.!?]*\b(revenue|funding|raised|series [a-e]|ipo|nasdaq|nyse|valuation|profit|arr)\b[^.!?]*[.!?]`)
	jobLinkRe        = regexp.MustCompile(`(?i)/jobs?/|/careers?/.+|/positions?/|/openings?/|greenhouse\.io|lever\.co|workable\.com|ashbyhq\.com`)

	// Dashes only separate when spaced, so "Coca-Cola" and "T-Mobile" stay whole.
	taglineRe      = regexp.MustCompile(`\s+[-–—]\s+.+$|\s*\|\s*.+$`)
	titleSeparator = regexp.MustCompile(`\s+[-–—]\s+|\s*[|:·•]\s*`)
	titleNoiseRe   = regexp.MustCompile(`(?i)\b(home|official site|welcome to)\b`)
	logoNoiseRe    = regexp.MustCompile(`(?i)\b(logo|brand|image)\b`)
	logoAttrRe     = regexp.MustCompile(`(?i)logo|brand`)
	nonLetterRe    = regexp.MustCompile(`[^a-zA-Z]+`)
)

var newsTypes = map[string]bool{
	"newsarticle":  true,
	"article":      true,
	"blogposting":  true,
	"pressrelease": true,
}

var jobTypes = map[string]bool{"jobposting": true}

// Company name.

func nameFromJSONLD(p *Page) string {
	return stringProp(p.organization(), "name")
}

func nameFromSiteName(p *Page) string {
	return taglineRe.ReplaceAllString(p.Meta("og:site_name"), "")
}

func nameFromApplicationName(p *Page) string {
	return p.Meta("application-name")
}

// nameFromTitle takes the first title segment that still names something
// once "Home" and similar noise is removed: "Home | Acme" yields "Acme".
func nameFromTitle(p *Page) string {
	for _, seg := range titleSeparator.Split(fetch.CollapseSpace(p.Title), -1) {
		name := strings.TrimSpace(titleNoiseRe.ReplaceAllString(seg, ""))
		if utf8.RuneCountInString(name) >= minChars[model.FieldCompanyName] {
			return name
		}
	}
	return ""
}

func nameFromLogo(p *Page) string {
	var out string
	p.Doc.Find("img[alt]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !attrMatches(s, logoAttrRe) {
			src, _ := s.Attr("src")
			if !logoAttrRe.MatchString(src) {
				return true
			}
		}
		alt, _ := s.Attr("alt")
		out = fetch.CollapseSpace(logoNoiseRe.ReplaceAllString(alt, ""))
		return out == ""
	})
	return out
}

// nameFromDomain turns the first label of the host into a title-cased name,
// "acme-rockets.com" becoming "Acme Rockets".
func nameFromDomain(p *Page) string {
	host := fetch.Domain(p.URL)
	if host == "" {
		return ""
	}
	label := strings.SplitN(host, ".", 2)[0]
	words := strings.Fields(nonLetterRe.ReplaceAllString(label, " "))
	return cases.Title(language.English).String(strings.Join(words, " "))
}

// Description.

func descriptionFromJSONLD(p *Page) string {
	return stringProp(p.organization(), "description")
}

func descriptionFromMeta(p *Page) string { return p.Meta("description") }

func descriptionFromOpenGraph(p *Page) string { return p.Meta("og:description") }

func descriptionFromAbout(p *Page) string {
	var out string
	p.Landmarks("section, div", aboutRe).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		s.Find("p").EachWithBreak(func(_ int, para *goquery.Selection) bool {
			out = text(para)
			return out == ""
		})
		return out == ""
	})
	return out
}

func descriptionFromParagraph(p *Page) string {
	var out string
	p.Doc.Find("p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if t := text(s); len(t) > 100 {
			out = t
			return false
		}
		return true
	})
	return out
}

func descriptionFromMainContent(p *Page) string {
	main := p.MainText()
	if len(main) > 400 {
		cut := strings.LastIndex(main[:400], " ")
		if cut <= 0 {
			cut = 400
		}
		main = main[:cut]
	}
	return main
}

// Features.

// featuresFromSections reads "Heading: first paragraph" pairs from feature
// and solution sections.
func featuresFromSections(p *Page) []string {
	var out []string
	p.Landmarks("section, div, ul", featureRe).Each(func(_ int, s *goquery.Selection) {
		s.Find("h2, h3, h4").Each(func(_ int, h *goquery.Selection) {
			out = append(out, headingWithParagraph(h))
		})
	})
	return out
}

// featuresFromHeadingLists reads list items under a heading that names
// features, solutions or products.
func featuresFromHeadingLists(p *Page) []string {
	var out []string
	p.Doc.Find("h2, h3").Each(func(_ int, h *goquery.Selection) {
		if !featureHeadingRe.MatchString(text(h)) {
			return
		}
		h.NextAll().Filter("ul, ol").First().Find("li").Each(func(_ int, li *goquery.Selection) {
			out = append(out, text(li))
		})
	})
	return out
}

// featuresFromTopHeadings takes the first three h2 headings with their
// following paragraph.
func featuresFromTopHeadings(p *Page) []string {
	var out []string
	p.Doc.Find("h2").Slice(0, min(3, p.Doc.Find("h2").Length())).Each(func(_ int, h *goquery.Selection) {
		out = append(out, headingWithParagraph(h))
	})
	return out
}

func headingWithParagraph(h *goquery.Selection) string {
	head := text(h)
	if head == "" {
		return ""
	}
	if para := text(h.NextAllFiltered("p").First()); para != "" {
		return head + ": " + para
	}
	return head
}

// Leadership.

func leadershipFromJSONLD(p *Page) []string {
	var out []string
	for _, org := range p.nodesOfType(organizationTypes) {
		for _, key := range []string{"founder", "founders", "employee", "employees", "member", "members"} {
			out = append(out, people(org, key)...)
		}
	}
	for _, person := range p.nodesOfType(map[string]bool{"person": true}) {
		if name := stringProp(person, "name"); name != "" {
			if title := stringProp(person, "jobTitle"); title != "" {
				out = append(out, name+" - "+title)
			}
		}
	}
	return out
}

// leadershipFromCards reads profile cards: a name heading plus a role line.
func leadershipFromCards(p *Page) []string {
	var out []string
	p.Landmarks("div, li, article", profileRe).Each(func(_ int, card *goquery.Selection) {
		name := text(card.Find("h2, h3, h4, h5, strong").First())
		if name == "" || len(name) > 60 {
			return
		}
		roleSel := card.Find("p, span, div").FilterFunction(func(_ int, s *goquery.Selection) bool {
			return attrMatches(s, roleAttrRe)
		}).First()
		if roleSel.Length() == 0 {
			roleSel = card.Find("p").First()
		}
		role := text(roleSel)
		if role == "" || role == name || !roleWordRe.MatchString(role) {
			return
		}
		out = append(out, name+" - "+truncateWords(role, 80))
	})
	return out
}

// leadershipFromTeamSections pairs headings in team sections with the
// element that follows them.
func leadershipFromTeamSections(p *Page) []string {
	var out []string
	p.Landmarks("section, div", teamRe).Each(func(_ int, s *goquery.Selection) {
		s.Find("h2, h3, h4").Each(func(_ int, h *goquery.Selection) {
			name := text(h)
			role := text(h.NextAllFiltered("p, span, div").First())
			if name == "" || len(name) > 60 || !roleWordRe.MatchString(role) {
				return
			}
			out = append(out, name+" - "+truncateWords(role, 80))
		})
	})
	return out
}

// leadershipFromText finds "Jane Doe, CEO" phrases in the page text.
func leadershipFromText(p *Page) []string {
	var out []string
	for _, m := range personRoleRe.FindAllStringSubmatch(p.Text, -1) {
		out = append(out, m[1]+" - "+strings.TrimRight(strings.TrimSpace(m[2]), ","))
	}
	return out
}

// Press releases.

func pressFromJSONLD(p *Page) []string {
	var out []string
	for _, n := range p.nodesOfType(newsTypes) {
		headline := stringProp(n, "headline")
		if headline == "" {
			headline = stringProp(n, "name")
		}
		if headline == "" {
			continue
		}
		if date := stringProp(n, "datePublished"); date != "" {
			headline += " (" + date + ")"
		}
		out = append(out, headline)
	}
	return out
}

// pressFromArticles reads titles and dates from article containers.
func pressFromArticles(p *Page) []string {
	var out []string
	p.Doc.Find("article, div, li").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return goquery.NodeName(s) == "article" || attrMatches(s, pressRe)
	}).Each(func(_ int, s *goquery.Selection) {
		title := text(s.Find("h1, h2, h3, h4").First())
		if title == "" {
			return
		}
		date := text(s.Find("time").First())
		if date == "" {
			date = text(s.Find("span, div").FilterFunction(func(_ int, d *goquery.Selection) bool {
				return attrMatches(d, dateAttrRe)
			}).First())
		}
		if date != "" && len(date) <= 40 {
			title += " (" + date + ")"
		}
		out = append(out, title)
	})
	return out
}

// pressFromLinks takes long anchor texts inside news sections.
func pressFromLinks(p *Page) []string {
	var out []string
	p.Landmarks("section, div, ul", pressRe).Find("a").Each(func(_ int, a *goquery.Selection) {
		if t := text(a); len(t) >= 20 {
			out = append(out, t)
		}
	})
	return out
}

// Financial information.

func financialFromReportLinks(p *Page) string {
	var lines []string
	p.Doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		t := text(a)
		if t == "" || (!reportLinkRe.MatchString(t) && !reportLinkRe.MatchString(href)) {
			return
		}
		lines = append(lines, t+" ("+absolute(p.URL, href)+")")
	})
	return strings.Join(dedupe(lines), "\n")
}

func financialFromSections(p *Page) string {
	var lines []string
	p.Landmarks("section, div", financialRe).Find("p").Each(func(_ int, s *goquery.Selection) {
		if t := text(s); len(t) > 20 {
			lines = append(lines, t)
		}
	})
	return strings.Join(dedupe(lines), "\n")
}

func financialFromSentences(p *Page) string {
	matches := financeSentRe.FindAllString(p.Text, 3)
	for i, m := range matches {
		matches[i] = strings.TrimSpace(m)
	}
	return strings.Join(dedupe(matches), " ")
}

// Job postings.

func jobsFromJSONLD(p *Page) []string {
	var out []string
	for _, n := range p.nodesOfType(jobTypes) {
		if t := stringProp(n, "title"); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func jobsFromListings(p *Page) []string {
	var out []string
	p.Landmarks("div, li, article, tr", jobRe).Each(func(_ int, s *goquery.Selection) {
		t := text(s.Find("h2, h3, h4, a, strong").First())
		if t != "" && len(t) <= 120 {
			out = append(out, t)
		}
	})
	return out
}

func jobsFromLinks(p *Page) []string {
	var out []string
	p.Doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		t := text(a)
		if jobLinkRe.MatchString(href) && len(t) <= 120 {
			out = append(out, t)
		}
	})
	return out
}

// Main content and raw sections.

func aboutText(p *Page) string {
	var paras []string
	p.Landmarks("section, div", aboutRe).Find("p").Each(func(_ int, s *goquery.Selection) {
		if t := text(s); t != "" {
			paras = append(paras, t)
		}
	})
	return strings.Join(dedupe(paras), "\n\n")
}

func headingsText(p *Page) string {
	var heads []string
	p.Doc.Find("h1, h2, h3").Each(func(_ int, s *goquery.Selection) {
		if t := text(s); t != "" {
			heads = append(heads, t)
		}
	})
	return strings.Join(dedupe(heads), "\n")
}

// mainContent prefers the readability article and falls back to every
// paragraph longer than 50 characters.
func mainContent(p *Page) string {
	if t := p.MainText(); len(t) > 200 {
		return t
	}
	var paras []string
	p.Doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if t := text(s); len(t) > 50 {
			paras = append(paras, t)
		}
	})
	return strings.Join(dedupe(paras), "\n\n")
}

func absolute(base, href string) string {
	if abs, ok := fetch.ResolveLink(base, href); ok {
		return abs
	}
	return href
}

func truncateWords(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := strings.LastIndex(s[:n], " ")
	if cut <= 0 {
		cut = n
	}
	return strings.TrimSpace(s[:cut])
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := items[:0:0]
	for _, it := range items {
		if it == "" || seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}
