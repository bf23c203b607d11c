package extract

import (
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/sales-assistant/internal/fetch"
	"github.com/sells-group/sales-assistant/internal/model"
)

// DifferentiatorLookup returns a short blurb about a known company, or "".
type DifferentiatorLookup interface {
	Differentiators(name string) string
}

// fieldPages lists, per field, the secondary pages consulted after the homepage.
var fieldPages = map[model.FieldKind][]model.PagePurpose{
	model.FieldCompanyName:   nil,
	model.FieldDescription:   {model.PurposeLeadership},
	model.FieldFeatures:      nil,
	model.FieldLeadership:    {model.PurposeLeadership},
	model.FieldPressReleases: {model.PurposePress},
	model.FieldFinancialInfo: {model.PurposeInvestors},
	model.FieldJobPostings:   {model.PurposeCareers},
}

const maxMainContentChars = 3000

// BuildProfile extracts a CompanyProfile from a crawled site. Each field is
// tried on the homepage and then its relevant secondary pages; the value
// with the highest strategy confidence wins, earlier pages winning ties.
// A site whose homepage failed yields a profile with every field not found.
func BuildProfile(site model.Site, lookup DifferentiatorLookup) model.CompanyProfile {
	profile := model.NewProfile(site.Home.URL)
	profile.Domain = fetch.Domain(site.Home.URL)
	profile.FetchStatus = site.Home.FetchStatus

	home, err := NewPage(site.Home)
	if err != nil {
		zap.L().Debug("extract: homepage unavailable", zap.String("url", site.Home.URL), zap.Error(err))
		return profile
	}
	profile.SourceURLs = append(profile.SourceURLs, home.URL)

	secondary := make(map[model.PagePurpose][]*Page)
	for _, purpose := range model.SecondaryPurposes() {
		for _, pd := range site.PagesFor(purpose) {
			p, perr := NewPage(pd)
			if perr != nil {
				continue
			}
			secondary[purpose] = append(secondary[purpose], p)
			profile.SourceURLs = append(profile.SourceURLs, p.URL)
		}
	}

	for _, kind := range model.AllFieldKinds() {
		pages := []*Page{home}
		for _, purpose := range fieldPages[kind] {
			pages = append(pages, secondary[purpose]...)
		}
		profile.SetField(kind, bestValue(pages, kind))
	}

	profile.RawSections = rawSections(profile, home, secondary)
	if lookup != nil {
		profile.Differentiators = lookup.Differentiators(profile.DisplayName())
		if profile.Differentiators == "" && profile.Domain != "" {
			profile.Differentiators = lookup.Differentiators(profile.Domain)
		}
	}

	zap.L().Debug("extract: profile built",
		zap.String("url", profile.URL),
		zap.String("name", profile.Name.Text()),
		zap.Int("fields_found", profile.FoundCount()),
		zap.Int("pages", len(profile.SourceURLs)),
	)
	return profile
}

func bestValue(pages []*Page, kind model.FieldKind) model.FieldValue {
	best := model.Missing()
	for _, p := range pages {
		v := ExtractField(p, kind)
		if v.Found && (!best.Found || v.Confidence > best.Confidence) {
			best = v
		}
	}
	return best
}

// rawSections gathers the free-text sections used for embeddings and the prompt.
func rawSections(profile model.CompanyProfile, home *Page, secondary map[model.PagePurpose][]*Page) map[string]string {
	sections := map[string]string{}
	set := func(name, value string) {
		if v := strings.TrimSpace(value); v != "" && v != model.NotFound {
			sections[name] = v
		}
	}

	if profile.Description.Found {
		set(model.SectionDescription, profile.Description.Value)
	}

	about := []string{aboutText(home)}
	for _, p := range secondary[model.PurposeLeadership] {
		about = append(about, aboutText(p))
	}
	set(model.SectionAbout, strings.Join(dedupe(about), "\n\n"))
	set(model.SectionHeadings, headingsText(home))

	for name, kind := range map[string]model.FieldKind{
		model.SectionFeatures:   model.FieldFeatures,
		model.SectionLeadership: model.FieldLeadership,
		model.SectionJobs:       model.FieldJobPostings,
		model.SectionFinancial:  model.FieldFinancialInfo,
		model.SectionPress:      model.FieldPressReleases,
	} {
		if v := profile.Field(kind); v.Found {
			set(name, v.Value)
		}
	}

	main := mainContent(home)
	if len(main) > maxMainContentChars {
		main = truncateWords(main, maxMainContentChars)
	}
	set(model.SectionMainContent, main)
	return sections
}
