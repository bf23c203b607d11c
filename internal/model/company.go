package model

// Raw section names shared by the extractor, embedder and prompt builder.
const (
	SectionDescription = "company_description"
	SectionAbout       = "about"
	SectionHeadings    = "headings"
	SectionFeatures    = "features"
	SectionLeadership  = "leadership"
	SectionJobs        = "jobs"
	SectionFinancial   = "financial"
	SectionPress       = "press"
	SectionMainContent = "main_content"
	SectionCombined    = "combined"
)

// CompanyProfile holds the structured facts extracted for one company URL.
type CompanyProfile struct {
	URL             string            `json:"url"`
	Domain          string            `json:"domain"`
	FetchStatus     FetchStatus       `json:"fetch_status"`
	Name            FieldValue        `json:"name"`
	Description     FieldValue        `json:"description"`
	Features        FieldValue        `json:"features"`
	Leadership      FieldValue        `json:"leadership"`
	PressReleases   FieldValue        `json:"press_releases"`
	FinancialInfo   FieldValue        `json:"financial_info"`
	JobPostings     FieldValue        `json:"job_postings"`
	Differentiators string            `json:"differentiators,omitempty"`
	RawSections     map[string]string `json:"raw_sections,omitempty"`
	SourceURLs      []string          `json:"source_urls,omitempty"`
}

// NewProfile returns a profile with every field set to not-found.
func NewProfile(url string) CompanyProfile {
	return CompanyProfile{
		URL:           url,
		Name:          Missing(),
		Description:   Missing(),
		Features:      Missing(),
		Leadership:    Missing(),
		PressReleases: Missing(),
		FinancialInfo: Missing(),
		JobPostings:   Missing(),
		RawSections:   map[string]string{},
	}
}

// Field returns the value for a field kind.
func (p *CompanyProfile) Field(kind FieldKind) FieldValue {
	switch kind {
	case FieldCompanyName:
		return p.Name
	case FieldDescription:
		return p.Description
	case FieldFeatures:
		return p.Features
	case FieldLeadership:
		return p.Leadership
	case FieldPressReleases:
		return p.PressReleases
	case FieldFinancialInfo:
		return p.FinancialInfo
	case FieldJobPostings:
		return p.JobPostings
	}
	return Missing()
}

// SetField stores a value for a field kind. Unknown kinds are ignored.
func (p *CompanyProfile) SetField(kind FieldKind, v FieldValue) {
	if !v.Found {
		v = Missing()
	}
	switch kind {
	case FieldCompanyName:
		p.Name = v
	case FieldDescription:
		p.Description = v
	case FieldFeatures:
		p.Features = v
	case FieldLeadership:
		p.Leadership = v
	case FieldPressReleases:
		p.PressReleases = v
	case FieldFinancialInfo:
		p.FinancialInfo = v
	case FieldJobPostings:
		p.JobPostings = v
	}
}

// FoundCount returns how many fields were filled.
func (p *CompanyProfile) FoundCount() int {
	n := 0
	for _, k := range AllFieldKinds() {
		if p.Field(k).Found {
			n++
		}
	}
	return n
}

// DisplayName returns the extracted name, falling back to the domain then the URL.
func (p *CompanyProfile) DisplayName() string {
	if p.Name.Found {
		return p.Name.Value
	}
	if p.Domain != "" {
		return p.Domain
	}
	return p.URL
}
