package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCompetitorURLs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", []string{}},
		{"blanks only", " , ,", []string{}},
		{"trims and keeps order", " b.com, a.com ,c.com", []string{"b.com", "a.com", "c.com"}},
		{"drops duplicates", "a.com,a.com,b.com", []string{"a.com", "b.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParseCompetitorURLs(tt.raw))
		})
	}
}

func TestCleanCompetitorURLs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{}, CleanCompetitorURLs(nil))
	assert.Equal(t, []string{"a.com", "b.com"}, CleanCompetitorURLs([]string{" a.com", "", "b.com", "a.com "}))
}

func TestNewProfileAllNotFound(t *testing.T) {
	t.Parallel()

	p := NewProfile("https://acme.com")
	for _, k := range AllFieldKinds() {
		f := p.Field(k)
		assert.False(t, f.Found, "field %s", k)
		assert.Equal(t, NotFound, f.Value, "field %s", k)
	}
	assert.Equal(t, 0, p.FoundCount())
	assert.NotNil(t, p.RawSections)
}

func TestSetFieldNormalizesMisses(t *testing.T) {
	t.Parallel()

	p := NewProfile("https://acme.com")
	p.SetField(FieldDescription, FieldValue{Value: ""})
	assert.Equal(t, NotFound, p.Description.Value)

	p.SetField(FieldFeatures, List([]string{"Fast", "Cheap"}, "landmark", 0.7))
	assert.True(t, p.Features.Found)
	assert.Equal(t, "Fast\nCheap", p.Features.Value)
	assert.Equal(t, 1, p.FoundCount())
}

func TestDisplayName(t *testing.T) {
	t.Parallel()

	p := NewProfile("https://acme.com")
	assert.Equal(t, "https://acme.com", p.DisplayName())
	p.Domain = "acme.com"
	assert.Equal(t, "acme.com", p.DisplayName())
	p.Name = Scalar("Acme", "jsonld", 0.95)
	assert.Equal(t, "Acme", p.DisplayName())
}

func TestFieldValueText(t *testing.T) {
	t.Parallel()
	assert.Equal(t, NotFound, Missing().Text())
	assert.Equal(t, NotFound, FieldValue{Found: true}.Text())
	assert.Equal(t, "x", Scalar("x", "s", 1).Text())
}

func TestFieldKindIsList(t *testing.T) {
	t.Parallel()
	assert.True(t, FieldFeatures.IsList())
	assert.True(t, FieldJobPostings.IsList())
	assert.False(t, FieldCompanyName.IsList())
	assert.False(t, FieldFinancialInfo.IsList())
}

func TestSitePagesForSkipsFailures(t *testing.T) {
	t.Parallel()

	s := Site{Pages: map[PagePurpose][]PageDocument{
		PurposeCareers: {
			{URL: "a", FetchStatus: FetchStatusOK, RawHTML: "<p>x</p>"},
			{URL: "b", FetchStatus: FetchStatusHTTPError},
		},
	}}
	got := s.PagesFor(PurposeCareers)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].URL)
	assert.Empty(t, s.PagesFor(PurposePress))
}

func TestDocumentTextHelpers(t *testing.T) {
	t.Parallel()

	d := DocumentText{
		Status: DocumentPartial,
		Pages: []PageText{
			{Number: 1, Text: "a"},
			{Number: 2, Error: "bad xref"},
			{Number: 3, Text: "c"},
		},
	}
	assert.True(t, d.HasText())
	assert.Equal(t, []int{2}, d.FailedPages())
	assert.False(t, DocumentText{Status: DocumentNoText}.HasText())
}

func TestMentionCounts(t *testing.T) {
	t.Parallel()

	counts := MentionCounts([]MentionRecord{
		{CompetitorName: "Acme"},
		{CompetitorName: "Beta"},
		{CompetitorName: "Acme"},
	})
	assert.Equal(t, map[string]int{"Acme": 2, "Beta": 1}, counts)
}

func TestReportSectionKeysHaveTitles(t *testing.T) {
	t.Parallel()

	for _, k := range ReportSectionKeys() {
		assert.NotEqual(t, k, ReportTitle(k))
	}
	r := InsightReport{Sections: []ReportSection{{Key: ReportOpportunities, Content: "x"}}}
	got, ok := r.Section(ReportOpportunities)
	assert.True(t, ok)
	assert.Equal(t, "x", got)
	_, ok = r.Section(ReportLeadership)
	assert.False(t, ok)
}

func TestTokenUsageAdd(t *testing.T) {
	t.Parallel()

	u := TokenUsage{InputTokens: 10, OutputTokens: 5, Cost: 0.1}
	u.Add(TokenUsage{InputTokens: 1, OutputTokens: 2, Cost: 0.2})
	assert.Equal(t, 11, u.InputTokens)
	assert.Equal(t, 7, u.OutputTokens)
	assert.InDelta(t, 0.3, u.Cost, 1e-9)
}
