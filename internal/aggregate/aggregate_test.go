package aggregate

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sales-assistant/internal/model"
)

func profile(url, name string) model.CompanyProfile {
	p := model.NewProfile(url)
	p.FetchStatus = model.FetchStatusOK
	if name != "" {
		p.Name = model.Scalar(name, "json-ld", 0.95)
	}
	return p
}

func TestAssemble_PreservesCompetitorOrder(t *testing.T) {
	t.Parallel()

	comps := []model.CompanyProfile{
		profile("https://zeta.test", "Zeta"),
		profile("https://alpha.test", "Alpha"),
		profile("https://mid.test", "Mid"),
	}
	c := Assemble(profile("https://acme.test", "Acme"), comps, nil, model.DocumentText{}, model.SalesInput{ProductName: "Rocket"})

	require.Len(t, c.Competitors, 3)
	assert.Equal(t, "Zeta", c.Competitors[0].Name.Value)
	assert.Equal(t, "Alpha", c.Competitors[1].Name.Value)
	primary, ok := c.PrimaryCompetitor()
	require.True(t, ok)
	assert.Equal(t, "https://zeta.test", primary.URL)

	comps[0] = profile("https://changed.test", "Changed")
	assert.Equal(t, "Zeta", c.Competitors[0].Name.Value)
}

func TestAssemble_ExplicitEmptyMarkers(t *testing.T) {
	t.Parallel()

	c := Assemble(model.NewProfile("https://acme.test"), nil, nil, model.DocumentText{}, model.SalesInput{})

	assert.NotNil(t, c.Competitors)
	assert.Empty(t, c.Competitors)
	assert.NotNil(t, c.Mentions)
	assert.NotNil(t, c.Embeddings)
	assert.NotNil(t, c.Relevance)
	assert.NotNil(t, c.Inputs.CompetitorURLs)
	assert.NotNil(t, c.Document.Pages)
	assert.Equal(t, model.DocumentAbsent, c.Document.Status)
	assert.Equal(t, model.NotFound, c.Target.Description.Text())
	assert.False(t, c.AssembledAt.IsZero())

	_, ok := c.PrimaryCompetitor()
	assert.False(t, ok)
}

func TestAssemble_Options(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	emb := map[string]map[string]model.EmbeddingVector{
		"https://acme.test": {"about": {SectionName: "about", Vector: []float32{1}}},
	}
	rel := []model.RelevanceMatch{{ProfileURL: "https://acme.test", Section: "about", Score: 0.7, Relevance: model.RelevanceHigh}}
	doc := model.DocumentText{Status: model.DocumentOK, Text: "deck"}

	c := Assemble(model.NewProfile("https://acme.test"), nil, nil, doc, model.SalesInput{},
		WithEmbeddings(emb), WithRelevance(rel), WithTime(at))

	assert.Equal(t, at, c.AssembledAt)
	assert.Equal(t, rel, c.Relevance)
	assert.Equal(t, []float32{1}, c.Embeddings["https://acme.test"]["about"].Vector)
	assert.Equal(t, model.DocumentOK, c.Document.Status)

	emb["https://acme.test"]["press"] = model.EmbeddingVector{}
	assert.NotContains(t, c.Embeddings["https://acme.test"], "press")
}

func TestSummary(t *testing.T) {
	t.Parallel()

	target := profile("https://acme.test", "Acme")
	target.Description = model.Scalar("Acme builds rockets.", "meta_description", 0.9)
	target.Leadership = model.List([]string{"Wile E. Coyote - CEO", "Road Runner - CTO"}, "json-ld", 0.95)

	unreachable := model.NewProfile("https://down.test")
	unreachable.Domain = "down.test"
	unreachable.FetchStatus = model.FetchStatusTimeout

	comp := profile("https://globex.test", "Globex")
	comp.Differentiators = "Cheaper than Acme."

	mentions := []model.MentionRecord{
		{SourceDocument: "https://acme.test/", CompetitorName: "Globex"},
		{SourceDocument: model.DocumentSource, CompetitorName: "Globex"},
		{SourceDocument: model.DocumentSource, CompetitorName: "Globex"},
	}
	doc := model.DocumentText{
		Name:   "deck.pdf",
		Status: model.DocumentPartial,
		Text:   "Page one.\n\f\n\n\f\nPage three.",
		Pages:  []model.PageText{{Number: 1}, {Number: 2, Error: "corrupt"}, {Number: 3}},
	}
	in := model.SalesInput{ProductName: "Rocket", ProductCategory: "Aerospace", TargetCustomer: "CTOs"}

	s := Summary(Assemble(target, []model.CompanyProfile{comp, unreachable}, mentions, doc, in))

	assert.Contains(t, s, "Product: Rocket (Aerospace)\n")
	assert.Contains(t, s, "Value proposition: N/A\n")
	assert.Contains(t, s, "Target customer: CTOs\n")
	assert.Contains(t, s, "TARGET: Acme (https://acme.test) [fetch: ok]\n")
	assert.Contains(t, s, "  description: Acme builds rockets.\n")
	assert.Contains(t, s, "  leadership_info: Wile E. Coyote - CEO; Road Runner - CTO\n")
	assert.Contains(t, s, "  job_postings: not found\n")
	assert.Contains(t, s, "COMPETITOR 1 (primary): Globex (https://globex.test) [fetch: ok]\n")
	assert.Contains(t, s, "  differentiators: Cheaper than Acme.\n")
	assert.Contains(t, s, "COMPETITOR 2: down.test (https://down.test) [fetch: timeout]\n")
	assert.Contains(t, s, "- Globex: 3 (https://acme.test/, document)\n")
	assert.Contains(t, s, "DOCUMENT: partial deck.pdf, 3 pages, failed pages [2]\n")
	assert.Contains(t, s, "Page one. Page three.")
	assert.Less(t, strings.Index(s, "COMPETITOR 1"), strings.Index(s, "COMPETITOR 2"))
}

func TestSummary_Minimal(t *testing.T) {
	t.Parallel()

	s := Summary(Assemble(model.NewProfile("https://acme.test"), nil, nil, model.DocumentText{}, model.SalesInput{}))
	assert.Contains(t, s, "Product: N/A\n")
	assert.Contains(t, s, "TARGET: https://acme.test (https://acme.test) [fetch: N/A]\n")
	assert.Contains(t, s, "MENTIONS: none\n")
	assert.Contains(t, s, "DOCUMENT: absent\n")
	assert.NotContains(t, s, "COMPETITOR")
}

func TestClip(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc", clip("abc", 3))
	assert.Equal(t, "éé…", clip("ééé", 2))
}
