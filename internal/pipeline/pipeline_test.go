package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/sales-assistant/internal/competitor"
	"github.com/sells-group/sales-assistant/internal/config"
	"github.com/sells-group/sales-assistant/internal/embed"
	"github.com/sells-group/sales-assistant/internal/fetch"
	"github.com/sells-group/sales-assistant/internal/ingest"
	"github.com/sells-group/sales-assistant/internal/insight"
	"github.com/sells-group/sales-assistant/internal/model"
	"github.com/sells-group/sales-assistant/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

const reportJSON = `{
  "company_strategy": "Acme sells rocket skates to coyotes.",
  "leadership_information": "Wile E. Coyote leads the company.",
  "competitive_landscape": "Globex undercuts on price.",
  "product_strategy_summary": "Lead with speed.",
  "opportunities": ["Bundle magnets", "Desert expansion"],
  "article_links": ["https://news.test/acme-launch"]
}`

func companyPage(name, body string) string {
	return fmt.Sprintf(`<!DOCTYPE html><html><head><title>%[1]s</title>
<meta name="description" content="%[1]s builds things for demanding customers around the world.">
<script type="application/ld+json">{"@type":"Organization","name":"%[1]s"}</script>
</head><body><main><h1>%[1]s</h1><p>%[2]s</p></main></body></html>`, name, body)
}

func siteServer(t *testing.T, html string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(html))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func hangingServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig() *config.Config {
	return &config.Config{
		Scan:     config.ScanConfig{ContextChars: 30},
		Pipeline: config.PipelineConfig{MaxCompetitors: 5, TimeoutSecs: 30},
	}
}

func newTestPipeline(st store.Store, llm insight.LLM, open ingest.Opener) *Pipeline {
	return New(
		testConfig(),
		st,
		fetch.New(fetch.WithTimeout(200*time.Millisecond)),
		nil,
		competitor.DefaultKnowledgeBase(),
		embed.NewService(embed.NewHashingModel(128)),
		ingest.New(open, 0),
		insight.New(llm, insight.WithTimeout(2*time.Second)),
	)
}

func phaseByName(phases []model.PhaseResult, name string) (model.PhaseResult, bool) {
	for _, p := range phases {
		if p.Name == name {
			return p, true
		}
	}
	return model.PhaseResult{}, false
}

func TestPipeline_Run_FullFlow(t *testing.T) {
	target := siteServer(t, companyPage("Acme Rockets",
		"We beat Globex on delivery speed. Customers leaving Globex Corporation love our skates."))
	globex := siteServer(t, companyPage("Globex", "Globex makes cheap skates."))
	initech := siteServer(t, companyPage("Initech", "Initech makes software for skate shops."))

	llm := &recordingLLM{response: reportJSON}
	st := store.NewNoop()
	p := newTestPipeline(st, llm, pagesOpener("Pricing versus Globex.", "CORRUPT", "Roadmap."))

	in := model.SalesInput{
		ProductName:      "Rocket Skates",
		TargetURL:        target.URL,
		ProductCategory:  "skates",
		CompetitorURLs:   []string{globex.URL, initech.URL},
		ValueProposition: "Fastest skates on earth",
		TargetCustomer:   "Coyotes",
		DocumentName:     "deck.pdf",
		Document:         []byte("%PDF-1.7"),
	}

	res, err := p.Run(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, res)

	// Report
	assert.False(t, res.Report.Degraded)
	assert.Equal(t, "Globex undercuts on price.", sectionText(t, res.Report, "competitive_landscape"))
	assert.Equal(t, "- Bundle magnets\n- Desert expansion", sectionText(t, res.Report, "opportunities"))
	assert.Equal(t, 1, llm.calls)

	// Context
	sc := res.Context
	assert.Equal(t, "Acme Rockets", sc.Target.Name.Value)
	require.Len(t, sc.Competitors, 2)
	assert.Equal(t, "Globex", sc.Competitors[0].Name.Value)
	assert.Equal(t, "Initech", sc.Competitors[1].Name.Value)
	assert.Nil(t, sc.Inputs.Document)

	// Mentions: two on the homepage, one in the document.
	require.Len(t, sc.Mentions, 3)
	for _, m := range sc.Mentions {
		assert.Equal(t, "Globex", m.CompetitorName)
	}
	assert.True(t, strings.HasPrefix(sc.Mentions[0].SourceDocument, target.URL))
	assert.Less(t, sc.Mentions[0].Position, sc.Mentions[1].Position)
	assert.Equal(t, model.DocumentSource, sc.Mentions[2].SourceDocument)

	// Document: corrupt middle page keeps the other two.
	assert.Equal(t, model.DocumentPartial, sc.Document.Status)
	assert.Equal(t, []int{2}, sc.Document.FailedPages())
	assert.Contains(t, sc.Document.Text, "Pricing versus Globex.")
	assert.Contains(t, sc.Document.Text, "Roadmap.")

	// Embeddings for every reachable profile.
	assert.Len(t, sc.Embeddings, 3)
	assert.NotEmpty(t, sc.Embeddings[sc.Target.URL])

	// Prompt keeps competitor order.
	user := llm.lastRequest().User
	assert.Less(t, strings.Index(user, "COMPETITOR 1"), strings.Index(user, "COMPETITOR 2"))
	assert.Less(t, strings.Index(user, "Name: Globex"), strings.Index(user, "Name: Initech"))

	// Phases
	for _, name := range []string{PhaseFetchTarget, "fetch_competitor_1", "fetch_competitor_2", PhaseIngest, PhaseScan, PhaseEmbed, PhaseAggregate, PhaseGenerate} {
		ph, ok := phaseByName(res.Phases, name)
		require.True(t, ok, name)
		assert.Equal(t, model.PhaseStatusComplete, ph.Status, name)
	}

	// Run history
	run, err := st.GetRun(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Nil(t, run.Input.Document)
}

func TestPipeline_Run_UnreachableTarget(t *testing.T) {
	target := hangingServer(t)
	globex := siteServer(t, companyPage("Globex", "Globex makes cheap skates."))

	llm := &recordingLLM{response: reportJSON}
	p := newTestPipeline(store.NewNoop(), llm, pagesOpener("Our deck mentions Globex twice: Globex."))

	res, err := p.Run(context.Background(), model.SalesInput{
		ProductName:    "Rocket Skates",
		TargetURL:      target.URL,
		CompetitorURLs: []string{globex.URL},
		Document:       []byte("%PDF-1.7"),
	})
	require.NoError(t, err)

	sc := res.Context
	assert.Equal(t, model.FetchStatusTimeout, sc.Target.FetchStatus)
	for _, kind := range model.AllFieldKinds() {
		v := sc.Target.Field(kind)
		assert.False(t, v.Found, kind)
		assert.Equal(t, model.NotFound, v.Text(), kind)
	}
	require.Len(t, sc.Competitors, 1)
	assert.Equal(t, "Globex", sc.Competitors[0].Name.Value)
	assert.Equal(t, model.DocumentOK, sc.Document.Status)
	assert.Len(t, sc.Mentions, 2)

	assert.False(t, res.Report.Degraded)
	assert.Equal(t, 1, llm.calls)

	ph, ok := phaseByName(res.Phases, PhaseFetchTarget)
	require.True(t, ok)
	assert.Equal(t, model.PhaseStatusFailed, ph.Status)
	assert.Contains(t, ph.Error, "timeout")
}

func TestPipeline_Run_DegradedReport(t *testing.T) {
	target := siteServer(t, companyPage("Acme Rockets", "Rockets for everyone."))

	llm := &recordingLLM{err: errors.New("invalid api key")}
	st := store.NewNoop()
	p := newTestPipeline(st, llm, pagesOpener())

	res, err := p.Run(context.Background(), model.SalesInput{ProductName: "Rocket Skates", TargetURL: target.URL})
	require.NoError(t, err)

	assert.True(t, res.Report.Degraded)
	assert.Contains(t, res.Report.Error, "invalid api key")
	assert.Contains(t, res.Report.ContextSummary, "TARGET: Acme Rockets")
	assert.Empty(t, res.Context.Competitors)
	assert.Equal(t, model.DocumentAbsent, res.Context.Document.Status)

	ph, ok := phaseByName(res.Phases, PhaseGenerate)
	require.True(t, ok)
	assert.Equal(t, model.PhaseStatusFailed, ph.Status)
	ph, ok = phaseByName(res.Phases, PhaseIngest)
	require.True(t, ok)
	assert.Equal(t, model.PhaseStatusSkipped, ph.Status)

	run, err := st.GetRun(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusDegraded, run.Status)
}

func TestPipeline_Run_InvalidInput(t *testing.T) {
	st := &mockStore{}
	p := newTestPipeline(st, &recordingLLM{response: reportJSON}, pagesOpener())

	tests := []struct {
		name string
		in   model.SalesInput
	}{
		{"missing product", model.SalesInput{TargetURL: "https://acme.test"}},
		{"missing url", model.SalesInput{ProductName: "Rocket Skates"}},
		{"blank product", model.SalesInput{ProductName: "   ", TargetURL: "https://acme.test"}},
		{"empty competitor url", model.SalesInput{ProductName: "Rocket Skates", TargetURL: "https://acme.test", CompetitorURLs: []string{""}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Run(context.Background(), tt.in)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
	st.AssertNotCalled(t, "CreateRun", mock.Anything, mock.Anything)
}

func TestPipeline_Run_CreateRunFails(t *testing.T) {
	st := &mockStore{}
	st.On("CreateRun", mock.Anything, mock.AnythingOfType("model.SalesInput")).Return(nil, errors.New("disk full"))

	llm := &recordingLLM{response: reportJSON}
	p := newTestPipeline(st, llm, pagesOpener())

	_, err := p.Run(context.Background(), model.SalesInput{ProductName: "Rocket Skates", TargetURL: "https://acme.test"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline: create run")
	assert.Equal(t, 0, llm.calls)
	st.AssertExpectations(t)
}

func TestPipeline_Run_StoreWriteFailuresAreLogged(t *testing.T) {
	target := siteServer(t, companyPage("Acme Rockets", "Rockets for everyone."))

	st := &mockStore{}
	st.On("CreateRun", mock.Anything, mock.AnythingOfType("model.SalesInput")).Return(&model.Run{ID: "run-001"}, nil)
	st.On("UpdateRunStatus", mock.Anything, "run-001", mock.AnythingOfType("model.RunStatus")).Return(errors.New("locked"))
	st.On("CreatePhase", mock.Anything, "run-001", mock.AnythingOfType("string")).Return(&model.RunPhase{ID: "phase-001"}, nil)
	st.On("CompletePhase", mock.Anything, "phase-001", mock.AnythingOfType("*model.PhaseResult")).Return(nil)
	st.On("UpdateRunResult", mock.Anything, "run-001", mock.AnythingOfType("*model.RunResult")).Return(errors.New("locked"))

	p := newTestPipeline(st, &recordingLLM{response: reportJSON}, pagesOpener())
	res, err := p.Run(context.Background(), model.SalesInput{ProductName: "Rocket Skates", TargetURL: target.URL})
	require.NoError(t, err)
	assert.Equal(t, "run-001", res.RunID)
	assert.False(t, res.Report.Degraded)
	st.AssertExpectations(t)
}

func TestCapCompetitors(t *testing.T) {
	p := &Pipeline{cfg: &config.Config{Pipeline: config.PipelineConfig{MaxCompetitors: 2}}}
	assert.Equal(t, []string{"a", "b"}, p.capCompetitors([]string{"a", "b", "c"}))
	assert.Equal(t, []string{"a"}, p.capCompetitors([]string{"a"}))

	p.cfg.Pipeline.MaxCompetitors = 0
	assert.Len(t, p.capCompetitors([]string{"a", "b", "c"}), 3)
}

func TestMentionSources(t *testing.T) {
	page := func(url, text string) model.PageDocument {
		return model.PageDocument{URL: url, RawHTML: "<p>" + text + "</p>", ParsedText: text, FetchStatus: model.FetchStatusOK}
	}
	site := model.Site{
		Home: page("https://acme.test/", "home"),
		Pages: map[model.PagePurpose][]model.PageDocument{
			model.PurposeMentions: {page("https://acme.test/partners", "partners")},
			model.PurposePress:    {page("https://acme.test/news", "news")},
			model.PurposeCareers:  {page("https://acme.test/careers", "careers")},
		},
	}
	doc := model.DocumentText{Text: "deck", Status: model.DocumentOK}

	sources := mentionSources(site, doc)
	var names []string
	for _, s := range sources {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"https://acme.test/", "https://acme.test/partners", model.DocumentSource}, names)

	site.Home = model.PageDocument{URL: "https://acme.test/", FetchStatus: model.FetchStatusTimeout}
	assert.Len(t, mentionSources(site, model.DocumentText{Status: model.DocumentAbsent}), 1)
}

func TestSearchQuery(t *testing.T) {
	assert.Equal(t, "skates", searchQuery(model.SalesInput{ProductName: "Rocket Skates", ProductCategory: "skates"}))
	assert.Equal(t, "Rocket Skates", searchQuery(model.SalesInput{ProductName: "Rocket Skates"}))
}

func TestNewFromConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Fetch = config.FetchConfig{TimeoutSecs: 5}
	cfg.Crawl = config.CrawlConfig{Enabled: true, MaxSecondaryPages: 2}
	cfg.Embed = config.EmbedConfig{Provider: "local", Dimensions: 64}
	cfg.Ingest = config.IngestConfig{Provider: "local"}
	cfg.Insight = config.InsightConfig{Provider: "anthropic", TimeoutSecs: 10, MaxAttempts: 2}
	cfg.Anthropic = config.AnthropicConfig{Key: "sk-test", Model: "claude-sonnet-4-5-20250929"}

	p, err := NewFromConfig(context.Background(), cfg, store.NewNoop())
	require.NoError(t, err)
	assert.NotNil(t, p.crawler)
	assert.Equal(t, 64, p.embedder.Model().Dimensions())

	cfg.Embed.Provider = "word2vec"
	_, err = NewFromConfig(context.Background(), cfg, store.NewNoop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding model")

	cfg.Embed.Provider = "local"
	cfg.Competitors.KnowledgeBasePath = "/nonexistent/kb.yaml"
	_, err = NewFromConfig(context.Background(), cfg, store.NewNoop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "knowledge base")
}

func sectionText(t *testing.T, r model.InsightReport, key string) string {
	t.Helper()
	content, ok := r.Section(key)
	require.Truef(t, ok, "report has no %q section", key)
	return content
}
