// Package pipeline runs one sales insight request end to end: fetch and
// extract the target and competitor sites, ingest the document, scan for
// competitor mentions, embed sections, aggregate and generate the report.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/sales-assistant/internal/aggregate"
	"github.com/sells-group/sales-assistant/internal/competitor"
	"github.com/sells-group/sales-assistant/internal/config"
	"github.com/sells-group/sales-assistant/internal/embed"
	"github.com/sells-group/sales-assistant/internal/extract"
	"github.com/sells-group/sales-assistant/internal/fetch"
	"github.com/sells-group/sales-assistant/internal/ingest"
	"github.com/sells-group/sales-assistant/internal/insight"
	"github.com/sells-group/sales-assistant/internal/model"
	"github.com/sells-group/sales-assistant/internal/store"
	"github.com/sells-group/sales-assistant/pkg/jina"
)

// Phase names recorded for each run.
const (
	PhaseFetchTarget = "fetch_target"
	PhaseIngest      = "ingest_document"
	PhaseScan        = "scan_mentions"
	PhaseEmbed       = "embed_sections"
	PhaseAggregate   = "aggregate"
	PhaseGenerate    = "generate_insights"
)

// Pipeline holds the process-wide components shared by every run. All of
// them are safe for concurrent use.
type Pipeline struct {
	cfg       *config.Config
	store     store.Store
	fetcher   fetch.PageFetcher
	crawler   *fetch.Crawler
	kb        *competitor.KnowledgeBase
	embedder  *embed.Service
	ingestor  *ingest.Ingestor
	generator *insight.Generator
}

// New creates a Pipeline from already built components. crawler may be nil
// to disable secondary-page discovery.
func New(
	cfg *config.Config,
	st store.Store,
	fetcher fetch.PageFetcher,
	crawler *fetch.Crawler,
	kb *competitor.KnowledgeBase,
	embedder *embed.Service,
	ingestor *ingest.Ingestor,
	generator *insight.Generator,
) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		store:     st,
		fetcher:   fetcher,
		crawler:   crawler,
		kb:        kb,
		embedder:  embedder,
		ingestor:  ingestor,
		generator: generator,
	}
}

// NewFromConfig builds every component from cfg. The embedding model and
// LLM client are created here once and reused by all runs.
func NewFromConfig(ctx context.Context, cfg *config.Config, st store.Store) (*Pipeline, error) {
	fetchOpts := []fetch.Option{
		fetch.WithTimeout(time.Duration(cfg.Fetch.TimeoutSecs) * time.Second),
		fetch.WithUserAgent(cfg.Fetch.UserAgent),
		fetch.WithMaxBodyBytes(cfg.Fetch.MaxBodyBytes),
	}
	var renderers []fetch.Renderer
	if cfg.Fetch.BrowserFallback {
		renderers = append(renderers, fetch.NewBrowserRenderer(time.Duration(cfg.Fetch.BrowserTimeout)*time.Second))
	}
	if cfg.Jina.Key != "" {
		var jinaOpts []jina.Option
		if cfg.Jina.BaseURL != "" {
			jinaOpts = append(jinaOpts, jina.WithBaseURL(cfg.Jina.BaseURL))
		}
		renderers = append(renderers, fetch.NewJinaRenderer(jina.NewClient(cfg.Jina.Key, jinaOpts...)))
	}
	if len(renderers) > 0 {
		fetchOpts = append(fetchOpts, fetch.WithRenderers(renderers...))
	}
	fetcher := fetch.New(fetchOpts...)

	var crawler *fetch.Crawler
	if cfg.Crawl.Enabled {
		crawler = fetch.NewCrawler(fetcher, fetch.CrawlOptions{
			MaxPerPurpose: cfg.Crawl.MaxSecondaryPages,
			RatePerSec:    cfg.Crawl.RatePerSec,
			RespectRobots: cfg.Crawl.RespectRobots,
			UserAgent:     cfg.Fetch.UserAgent,
		})
	}

	kb := competitor.DefaultKnowledgeBase()
	if cfg.Competitors.KnowledgeBasePath != "" {
		loaded, err := competitor.LoadKnowledgeBase(cfg.Competitors.KnowledgeBasePath)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: load knowledge base")
		}
		kb = loaded
	}

	embedModel, err := embed.NewModel(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: embedding model")
	}
	embedder := embed.NewService(embedModel,
		embed.WithMaxChars(cfg.Embed.MaxChars),
		embed.WithConcurrency(cfg.Embed.Concurrency),
		embed.WithThreshold(cfg.Embed.SearchThreshold),
	)

	ingestor, err := ingest.NewFromConfig(cfg.Ingest)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: document ingestor")
	}

	generator, err := insight.NewFromConfig(cfg)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: insight generator")
	}

	return New(cfg, st, fetcher, crawler, kb, embedder, ingestor, generator), nil
}

// Run executes the pipeline for one request. Only invalid input and run
// store failures are returned as errors; every per-site, document or model
// failure is folded into the result.
func (p *Pipeline) Run(ctx context.Context, in model.SalesInput) (*model.RunResult, error) {
	if err := ValidateInput(in); err != nil {
		return nil, err
	}
	in.CompetitorURLs = p.capCompetitors(in.CompetitorURLs)

	if secs := p.cfg.Pipeline.TimeoutSecs; secs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(secs)*time.Second)
		defer cancel()
	}

	log := zap.L().With(zap.String("product", in.ProductName), zap.String("target_url", in.TargetURL))
	log.Info("pipeline: starting run", zap.Int("competitors", len(in.CompetitorURLs)), zap.Bool("document", in.HasDocument()))

	run, err := p.store.CreateRun(ctx, in)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	result := &model.RunResult{RunID: run.ID}

	setStatus := func(status model.RunStatus) {
		if statusErr := p.store.UpdateRunStatus(ctx, run.ID, status); statusErr != nil {
			log.Warn("pipeline: failed to update status", zap.Error(statusErr))
		}
	}

	var phasesMu sync.Mutex
	trackPhase := func(name string, fn func() (*model.PhaseResult, error)) *model.PhaseResult {
		phase, phaseErr := p.store.CreatePhase(ctx, run.ID, name)
		if phaseErr != nil {
			log.Warn("pipeline: failed to create phase", zap.String("phase", name), zap.Error(phaseErr))
		}

		start := time.Now()
		phaseResult, fnErr := fn()
		duration := time.Since(start).Milliseconds()

		if phaseResult == nil {
			phaseResult = &model.PhaseResult{}
		}
		phaseResult.Name = name
		phaseResult.Duration = duration

		switch {
		case fnErr != nil:
			phaseResult.Status = model.PhaseStatusFailed
			phaseResult.Error = fnErr.Error()
			log.Warn("pipeline: phase failed",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
				zap.Error(fnErr),
			)
		case phaseResult.Status == model.PhaseStatusSkipped:
			log.Debug("pipeline: phase skipped", zap.String("phase", name))
		default:
			phaseResult.Status = model.PhaseStatusComplete
			log.Info("pipeline: phase complete",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
			)
		}

		if phase != nil {
			if completeErr := p.store.CompletePhase(ctx, phase.ID, phaseResult); completeErr != nil {
				log.Warn("pipeline: failed to complete phase", zap.String("phase", name), zap.Error(completeErr))
			}
		}
		phasesMu.Lock()
		result.Phases = append(result.Phases, *phaseResult)
		phasesMu.Unlock()
		return phaseResult
	}

	// Fetch and extract every site while the document is ingested.
	setStatus(model.RunStatusFetching)

	var (
		targetSite model.Site
		target     model.CompanyProfile
		comps      = make([]model.CompanyProfile, len(in.CompetitorURLs))
		doc        model.DocumentText
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		trackPhase(PhaseFetchTarget, func() (*model.PhaseResult, error) {
			targetSite, target = p.collect(gCtx, in.TargetURL)
			return siteResult(targetSite, target)
		})
		return nil
	})
	for i, u := range in.CompetitorURLs {
		g.Go(func() error {
			trackPhase(fmt.Sprintf("fetch_competitor_%d", i+1), func() (*model.PhaseResult, error) {
				var site model.Site
				site, comps[i] = p.collect(gCtx, u)
				return siteResult(site, comps[i])
			})
			return nil
		})
	}
	g.Go(func() error {
		trackPhase(PhaseIngest, func() (*model.PhaseResult, error) {
			if !in.HasDocument() {
				doc = model.DocumentText{Status: model.DocumentAbsent}
				return &model.PhaseResult{Status: model.PhaseStatusSkipped}, nil
			}
			doc = p.ingestor.ExtractText(gCtx, in.DocumentName, in.Document)
			pr := &model.PhaseResult{Metadata: map[string]any{
				"status":       string(doc.Status),
				"pages":        len(doc.Pages),
				"failed_pages": doc.FailedPages(),
			}}
			if !doc.HasText() {
				return pr, eris.Errorf("pipeline: document has no usable text (%s)", doc.Status)
			}
			return pr, nil
		})
		return nil
	})
	_ = g.Wait()

	setStatus(model.RunStatusAnalyzing)

	var mentions []model.MentionRecord
	trackPhase(PhaseScan, func() (*model.PhaseResult, error) {
		mentions = p.scanMentions(comps, targetSite, doc)
		return &model.PhaseResult{Metadata: map[string]any{
			"mentions": len(mentions),
		}}, nil
	})

	var (
		embeddings map[string]map[string]model.EmbeddingVector
		relevance  []model.RelevanceMatch
	)
	trackPhase(PhaseEmbed, func() (*model.PhaseResult, error) {
		var searchErr error
		embeddings, relevance, searchErr = p.embedProfiles(ctx, in, append([]model.CompanyProfile{target}, comps...))
		return &model.PhaseResult{Metadata: map[string]any{
			"profiles": len(embeddings),
			"matches":  len(relevance),
		}}, searchErr
	})

	var sc model.SalesContext
	trackPhase(PhaseAggregate, func() (*model.PhaseResult, error) {
		sc = aggregate.Assemble(target, comps, mentions, doc, in,
			aggregate.WithEmbeddings(embeddings),
			aggregate.WithRelevance(relevance),
		)
		return nil, nil
	})

	setStatus(model.RunStatusGenerating)
	trackPhase(PhaseGenerate, func() (*model.PhaseResult, error) {
		result.Report = p.generator.Generate(ctx, sc)
		pr := &model.PhaseResult{Metadata: map[string]any{
			"provider":     result.Report.Provider,
			"model":        result.Report.Model,
			"prompt_chars": result.Report.PromptChars,
			"degraded":     result.Report.Degraded,
		}}
		if result.Report.Degraded {
			return pr, eris.New(result.Report.Error)
		}
		return pr, nil
	})

	result.Context = sc
	// The result outlives the request; drop the upload before it is stored.
	result.Context.Inputs.Document = nil

	if err := p.store.UpdateRunResult(ctx, run.ID, result); err != nil {
		log.Warn("pipeline: failed to save run result", zap.Error(err))
	}

	log.Info("pipeline: run complete",
		zap.String("run_id", run.ID),
		zap.Bool("degraded", result.Report.Degraded),
		zap.Int("mentions", len(mentions)),
	)
	return result, nil
}

// collect fetches a homepage, crawls its secondary pages and extracts the
// profile.
func (p *Pipeline) collect(ctx context.Context, rawURL string) (model.Site, model.CompanyProfile) {
	home := p.fetcher.Fetch(ctx, rawURL)
	site := model.Site{Home: home}
	if p.crawler != nil && home.OK() {
		site = p.crawler.Crawl(ctx, home)
	}
	return site, extract.BuildProfile(site, p.kb)
}

func siteResult(site model.Site, profile model.CompanyProfile) (*model.PhaseResult, error) {
	pr := &model.PhaseResult{Metadata: map[string]any{
		"url":          profile.URL,
		"fetch_status": string(site.Home.FetchStatus),
		"pages":        len(profile.SourceURLs),
		"fields_found": profile.FoundCount(),
	}}
	if !site.Home.OK() {
		return pr, eris.Errorf("pipeline: fetch %s: %s", site.Home.URL, site.Home.FetchStatus)
	}
	return pr, nil
}

// scanMentions looks for the competitors in the target's own copy and the
// document text.
func (p *Pipeline) scanMentions(comps []model.CompanyProfile, targetSite model.Site, doc model.DocumentText) []model.MentionRecord {
	if len(comps) == 0 {
		return []model.MentionRecord{}
	}
	groups := make([]competitor.VariantGroup, 0, len(comps))
	for _, c := range comps {
		groups = append(groups, competitor.GroupForProfile(c, p.kb))
	}
	scanner := competitor.NewScanner(groups, p.cfg.Scan.ContextChars)
	return scanner.Scan(mentionSources(targetSite, doc)...)
}

// mentionSources is the target homepage, its mentions pages (partners,
// integrations, comparisons) and the document text.
func mentionSources(targetSite model.Site, doc model.DocumentText) []competitor.Source {
	var sources []competitor.Source
	if targetSite.Home.OK() {
		sources = append(sources, competitor.Source{Name: targetSite.Home.URL, Text: targetSite.Home.ParsedText})
	}
	for _, page := range targetSite.PagesFor(model.PurposeMentions) {
		sources = append(sources, competitor.Source{Name: page.URL, Text: page.ParsedText})
	}
	if doc.HasText() {
		sources = append(sources, competitor.Source{Name: model.DocumentSource, Text: doc.Text})
	}
	return sources
}

// embedProfiles embeds the sections of every reachable profile and ranks
// them against the product category.
func (p *Pipeline) embedProfiles(ctx context.Context, in model.SalesInput, profiles []model.CompanyProfile) (map[string]map[string]model.EmbeddingVector, []model.RelevanceMatch, error) {
	embeddings := map[string]map[string]model.EmbeddingVector{}
	var candidates []embed.Candidate
	for _, prof := range profiles {
		if prof.FetchStatus != model.FetchStatusOK {
			continue
		}
		sections := embed.ProfileSections(prof)
		vectors := p.embedder.Embed(ctx, sections)
		if len(vectors) == 0 {
			continue
		}
		embeddings[prof.URL] = vectors
		candidates = append(candidates, embed.Candidates(prof.URL, sections, vectors)...)
	}

	matches, err := p.embedder.Search(ctx, searchQuery(in), candidates, 0)
	if err != nil {
		return embeddings, []model.RelevanceMatch{}, err
	}
	return embeddings, matches, nil
}

func searchQuery(in model.SalesInput) string {
	if in.ProductCategory != "" {
		return in.ProductCategory
	}
	return in.ProductName
}

func (p *Pipeline) capCompetitors(urls []string) []string {
	maxComps := p.cfg.Pipeline.MaxCompetitors
	if maxComps <= 0 || len(urls) <= maxComps {
		return urls
	}
	zap.L().Warn("pipeline: dropping competitors over the limit",
		zap.Int("given", len(urls)),
		zap.Int("max", maxComps),
	)
	return urls[:maxComps]
}
