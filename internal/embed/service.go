package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/sales-assistant/internal/model"
)

// Defaults for Service.
const (
	DefaultMaxChars    = 5000
	DefaultConcurrency = 4
	DefaultThreshold   = 0.4
)

// Relevance bucket thresholds.
const (
	HighRelevance   = 0.65
	MediumRelevance = 0.5
)

const snippetChars = 200

// Service embeds profile sections with a shared Model.
type Service struct {
	model       Model
	maxChars    int
	concurrency int
	threshold   float64
}

// Option configures a Service.
type Option func(*Service)

// WithMaxChars sets the per-section truncation length in runes.
func WithMaxChars(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxChars = n
		}
	}
}

// WithConcurrency sets how many sections are embedded at once.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithThreshold sets the default minimum score for Search.
func WithThreshold(t float64) Option {
	return func(s *Service) {
		if t > 0 {
			s.threshold = t
		}
	}
}

// NewService returns a Service backed by m.
func NewService(m Model, opts ...Option) *Service {
	s := &Service{
		model:       m,
		maxChars:    DefaultMaxChars,
		concurrency: DefaultConcurrency,
		threshold:   DefaultThreshold,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Model returns the underlying embedding model.
func (s *Service) Model() Model { return s.model }

// Embed embeds every non-blank section. A section whose embedding fails is
// logged and left out of the result.
func (s *Service) Embed(ctx context.Context, sections map[string]string) map[string]model.EmbeddingVector {
	out := make(map[string]model.EmbeddingVector, len(sections))
	var mu sync.Mutex

	names := make([]string, 0, len(sections))
	for name := range sections {
		names = append(names, name)
	}
	sort.Strings(names)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, name := range names {
		text := strings.TrimSpace(sections[name])
		if text == "" {
			continue
		}
		text = truncateRunes(text, s.maxChars)
		g.Go(func() error {
			vec, err := s.model.Embed(gctx, text)
			if err != nil {
				zap.L().Warn("embed: section failed",
					zap.String("section", name),
					zap.String("model", s.model.Name()),
					zap.Error(err),
				)
				return nil
			}
			mu.Lock()
			out[name] = model.EmbeddingVector{
				SectionName:    name,
				Vector:         vec,
				SourceTextHash: HashText(text),
				Model:          s.model.Name(),
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	zap.L().Debug("embed: sections embedded",
		zap.Int("requested", len(sections)),
		zap.Int("embedded", len(out)),
	)
	return out
}

// Candidate is one embedded section that Search can rank.
type Candidate struct {
	ProfileURL string
	Section    string
	Text       string
	Vector     []float32
}

// Candidates pairs a profile's section texts with their vectors, ordered by
// section name. Sections without a vector are skipped.
func Candidates(profileURL string, sections map[string]string, vectors map[string]model.EmbeddingVector) []Candidate {
	out := make([]Candidate, 0, len(vectors))
	for name, v := range vectors {
		out = append(out, Candidate{
			ProfileURL: profileURL,
			Section:    name,
			Text:       sections[name],
			Vector:     v.Vector,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Section < out[j].Section })
	return out
}

// Search embeds query and returns the candidates scoring at least threshold,
// best first. A threshold of zero or less uses the service default.
func (s *Service) Search(ctx context.Context, query string, candidates []Candidate, threshold float64) ([]model.RelevanceMatch, error) {
	if threshold <= 0 {
		threshold = s.threshold
	}
	query = strings.TrimSpace(query)
	if query == "" || len(candidates) == 0 {
		return []model.RelevanceMatch{}, nil
	}
	qv, err := s.model.Embed(ctx, truncateRunes(query, s.maxChars))
	if err != nil {
		return nil, eris.Wrap(err, "embed: search query")
	}

	matches := []model.RelevanceMatch{}
	for _, c := range candidates {
		score := CosineSimilarity(qv, c.Vector)
		if score < threshold {
			continue
		}
		matches = append(matches, model.RelevanceMatch{
			ProfileURL: c.ProfileURL,
			Section:    c.Section,
			Score:      score,
			Relevance:  Bucketize(score),
			Snippet:    Snippet(c.Text),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if matches[i].ProfileURL != matches[j].ProfileURL {
			return matches[i].ProfileURL < matches[j].ProfileURL
		}
		return matches[i].Section < matches[j].Section
	})
	return matches, nil
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when
// the lengths differ or either vector is zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Bucketize maps a similarity score to a relevance bucket.
func Bucketize(score float64) model.Relevance {
	switch {
	case score >= HighRelevance:
		return model.RelevanceHigh
	case score >= MediumRelevance:
		return model.RelevanceMedium
	default:
		return model.RelevanceLow
	}
}

// Snippet returns the first three sentences of text longer than ten
// characters, or its first 200 characters when there are none.
func Snippet(text string) string {
	var kept []string
	for _, s := range strings.Split(text, ".") {
		s = strings.Join(strings.Fields(s), " ")
		if len(s) > 10 {
			kept = append(kept, s)
		}
		if len(kept) == 3 {
			break
		}
	}
	if len(kept) > 0 {
		return strings.Join(kept, ". ")
	}
	return truncateRunes(strings.TrimSpace(text), snippetChars)
}

// HashText returns the hex SHA-256 of text.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// ProfileSections returns the texts embedded for a profile: its raw sections
// plus a combined description and about section.
func ProfileSections(p model.CompanyProfile) map[string]string {
	out := make(map[string]string, len(p.RawSections)+1)
	for k, v := range p.RawSections {
		out[k] = v
	}
	combined := strings.TrimSpace(p.RawSections[model.SectionDescription] + " " + p.RawSections[model.SectionAbout])
	if combined != "" {
		out[model.SectionCombined] = combined
	}
	return out
}

func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for c := 0; c < n; c++ {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return s[:i]
}
