// Package embed computes section embeddings and ranks sections against a
// query by cosine similarity.
package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/google/generative-ai-go/genai"
	"github.com/rotisserie/eris"
	"google.golang.org/api/option"

	"github.com/sells-group/sales-assistant/internal/config"
	"github.com/sells-group/sales-assistant/pkg/jina"
)

// Model turns text into a fixed-size vector. Implementations must be safe
// for concurrent use.
type Model interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Name() string
	Dimensions() int
}

// DefaultDimensions is the vector size of the local hashing model.
const DefaultDimensions = 384

// NewModel builds the embedding model selected by cfg.Embed.Provider.
func NewModel(ctx context.Context, cfg *config.Config) (Model, error) {
	switch cfg.Embed.Provider {
	case "", "local":
		return NewHashingModel(cfg.Embed.Dimensions), nil
	case "gemini":
		return NewGeminiModel(ctx, cfg.Gemini.Key, cfg.Gemini.EmbeddingModel)
	case "jina":
		if cfg.Jina.Key == "" {
			return nil, eris.New("embed: jina provider requires jina.key")
		}
		opts := []jina.Option{}
		if cfg.Jina.EmbedBaseURL != "" {
			opts = append(opts, jina.WithEmbedBaseURL(cfg.Jina.EmbedBaseURL))
		}
		return NewJinaModel(jina.NewClient(cfg.Jina.Key, opts...), cfg.Jina.EmbeddingModel, 0), nil
	default:
		return nil, eris.Errorf("embed: unknown provider %q", cfg.Embed.Provider)
	}
}

// HashingModel is a local, deterministic bag-of-words embedding. Each token
// (and each adjacent token pair) is hashed into one signed bucket and the
// result is L2-normalised.
type HashingModel struct {
	dims int
}

// NewHashingModel returns a hashing model with dims buckets.
func NewHashingModel(dims int) *HashingModel {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &HashingModel{dims: dims}
}

// Name implements Model.
func (m *HashingModel) Name() string { return "local-hashing" }

// Dimensions implements Model.
func (m *HashingModel) Dimensions() int { return m.dims }

// Embed implements Model. Text without tokens yields the zero vector.
func (m *HashingModel) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "embed: hashing")
	}
	vec := make([]float64, m.dims)
	tokens := tokenize(text)
	for i, tok := range tokens {
		m.add(vec, tok, 1)
		if i > 0 {
			m.add(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}
	return normalize(vec), nil
}

func (m *HashingModel) add(vec []float64, feature string, weight float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(m.dims))
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func normalize(vec []float64) []float32 {
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	out := make([]float32, len(vec))
	if norm == 0 {
		return out
	}
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}

// GeminiModel embeds text with a Google Gemini embedding model.
type GeminiModel struct {
	client *genai.Client
	model  string
}

// NewGeminiModel creates a Gemini embedding model. Close releases the client.
func NewGeminiModel(ctx context.Context, apiKey, model string) (*GeminiModel, error) {
	if apiKey == "" {
		return nil, eris.New("embed: gemini provider requires gemini.key")
	}
	if model == "" {
		model = "text-embedding-004"
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, eris.Wrap(err, "embed: create gemini client")
	}
	return &GeminiModel{client: client, model: model}, nil
}

// Name implements Model.
func (m *GeminiModel) Name() string { return m.model }

// Dimensions implements Model.
func (m *GeminiModel) Dimensions() int { return 768 }

// Embed implements Model.
func (m *GeminiModel) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := m.client.EmbeddingModel(m.model).EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, eris.Wrap(err, "embed: gemini embed content")
	}
	if res == nil || res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, eris.New("embed: gemini returned no embedding")
	}
	return res.Embedding.Values, nil
}

// Close releases the underlying client.
func (m *GeminiModel) Close() error {
	return m.client.Close()
}

// JinaModel embeds text with the Jina embeddings API.
type JinaModel struct {
	client jina.Client
	model  string
	dims   int
}

// NewJinaModel wraps a Jina client.
func NewJinaModel(client jina.Client, model string, dims int) *JinaModel {
	if model == "" {
		model = "jina-embeddings-v3"
	}
	if dims <= 0 {
		dims = 1024
	}
	return &JinaModel{client: client, model: model, dims: dims}
}

// Name implements Model.
func (m *JinaModel) Name() string { return m.model }

// Dimensions implements Model.
func (m *JinaModel) Dimensions() int { return m.dims }

// Embed implements Model.
func (m *JinaModel) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := m.client.Embed(ctx, jina.EmbedRequest{
		Model: m.model,
		Input: []string{text},
		Task:  "text-matching",
	})
	if err != nil {
		return nil, eris.Wrap(err, "embed: jina")
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, eris.New("embed: jina returned no embedding")
	}
	return resp.Data[0].Embedding, nil
}
