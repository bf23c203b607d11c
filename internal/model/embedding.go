package model

// EmbeddingVector is the embedding of one profile section.
type EmbeddingVector struct {
	SectionName    string    `json:"section_name"`
	Vector         []float32 `json:"vector"`
	SourceTextHash string    `json:"source_text_hash"`
	Model          string    `json:"model"`
}

// Relevance buckets for semantic matches.
type Relevance string

const (
	RelevanceHigh   Relevance = "high"
	RelevanceMedium Relevance = "medium"
	RelevanceLow    Relevance = "low"
)

// RelevanceMatch is a profile section that scored above the search threshold.
type RelevanceMatch struct {
	ProfileURL string    `json:"profile_url"`
	Section    string    `json:"section"`
	Score      float64   `json:"score"`
	Relevance  Relevance `json:"relevance"`
	Snippet    string    `json:"snippet"`
}
