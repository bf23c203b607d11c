package model

import "time"

// SalesContext is everything the insight generator needs for one request.
// It is assembled once and treated as read-only afterwards.
type SalesContext struct {
	Inputs      SalesInput                            `json:"inputs"`
	Target      CompanyProfile                        `json:"target"`
	Competitors []CompanyProfile                      `json:"competitors"` // index 0 is the primary competitor
	Mentions    []MentionRecord                       `json:"mentions"`
	Document    DocumentText                          `json:"document"`
	Embeddings  map[string]map[string]EmbeddingVector `json:"-"` // profile URL -> section -> vector
	Relevance   []RelevanceMatch                      `json:"relevance"`
	AssembledAt time.Time                             `json:"assembled_at"`
}

// PrimaryCompetitor returns the first competitor profile, if any.
func (c SalesContext) PrimaryCompetitor() (CompanyProfile, bool) {
	if len(c.Competitors) == 0 {
		return CompanyProfile{}, false
	}
	return c.Competitors[0], true
}
