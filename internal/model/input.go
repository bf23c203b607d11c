package model

import "strings"

// SalesInput is the per-request input supplied by a sales rep.
type SalesInput struct {
	ProductName      string   `json:"product_name" validate:"required,max=200"`
	TargetURL        string   `json:"target_url" validate:"required,max=2048"`
	ProductCategory  string   `json:"product_category" validate:"max=200"`
	CompetitorURLs   []string `json:"competitor_urls" validate:"max=10,dive,required,max=2048"`
	ValueProposition string   `json:"value_proposition" validate:"max=4000"`
	TargetCustomer   string   `json:"target_customer" validate:"max=1000"`
	DocumentName     string   `json:"document_name,omitempty"`
	Document         []byte   `json:"-"`
}

// HasDocument reports whether a product document was supplied.
func (in SalesInput) HasDocument() bool {
	return len(in.Document) > 0
}

// ParseCompetitorURLs splits a comma-separated competitor list, trimming blanks
// and dropping empty entries. Order is preserved; duplicates are removed.
func ParseCompetitorURLs(raw string) []string {
	return CleanCompetitorURLs(strings.Split(raw, ","))
}

// CleanCompetitorURLs trims each URL and drops blanks and repeats, keeping
// first-seen order. The result is never nil.
func CleanCompetitorURLs(urls []string) []string {
	out := []string{}
	seen := make(map[string]bool)
	for _, raw := range urls {
		u := strings.TrimSpace(raw)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}
