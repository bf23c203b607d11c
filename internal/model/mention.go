package model

// DocumentSource is the SourceDocument value for mentions found in an uploaded document.
const DocumentSource = "document"

// MentionRecord is one occurrence of a competitor name in a scanned text.
type MentionRecord struct {
	SourceDocument string `json:"source_document"`
	CompetitorName string `json:"competitor_name"`
	MatchedVariant string `json:"matched_variant"`
	MatchedText    string `json:"matched_text"`
	ContextSnippet string `json:"context_snippet"`
	Position       int    `json:"position"` // byte offset in the scanned text
}

// MentionCounts tallies mentions per competitor name.
func MentionCounts(mentions []MentionRecord) map[string]int {
	counts := make(map[string]int)
	for _, m := range mentions {
		counts[m.CompetitorName]++
	}
	return counts
}
