package model

import "time"

// FetchStatus describes the outcome of a single page fetch.
type FetchStatus string

const (
	FetchStatusOK           FetchStatus = "ok"
	FetchStatusTimeout      FetchStatus = "timeout"
	FetchStatusHTTPError    FetchStatus = "http_error"
	FetchStatusParseError   FetchStatus = "parse_error"
	FetchStatusNetworkError FetchStatus = "network_error"
	FetchStatusInvalidURL   FetchStatus = "invalid_url"
)

// PagePurpose tags why a page was fetched.
type PagePurpose string

const (
	PurposeHomepage   PagePurpose = "homepage"
	PurposeLeadership PagePurpose = "leadership"
	PurposeCareers    PagePurpose = "careers"
	PurposeInvestors  PagePurpose = "investors"
	PurposePress      PagePurpose = "press"
	PurposeMentions   PagePurpose = "mentions"
)

// SecondaryPurposes returns the purposes the crawler looks for beyond the homepage,
// in crawl order.
func SecondaryPurposes() []PagePurpose {
	return []PagePurpose{
		PurposeLeadership,
		PurposeCareers,
		PurposeInvestors,
		PurposePress,
		PurposeMentions,
	}
}

// PageDocument is the result of fetching one URL. It is never mutated after the
// fetcher returns it.
type PageDocument struct {
	URL         string      `json:"url"`
	FinalURL    string      `json:"final_url,omitempty"`
	Title       string      `json:"title,omitempty"`
	RawHTML     string      `json:"-"`
	ParsedText  string      `json:"parsed_text,omitempty"`
	FetchStatus FetchStatus `json:"fetch_status"`
	StatusCode  int         `json:"status_code,omitempty"`
	Error       string      `json:"error,omitempty"`
	BlockType   string      `json:"block_type,omitempty"`
	FetchedVia  string      `json:"fetched_via,omitempty"` // "http", "chromedp", "jina"
	FetchedAt   time.Time   `json:"fetched_at"`
}

// OK reports whether the document carries usable content.
func (d PageDocument) OK() bool {
	return d.FetchStatus == FetchStatusOK && d.RawHTML != ""
}

// Site groups a homepage with the secondary pages discovered from it.
type Site struct {
	Home  PageDocument                   `json:"home"`
	Pages map[PagePurpose][]PageDocument `json:"pages,omitempty"`
}

// PagesFor returns the fetched secondary pages for a purpose, skipping failures.
func (s Site) PagesFor(p PagePurpose) []PageDocument {
	var out []PageDocument
	for _, d := range s.Pages[p] {
		if d.OK() {
			out = append(out, d)
		}
	}
	return out
}
