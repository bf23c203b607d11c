package model

// DocumentStatus describes the outcome of PDF text extraction.
type DocumentStatus string

const (
	DocumentOK      DocumentStatus = "ok"      // every page produced text or parsed cleanly
	DocumentPartial DocumentStatus = "partial" // some pages failed
	DocumentEmpty   DocumentStatus = "empty"   // pages parsed but contained no text
	DocumentNoText  DocumentStatus = "no_text" // nothing could be extracted
	DocumentAbsent  DocumentStatus = "absent"  // no document was supplied
)

// PageText is the extraction result for one PDF page.
type PageText struct {
	Number int    `json:"number"` // 1-based
	Text   string `json:"text"`
	Error  string `json:"error,omitempty"`
}

// DocumentText is the text extracted from an uploaded product document.
type DocumentText struct {
	Name   string         `json:"name,omitempty"`
	Text   string         `json:"text"`
	Pages  []PageText     `json:"pages,omitempty"`
	Status DocumentStatus `json:"status"`
}

// HasText reports whether any text was extracted.
func (d DocumentText) HasText() bool {
	return d.Status == DocumentOK || d.Status == DocumentPartial
}

// FailedPages returns the 1-based numbers of pages that failed.
func (d DocumentText) FailedPages() []int {
	var out []int
	for _, p := range d.Pages {
		if p.Error != "" {
			out = append(out, p.Number)
		}
	}
	return out
}
