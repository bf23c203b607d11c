package model

import "strings"

// NotFound is the explicit marker carried by fields no strategy could fill.
const NotFound = "not found"

// FieldKind names an extractable company attribute.
type FieldKind string

const (
	FieldCompanyName   FieldKind = "company_name"
	FieldDescription   FieldKind = "description"
	FieldFeatures      FieldKind = "features"
	FieldLeadership    FieldKind = "leadership_info"
	FieldPressReleases FieldKind = "press_releases"
	FieldFinancialInfo FieldKind = "financial_info"
	FieldJobPostings   FieldKind = "job_postings"
)

// AllFieldKinds returns every extractable field in profile order.
func AllFieldKinds() []FieldKind {
	return []FieldKind{
		FieldCompanyName,
		FieldDescription,
		FieldFeatures,
		FieldLeadership,
		FieldPressReleases,
		FieldFinancialInfo,
		FieldJobPostings,
	}
}

// IsList reports whether the field holds an ordered list of items.
func (k FieldKind) IsList() bool {
	switch k {
	case FieldFeatures, FieldLeadership, FieldPressReleases, FieldJobPostings:
		return true
	}
	return false
}

// FieldValue is the result of extracting one field. Scalar fields use Value,
// list fields use Items (Value then holds the items joined by newlines).
type FieldValue struct {
	Value      string   `json:"value"`
	Items      []string `json:"items,omitempty"`
	Found      bool     `json:"found"`
	Source     string   `json:"source,omitempty"`     // strategy that produced the value
	SourceURL  string   `json:"source_url,omitempty"` // page the value came from
	Confidence float64  `json:"confidence,omitempty"`
}

// Missing returns a not-found field value.
func Missing() FieldValue {
	return FieldValue{Value: NotFound}
}

// Scalar returns a found scalar value.
func Scalar(value, source string, confidence float64) FieldValue {
	return FieldValue{Value: value, Found: true, Source: source, Confidence: confidence}
}

// List returns a found list value.
func List(items []string, source string, confidence float64) FieldValue {
	return FieldValue{
		Value:      strings.Join(items, "\n"),
		Items:      items,
		Found:      true,
		Source:     source,
		Confidence: confidence,
	}
}

// Text returns the value or the not-found marker.
func (f FieldValue) Text() string {
	if !f.Found || f.Value == "" {
		return NotFound
	}
	return f.Value
}
