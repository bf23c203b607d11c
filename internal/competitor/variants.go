package competitor

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/sales-assistant/internal/model"
)

// legalSuffixes lists legal entity suffixes stripped from names, longest
// spellings first so "Corporation" wins over "Corp".
var legalSuffixes = []string{
	" INCORPORATED", " CORPORATION", " LIMITED",
	" L.L.C.", " L.L.C", " L.L.P.", " L.L.P", " P.L.C.",
	" PLLC", " INC.", " CORP.", " LTD.", " CO.", " GMBH", " S.A.", " AG",
	" LLC", " LLP", " PLC", " INC", " CORP", " LTD", " CO",
}

// addedSuffixes are appended to suffix-less names so mentions such as
// "Acme Inc." match over their full span.
var addedSuffixes = []string{" Inc.", " Inc", " Corp.", " Corp", " Corporation", " LLC", " Ltd"}

var parenRe = regexp.MustCompile(`\s*\([^)]*\)`)

// minVariantRunes is the shortest variant worth matching.
const minVariantRunes = 2

// VariantGroup is the set of spellings that all refer to one competitor.
type VariantGroup struct {
	Name     string   `json:"name"`
	Variants []string `json:"variants"`
}

// NewGroup builds the variant group for a competitor. extra names (such as
// one derived from the domain) contribute variants too; knowledge base
// aliases are added when kb is non-nil.
func NewGroup(name string, kb *KnowledgeBase, extra ...string) VariantGroup {
	name = collapse(name)
	g := VariantGroup{Name: name}

	seen := map[string]bool{}
	add := func(v string) {
		v = collapse(v)
		key := strings.ToLower(v)
		if utf8.RuneCountInString(v) < minVariantRunes || seen[key] {
			return
		}
		seen[key] = true
		g.Variants = append(g.Variants, v)
	}

	for _, n := range append([]string{name}, extra...) {
		for _, v := range Variants(n) {
			add(v)
		}
		if kb != nil {
			for _, a := range kb.Aliases(n) {
				add(a)
			}
			for _, a := range kb.Aliases(StripLegalSuffix(n)) {
				add(a)
			}
		}
	}
	return g
}

// Variants expands a company name into the spellings it is commonly written
// as: the name itself, without a parenthetical, without a legal suffix,
// with common suffixes added, without spaces and without ".com".
func Variants(name string) []string {
	canonical := collapse(name)
	if canonical == "" {
		return nil
	}
	noParen := collapse(parenRe.ReplaceAllString(canonical, ""))
	stripped := StripLegalSuffix(noParen)

	var out []string
	out = append(out, canonical, noParen, stripped)
	if stripped == noParen && stripped != "" && !strings.Contains(stripped, ".") {
		for _, s := range addedSuffixes {
			out = append(out, stripped+s)
		}
	}
	for _, v := range []string{canonical, noParen, stripped} {
		if strings.Contains(v, " ") {
			out = append(out, strings.ReplaceAll(v, " ", ""))
		}
		if lower := strings.ToLower(v); strings.HasSuffix(lower, ".com") {
			out = append(out, v[:len(v)-len(".com")])
		}
	}

	seen := map[string]bool{}
	variants := out[:0]
	for _, v := range out {
		key := strings.ToLower(v)
		if utf8.RuneCountInString(v) < minVariantRunes || seen[key] {
			continue
		}
		seen[key] = true
		variants = append(variants, v)
	}
	return variants
}

// StripLegalSuffix removes one trailing legal entity suffix and any trailing
// comma, keeping the original casing of the rest.
func StripLegalSuffix(name string) string {
	name = collapse(name)
	for _, suffix := range legalSuffixes {
		cut := len(name) - len(suffix)
		if cut > 0 && strings.EqualFold(name[cut:], suffix) {
			return strings.TrimRight(name[:cut], " ,")
		}
	}
	return name
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// GroupForProfile builds the variant group for an extracted company profile,
// adding spellings derived from its domain.
func GroupForProfile(p model.CompanyProfile, kb *KnowledgeBase) VariantGroup {
	var extra []string
	if p.Domain != "" {
		extra = append(extra, p.Domain)
		if label := strings.SplitN(p.Domain, ".", 2)[0]; utf8.RuneCountInString(label) >= 3 {
			extra = append(extra, label)
		}
	}
	return NewGroup(p.DisplayName(), kb, extra...)
}
