package competitor

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/sells-group/sales-assistant/internal/model"
)

// DefaultContextChars is the context window on each side of a mention.
const DefaultContextChars = 100

const ellipsis = "…"

// Source is a named text to scan.
type Source struct {
	Name string
	Text string
}

type matcher struct {
	variant string
	group   int
	re      *regexp.Regexp
}

// Scanner finds mentions of a fixed set of competitors. It is immutable after
// construction and safe for concurrent use.
type Scanner struct {
	groups       []VariantGroup
	matchers     []matcher
	contextChars int
}

// NewScanner compiles the variant groups. A variant listed by several groups
// belongs to the group whose name equals it, otherwise to the first group
// listing it.
func NewScanner(groups []VariantGroup, contextChars int) *Scanner {
	if contextChars <= 0 {
		contextChars = DefaultContextChars
	}
	s := &Scanner{groups: groups, contextChars: contextChars}

	owner := map[string]int{}
	var order []string
	for gi, g := range groups {
		for _, v := range g.Variants {
			key := strings.ToLower(v)
			if utf8.RuneCountInString(v) < minVariantRunes {
				continue
			}
			prev, seen := owner[key]
			switch {
			case !seen:
				owner[key] = gi
				order = append(order, v)
			case !strings.EqualFold(groups[prev].Name, v) && strings.EqualFold(g.Name, v):
				owner[key] = gi
			}
		}
	}
	for _, v := range order {
		s.matchers = append(s.matchers, matcher{
			variant: v,
			group:   owner[strings.ToLower(v)],
			re:      regexp.MustCompile(`(?i)` + regexp.QuoteMeta(v)),
		})
	}
	return s
}

// Groups returns the variant groups the scanner was built with.
func (s *Scanner) Groups() []VariantGroup { return s.groups }

type candidate struct {
	start, end int
	m          int
}

// FindMentions returns every whole-word occurrence of a competitor variant
// in text, ordered by position. Overlapping candidates resolve to the
// earliest start and then the longest span, so "Acme" is never counted
// again inside an accepted "Acme Corp". The result is never nil.
func (s *Scanner) FindMentions(source, text string) []model.MentionRecord {
	out := []model.MentionRecord{}
	if text == "" || len(s.matchers) == 0 {
		return out
	}

	var cands []candidate
	for mi, m := range s.matchers {
		for _, loc := range wordMatches(m.re, text) {
			cands = append(cands, candidate{start: loc[0], end: loc[1], m: mi})
		}
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].start != cands[j].start {
			return cands[i].start < cands[j].start
		}
		return cands[i].end-cands[i].start > cands[j].end-cands[j].start
	})

	lastEnd := 0
	for _, c := range cands {
		if c.start < lastEnd {
			continue
		}
		lastEnd = c.end
		m := s.matchers[c.m]
		out = append(out, model.MentionRecord{
			SourceDocument: source,
			CompetitorName: s.groups[m.group].Name,
			MatchedVariant: m.variant,
			MatchedText:    text[c.start:c.end],
			ContextSnippet: s.snippet(text, c.start, c.end),
			Position:       c.start,
		})
	}
	return out
}

// wordMatches returns the whole-word matches of re in text. A match rejected
// for its boundaries resumes the search one rune later, so "Go Go" is still
// found in "xGo Go Go".
func wordMatches(re *regexp.Regexp, text string) [][2]int {
	var out [][2]int
	for from := 0; from < len(text); {
		loc := re.FindStringIndex(text[from:])
		if loc == nil {
			break
		}
		start, end := from+loc[0], from+loc[1]
		if isBoundary(text, start, end) {
			out = append(out, [2]int{start, end})
			from = end
			continue
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		from = start + size
	}
	return out
}

// Scan runs FindMentions over each source in order.
func (s *Scanner) Scan(sources ...Source) []model.MentionRecord {
	out := []model.MentionRecord{}
	for _, src := range sources {
		found := s.FindMentions(src.Name, src.Text)
		out = append(out, found...)
		if len(found) > 0 {
			zap.L().Debug("competitor: mentions found",
				zap.String("source", src.Name),
				zap.Int("count", len(found)),
			)
		}
	}
	return out
}

// snippet returns the match with contextChars runes on either side,
// whitespace collapsed and truncation marked with an ellipsis.
func (s *Scanner) snippet(text string, start, end int) string {
	before, cutBefore := lastRunes(text[:start], s.contextChars)
	after, cutAfter := firstRunes(text[end:], s.contextChars)

	var b strings.Builder
	if cutBefore {
		b.WriteString(ellipsis)
	}
	b.WriteString(collapse(before + text[start:end] + after))
	if cutAfter {
		b.WriteString(ellipsis)
	}
	return b.String()
}

func lastRunes(s string, n int) (string, bool) {
	i := len(s)
	for c := 0; c < n && i > 0; c++ {
		_, size := utf8.DecodeLastRuneInString(s[:i])
		i -= size
	}
	return s[i:], i > 0
}

func firstRunes(s string, n int) (string, bool) {
	i := 0
	for c := 0; c < n && i < len(s); c++ {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return s[:i], i < len(s)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// isBoundary reports whether text[start:end] is not part of a longer word.
// Edges of the span that are not word characters need no boundary.
func isBoundary(text string, start, end int) bool {
	if start > 0 {
		first, _ := utf8.DecodeRuneInString(text[start:])
		prev, _ := utf8.DecodeLastRuneInString(text[:start])
		if isWordRune(first) && isWordRune(prev) {
			return false
		}
	}
	if end < len(text) {
		last, _ := utf8.DecodeLastRuneInString(text[:end])
		next, _ := utf8.DecodeRuneInString(text[end:])
		if isWordRune(last) && isWordRune(next) {
			return false
		}
	}
	return true
}
