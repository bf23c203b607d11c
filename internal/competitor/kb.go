// Package competitor holds the static competitor knowledge base and the
// scanner that finds competitor mentions in free text.
package competitor

import (
	_ "embed"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed knowledge_base.yaml
var defaultKnowledgeBase []byte

// Entry describes one known company.
type Entry struct {
	Name            string   `yaml:"name"`
	Aliases         []string `yaml:"aliases"`
	Domains         []string `yaml:"domains"`
	Differentiators string   `yaml:"differentiators"`
}

// KnowledgeBase is an immutable table of known companies. It is loaded once
// per process and shared read-only.
type KnowledgeBase struct {
	entries []Entry
}

// LoadKnowledgeBase reads a knowledge base from path, or the embedded
// default when path is empty.
func LoadKnowledgeBase(path string) (*KnowledgeBase, error) {
	if path == "" {
		return ParseKnowledgeBase(defaultKnowledgeBase)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "competitor: read knowledge base %s", path)
	}
	return ParseKnowledgeBase(data)
}

// DefaultKnowledgeBase returns the embedded knowledge base.
func DefaultKnowledgeBase() *KnowledgeBase {
	kb, err := ParseKnowledgeBase(defaultKnowledgeBase)
	if err != nil {
		panic(err)
	}
	return kb
}

// ParseKnowledgeBase parses the YAML knowledge base format.
func ParseKnowledgeBase(data []byte) (*KnowledgeBase, error) {
	var wrapper struct {
		KnowledgeBase struct {
			Competitors []Entry `yaml:"competitors"`
		} `yaml:"knowledge_base"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "competitor: parse knowledge base")
	}

	kb := &KnowledgeBase{}
	for i, e := range wrapper.KnowledgeBase.Competitors {
		e.Name = strings.TrimSpace(e.Name)
		if e.Name == "" {
			return nil, eris.Errorf("competitor: knowledge base entry %d has no name", i)
		}
		e.Differentiators = strings.TrimSpace(e.Differentiators)
		kb.entries = append(kb.entries, e)
	}
	return kb, nil
}

// Len returns the number of entries.
func (kb *KnowledgeBase) Len() int {
	if kb == nil {
		return 0
	}
	return len(kb.entries)
}

// Lookup finds the entry for a company name or domain. An entry matches when
// its name appears as a whole word in name, or when name equals one of its
// aliases or domains.
func (kb *KnowledgeBase) Lookup(name string) (Entry, bool) {
	if kb == nil {
		return Entry{}, false
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Entry{}, false
	}
	lower := strings.ToLower(name)
	host := strings.TrimPrefix(lower, "www.")
	for _, e := range kb.entries {
		if containsWord(lower, strings.ToLower(e.Name)) {
			return e, true
		}
		for _, a := range e.Aliases {
			if strings.EqualFold(a, name) {
				return e, true
			}
		}
		for _, d := range e.Domains {
			if strings.EqualFold(d, host) {
				return e, true
			}
		}
	}
	return Entry{}, false
}

// Differentiators returns the blurb for name, or "" when unknown.
func (kb *KnowledgeBase) Differentiators(name string) string {
	e, ok := kb.Lookup(name)
	if !ok {
		return ""
	}
	return e.Differentiators
}

// Aliases returns the known aliases for name.
func (kb *KnowledgeBase) Aliases(name string) []string {
	e, ok := kb.Lookup(name)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(e.Aliases)+1)
	if !strings.EqualFold(e.Name, name) {
		out = append(out, e.Name)
	}
	return append(out, e.Aliases...)
}

// containsWord reports whether word occurs in s on word boundaries. Both
// arguments are expected in the same case.
func containsWord(s, word string) bool {
	if word == "" {
		return false
	}
	for from := 0; from <= len(s)-len(word); {
		i := strings.Index(s[from:], word)
		if i < 0 {
			return false
		}
		start := from + i
		if isBoundary(s, start, start+len(word)) {
			return true
		}
		from = start + 1
	}
	return false
}
