package extract

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

var organizationTypes = map[string]bool{
	"organization":  true,
	"corporation":   true,
	"company":       true,
	"localbusiness": true,
}

// parseJSONLD collects every JSON-LD node on the page, flattening arrays and
// @graph containers. Malformed blocks are skipped.
func parseJSONLD(doc *goquery.Document) []map[string]any {
	var nodes []map[string]any
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			zap.L().Debug("extract: skipping malformed json-ld", zap.Error(err))
			return
		}
		nodes = flattenJSONLD(v, nodes)
	})
	return nodes
}

func flattenJSONLD(v any, out []map[string]any) []map[string]any {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			out = flattenJSONLD(item, out)
		}
	case map[string]any:
		if graph, ok := t["@graph"]; ok {
			out = flattenJSONLD(graph, out)
		}
		if _, ok := t["@type"]; ok {
			out = append(out, t)
		}
	}
	return out
}

// hasType reports whether a node's @type (string or list) is in types.
func hasType(node map[string]any, types map[string]bool) bool {
	switch t := node["@type"].(type) {
	case string:
		return types[strings.ToLower(t)]
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && types[strings.ToLower(s)] {
				return true
			}
		}
	}
	return false
}

// nodesOfType returns the JSON-LD nodes with one of the given types.
func (p *Page) nodesOfType(types map[string]bool) []map[string]any {
	var out []map[string]any
	for _, n := range p.nodes {
		if hasType(n, types) {
			out = append(out, n)
		}
	}
	return out
}

// organization returns the first organization-like node.
func (p *Page) organization() map[string]any {
	orgs := p.nodesOfType(organizationTypes)
	if len(orgs) == 0 {
		return nil
	}
	return orgs[0]
}

func stringProp(node map[string]any, key string) string {
	if node == nil {
		return ""
	}
	switch v := node[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		return stringProp(v, "name")
	}
	return ""
}

// people returns "Name - Title" entries for Person values under key, which
// may be a single object, a list of objects or a plain name.
func people(node map[string]any, key string) []string {
	if node == nil {
		return nil
	}
	var out []string
	add := func(v any) {
		switch p := v.(type) {
		case string:
			if s := strings.TrimSpace(p); s != "" {
				out = append(out, s)
			}
		case map[string]any:
			name := stringProp(p, "name")
			if name == "" {
				return
			}
			if title := stringProp(p, "jobTitle"); title != "" {
				name += " - " + title
			}
			out = append(out, name)
		}
	}
	switch v := node[key].(type) {
	case []any:
		for _, item := range v {
			add(item)
		}
	default:
		add(v)
	}
	return out
}
