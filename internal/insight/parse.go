package insight

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"mvdan.cc/xurls/v2"

	"github.com/sells-group/sales-assistant/internal/model"
)

const reportSchemaJSON = `{
  "type": "object",
  "definitions": {
    "content": {"type": ["string", "array", "object"]}
  },
  "properties": {
    "company_strategy": {"$ref": "#/definitions/content"},
    "leadership_information": {"$ref": "#/definitions/content"},
    "competitive_landscape": {"$ref": "#/definitions/content"},
    "product_strategy_summary": {"$ref": "#/definitions/content"},
    "opportunities": {"$ref": "#/definitions/content"},
    "article_links": {"$ref": "#/definitions/content"}
  },
  "anyOf": [
    {"required": ["company_strategy"]},
    {"required": ["leadership_information"]},
    {"required": ["competitive_landscape"]},
    {"required": ["product_strategy_summary"]},
    {"required": ["opportunities"]},
    {"required": ["article_links"]}
  ]
}`

var reportSchema = mustSchema(reportSchemaJSON)

func mustSchema(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("insight: compile report schema: %v", err))
	}
	return schema
}

// headings maps each report key to the heading text recognized in
// free-form responses.
var headings = []struct {
	key     string
	heading string
}{
	{model.ReportCompanyStrategy, "company strategy"},
	{model.ReportLeadership, "leadership information"},
	{model.ReportCompetitiveLandscape, "competitive landscape"},
	{model.ReportProductStrategy, "product/strategy summary"},
	{model.ReportOpportunities, "opportunities"},
	{model.ReportArticleLinks, "article links"},
}

// ParseResponse turns model output into report section contents keyed by
// report key. JSON objects are validated against the report schema; other
// text is split on recognized section headings. Keys the model left out
// are filled with model.ReportMissing.
func ParseResponse(raw string) (map[string]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, eris.New("insight: empty response")
	}

	var sections map[string]string
	cleaned := cleanJSON(raw)
	var obj map[string]any
	if strings.HasPrefix(cleaned, "{") && json.Unmarshal([]byte(cleaned), &obj) == nil {
		res, err := reportSchema.Validate(gojsonschema.NewGoLoader(obj))
		if err != nil {
			return nil, eris.Wrap(err, "insight: validate response")
		}
		if !res.Valid() {
			msgs := make([]string, 0, len(res.Errors()))
			for _, e := range res.Errors() {
				msgs = append(msgs, e.String())
			}
			return nil, eris.Errorf("insight: response does not match report schema: %s", strings.Join(msgs, "; "))
		}
		sections = make(map[string]string, len(obj))
		for _, key := range model.ReportSectionKeys() {
			if v, ok := obj[key]; ok {
				sections[key] = renderValue(v)
			}
		}
	} else {
		sections = parseHeadings(raw)
		if len(sections) == 0 {
			return nil, eris.New("insight: malformed response: no report sections found")
		}
	}

	for _, key := range model.ReportSectionKeys() {
		if strings.TrimSpace(sections[key]) == "" {
			sections[key] = model.ReportMissing
		}
	}
	return sections, nil
}

// cleanJSON extracts a JSON object from text that may carry markdown code
// fences or surrounding prose.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

// renderValue flattens a JSON value into markdown text. Arrays become
// bullet lists and objects become bolded groups in key order.
func renderValue(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		lines := make([]string, 0, len(t))
		for _, item := range t {
			if s := renderValue(item); s != "" {
				lines = append(lines, "- "+s)
			}
		}
		return strings.Join(lines, "\n")
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		groups := make([]string, 0, len(keys))
		for _, k := range keys {
			body := renderValue(t[k])
			if body == "" {
				continue
			}
			if _, ok := t[k].([]any); !ok {
				body = "- " + body
			}
			groups = append(groups, fmt.Sprintf("**%s:**\n%s", cases.Title(language.English).String(strings.ReplaceAll(k, "_", " ")), body))
		}
		return strings.Join(groups, "\n\n")
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

// parseHeadings splits free text on lines that start with a report heading
// or key. Text after a colon on the heading line is kept.
func parseHeadings(raw string) map[string]string {
	sections := map[string]string{}
	current := ""
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if key, rest, ok := matchHeading(line); ok {
			current = key
			sections[current] = ""
			if rest = cleanLine(rest); rest != "" {
				sections[current] = rest + "\n"
			}
			continue
		}
		if current == "" || line == "" {
			continue
		}
		if cleaned := cleanLine(line); cleaned != "" {
			sections[current] += cleaned + "\n"
		}
	}
	for k, v := range sections {
		sections[k] = strings.TrimSpace(v)
	}
	return sections
}

func matchHeading(line string) (key, rest string, ok bool) {
	norm := strings.ToLower(strings.TrimLeft(line, "{#*\"'0123456789.) "))
	for _, h := range headings {
		for _, prefix := range []string{h.heading, h.key} {
			if !strings.HasPrefix(norm, prefix) {
				continue
			}
			tail := strings.TrimLeft(norm[len(prefix):], "*\"' ")
			if tail != "" && !strings.HasPrefix(tail, ":") {
				continue
			}
			// Recover the original-case remainder after the colon.
			if i := strings.Index(line, ":"); i >= 0 {
				rest = strings.TrimLeft(line[i+1:], "* ")
			}
			return h.key, rest, true
		}
	}
	return "", "", false
}

func cleanLine(line string) string {
	line = strings.NewReplacer(`"`, "", "{", "", "}", "").Replace(line)
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(line), ","))
}

var linkPattern = xurls.Strict()

// HarvestLinks returns the distinct URLs found in texts, in first-seen order.
func HarvestLinks(texts ...string) []string {
	var out []string
	seen := map[string]bool{}
	for _, t := range texts {
		for _, u := range linkPattern.FindAllString(t, -1) {
			u = strings.TrimRight(u, ".,;")
			if seen[u] {
				continue
			}
			seen[u] = true
			out = append(out, u)
		}
	}
	return out
}
