package findings

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	maxDegradedSummaryRunes  = 600
	maxDegradedFindingsRunes = 4000
)

var (
	thinkBlockRE = regexp.MustCompile(`(?is)<think>.*?</think>`)
	codeFenceRE  = regexp.MustCompile("```[A-Za-z0-9_-]*")
)

var (
	summaryKeys  = []string{"executive_summary", "executiveSummary", "summary"}
	findingsKeys = []string{"principal_findings", "principalFindings", "findings", "key_findings"}
	pcaKeys      = []string{"pca_analysis", "pcaAnalysis", "pca_insights", "pca"}
	titleKeys    = []string{"bullet", "title", "finding", "point"}
	detailKeys   = []string{"reasoning", "detail", "description", "explanation"}
)

// Parse never fails: output without a usable JSON object becomes a degraded,
// low-confidence result built from the raw text.
func Parse(raw string) ParsedFindings {
	cleaned := clean(raw)

	obj, ok := locateObject(cleaned)
	if ok {
		if p, ok := fromObject(obj); ok {
			return p
		}
	}
	return degraded(cleaned)
}

func clean(raw string) string {
	s := thinkBlockRE.ReplaceAllString(raw, "")
	s = codeFenceRE.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// locateObject decodes the outermost {...} span; when trailing prose holds a
// stray brace it falls back to the first complete object.
func locateObject(s string) (map[string]json.RawMessage, bool) {
	start := strings.Index(s, "{")
	if start < 0 {
		return nil, false
	}

	var obj map[string]json.RawMessage
	if end := strings.LastIndex(s, "}"); end > start {
		if err := json.Unmarshal([]byte(s[start:end+1]), &obj); err == nil {
			return obj, true
		}
	}

	dec := json.NewDecoder(strings.NewReader(s[start:]))
	obj = nil
	if err := dec.Decode(&obj); err == nil && obj != nil {
		return obj, true
	}
	return nil, false
}

func fromObject(obj map[string]json.RawMessage) (ParsedFindings, bool) {
	summaryRaw, hasSummary := lookup(obj, summaryKeys)
	findingsRaw, hasFindings := lookup(obj, findingsKeys)
	pcaRaw, hasPCA := lookup(obj, pcaKeys)
	if !hasSummary && !hasFindings && !hasPCA {
		return ParsedFindings{}, false
	}

	p := ParsedFindings{
		ExecutiveSummary: rawText(summaryRaw),
		PCAAnalysis:      rawText(pcaRaw),
	}

	if entries, ok := legacyEntries(findingsRaw); ok {
		p.Content = LegacyFindings(entries)
	} else {
		p.Content = NarrativeFindings(rawText(findingsRaw))
	}
	p.PrincipalFindings = p.Content.Text()
	p.StructureTag = p.Content.Tag()
	p.Confidence = Score(p)
	return p, true
}

func degraded(text string) ParsedFindings {
	findings := truncateRunes(text, maxDegradedFindingsRunes)
	return ParsedFindings{
		ExecutiveSummary:  truncateRunes(text, maxDegradedSummaryRunes),
		PrincipalFindings: findings,
		Content:           NarrativeFindings(findings),
		Confidence:        DegradedConfidence,
		StructureTag:      TagDegraded,
		Degraded:          true,
	}
}

func lookup(obj map[string]json.RawMessage, keys []string) (json.RawMessage, bool) {
	for _, k := range keys {
		if v, ok := obj[k]; ok && string(v) != "null" {
			return v, true
		}
	}
	return nil, false
}

func legacyEntries(raw json.RawMessage) ([]FindingEntry, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}

	entries := make([]FindingEntry, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				entries = append(entries, FindingEntry{Detail: s})
			}
			continue
		}
		var m map[string]json.RawMessage
		if err := json.Unmarshal(item, &m); err != nil {
			continue
		}
		title, _ := lookup(m, titleKeys)
		detail, _ := lookup(m, detailKeys)
		e := FindingEntry{Title: rawText(title), Detail: rawText(detail)}
		if e.Title != "" || e.Detail != "" {
			entries = append(entries, e)
		}
	}
	return entries, true
}

// rawText renders a JSON value as display text: strings as-is, string arrays
// joined by newlines, anything else as compact JSON.
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.TrimSpace(strings.Join(list, "\n"))
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
