package findings

import (
	"regexp"
	"strconv"
	"unicode/utf8"
)

// NeutralConfidence is returned when no sub-score can be computed.
const NeutralConfidence = 0.5

var percentRE = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*%`)

// Score averages the sub-scores that apply to p. It is pure and always
// returns a value in [0,1].
func Score(p ParsedFindings) float64 {
	var scores []float64

	if s, ok := detailScore(p); ok {
		scores = append(scores, s)
	}
	if s, ok := varianceScore(p.PCAAnalysis); ok {
		scores = append(scores, s)
	}
	if s, ok := summaryScore(p.ExecutiveSummary); ok {
		scores = append(scores, s)
	}

	if len(scores) == 0 {
		return NeutralConfidence
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return clamp(sum / float64(len(scores)))
}

func detailScore(p ParsedFindings) (float64, bool) {
	switch c := p.Content.(type) {
	case LegacyFindings:
		if len(c) == 0 {
			return 0, false
		}
		total := 0
		for _, e := range c {
			total += utf8.RuneCountInString(e.Detail)
		}
		return clamp(float64(total) / float64(len(c)) / 200), true
	case NarrativeFindings:
		n := utf8.RuneCountInString(string(c))
		if n == 0 {
			return 0, false
		}
		return clamp(float64(n) / 1200), true
	}
	return 0, false
}

// varianceScore looks for an explained-variance style percentage.
func varianceScore(pca string) (float64, bool) {
	if pca == "" {
		return 0, false
	}
	for _, m := range percentRE.FindAllStringSubmatch(pca, -1) {
		v, err := strconv.ParseFloat(normalizeDecimal(m[1]), 64)
		if err == nil && v > 0 && v <= 100 {
			return 1, true
		}
	}
	return 0.2, true
}

func summaryScore(summary string) (float64, bool) {
	n := utf8.RuneCountInString(summary)
	switch {
	case n == 0:
		return 0, false
	case n >= 100 && n <= 1500:
		return 1, true
	case (n >= 40 && n < 100) || (n > 1500 && n <= 3000):
		return 0.6, true
	default:
		return 0.3, true
	}
}

func normalizeDecimal(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] == ',' {
			b[i] = '.'
		}
	}
	return string(b)
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
