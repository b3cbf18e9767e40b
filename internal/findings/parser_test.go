package findings

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const narrativeJSON = `{
  "executive_summary": "Benchmarking shows a sustained decline in attention since 2010, with Crossref publications lagging Google Trends by roughly two years.",
  "principal_findings": "The two sources move together until 2012. After that the academic signal keeps growing while search interest fades.",
  "pca_analysis": "The first component explains 78.4% of the variance."
}`

func assertWellFormed(t *testing.T, p ParsedFindings) {
	t.Helper()
	assert.NotNil(t, p.Content)
	assert.GreaterOrEqual(t, p.Confidence, 0.0)
	assert.LessOrEqual(t, p.Confidence, 1.0)
	assert.NotEmpty(t, p.StructureTag)
}

func TestParse_AlwaysWellFormed(t *testing.T) {
	inputs := map[string]string{
		"empty":          "",
		"whitespace":     "   \n\t",
		"plain prose":    "The tool was popular in the nineties and has since declined.",
		"valid json":     narrativeJSON,
		"fenced json":    "```json\n" + narrativeJSON + "\n```",
		"trailing prose": narrativeJSON + "\n\nLet me know if you need anything else {or more}.",
		"broken json":    `{"executive_summary": "unterminated`,
		"json array":     `[1, 2, 3]`,
		"unrelated json": `{"foo": "bar"}`,
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			assertWellFormed(t, Parse(in))
		})
	}
}

func TestParse_Narrative(t *testing.T) {
	p := Parse(narrativeJSON)

	assert.Equal(t, TagNarrative, p.StructureTag)
	assert.False(t, p.Degraded)
	assert.Contains(t, p.ExecutiveSummary, "sustained decline")
	assert.Contains(t, p.PrincipalFindings, "academic signal")
	assert.Contains(t, p.PCAAnalysis, "78.4%")
	_, ok := p.Content.(NarrativeFindings)
	assert.True(t, ok)
	assert.Nil(t, p.Entries())
}

func TestParse_LegacyArray(t *testing.T) {
	raw := `Here is the analysis:
{"executiveSummary": "Short summary of the tool's trajectory over three decades.",
 "principalFindings": [
   {"bullet": "Peak in 1998", "reasoning": "Both sources peak within a year of each other."},
   "Decline after 2005",
   {"title": ""}
 ],
 "pcaAnalysis": "PC1 captures most variance"}`

	p := Parse(raw)

	require.Equal(t, TagLegacy, p.StructureTag)
	entries := p.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "Peak in 1998", entries[0].Title)
	assert.Equal(t, "Both sources peak within a year of each other.", entries[0].Detail)
	assert.Equal(t, "Decline after 2005", entries[1].Detail)
	assert.Contains(t, p.PrincipalFindings, "- Peak in 1998: Both sources")
}

func TestParse_StripsThinkBlocks(t *testing.T) {
	raw := "<think>I should mention {braces} here</think>" + narrativeJSON
	p := Parse(raw)
	assert.Equal(t, TagNarrative, p.StructureTag)
}

func TestParse_TrailingBraceFallsBackToFirstObject(t *testing.T) {
	raw := narrativeJSON + " trailing } brace"
	p := Parse(raw)
	assert.Equal(t, TagNarrative, p.StructureTag)
	assert.Contains(t, p.ExecutiveSummary, "Benchmarking")
}

func TestParse_DegradedPlainText(t *testing.T) {
	p := Parse("The model ignored the format and just wrote prose.")

	assert.True(t, p.Degraded)
	assert.Equal(t, TagDegraded, p.StructureTag)
	assert.Equal(t, DegradedConfidence, p.Confidence)
	assert.Equal(t, "The model ignored the format and just wrote prose.", p.ExecutiveSummary)
	assert.Equal(t, p.ExecutiveSummary, p.PrincipalFindings)
}

func TestParse_DegradedIsBounded(t *testing.T) {
	p := Parse(strings.Repeat("á", 10000))

	assert.Equal(t, maxDegradedSummaryRunes, len([]rune(p.ExecutiveSummary)))
	assert.Equal(t, maxDegradedFindingsRunes, len([]rune(p.PrincipalFindings)))
}

func TestParse_EmptyInput(t *testing.T) {
	p := Parse("")
	assert.True(t, p.Degraded)
	assert.Equal(t, "", p.ExecutiveSummary)
	assert.Equal(t, "", p.PrincipalFindings)
	assert.Equal(t, "", p.PCAAnalysis)
}

func TestParse_NonStringFieldsRendered(t *testing.T) {
	p := Parse(`{"executive_summary": ["line one", "line two"], "pca_analysis": {"pc1": 0.7}}`)
	assert.Equal(t, "line one\nline two", p.ExecutiveSummary)
	assert.Equal(t, `{"pc1":0.7}`, p.PCAAnalysis)
}

func TestRestore_RoundTripsTaggedContent(t *testing.T) {
	entries := []FindingEntry{{Title: "a", Detail: "b"}}
	p := Restore(TagLegacy, "s", "- a: b", "", entries, 0.7)
	assert.Equal(t, entries, p.Entries())

	p = Restore(TagNarrative, "s", "prose", "", nil, 0.7)
	assert.Equal(t, NarrativeFindings("prose"), p.Content)

	p = Restore(TagDegraded, "s", "raw", "", nil, 0.3)
	assert.True(t, p.Degraded)
}
