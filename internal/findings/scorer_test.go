package findings

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore_NeutralWhenNothingComputable(t *testing.T) {
	assert.Equal(t, NeutralConfidence, Score(ParsedFindings{}))
	assert.Equal(t, NeutralConfidence, Score(ParsedFindings{Content: LegacyFindings{}}))
}

func TestScore_RewardsVarianceFigure(t *testing.T) {
	with := Score(ParsedFindings{PCAAnalysis: "PC1 explains 62,5 % of variance"})
	without := Score(ParsedFindings{PCAAnalysis: "PC1 dominates"})
	implausible := Score(ParsedFindings{PCAAnalysis: "PC1 explains 250% of variance"})

	assert.Equal(t, 1.0, with)
	assert.Equal(t, 0.2, without)
	assert.Equal(t, 0.2, implausible)
}

func TestScore_SummaryBands(t *testing.T) {
	assert.Equal(t, 1.0, Score(ParsedFindings{ExecutiveSummary: strings.Repeat("a", 500)}))
	assert.Equal(t, 0.6, Score(ParsedFindings{ExecutiveSummary: strings.Repeat("a", 60)}))
	assert.Equal(t, 0.6, Score(ParsedFindings{ExecutiveSummary: strings.Repeat("a", 2000)}))
	assert.Equal(t, 0.3, Score(ParsedFindings{ExecutiveSummary: "tiny"}))
	assert.Equal(t, 0.3, Score(ParsedFindings{ExecutiveSummary: strings.Repeat("a", 5000)}))
}

func TestScore_LegacyDetailLength(t *testing.T) {
	p := ParsedFindings{Content: LegacyFindings{
		{Title: "x", Detail: strings.Repeat("d", 100)},
		{Title: "y", Detail: strings.Repeat("d", 100)},
	}}
	assert.InDelta(t, 0.5, Score(p), 1e-9)

	p.Content = LegacyFindings{{Detail: strings.Repeat("d", 1000)}}
	assert.Equal(t, 1.0, Score(p))
}

func TestScore_AveragesComputableSubScores(t *testing.T) {
	// summary band 1.0, no variance figure 0.2, narrative length 0.5
	p := ParsedFindings{
		ExecutiveSummary: strings.Repeat("a", 500),
		PCAAnalysis:      "no figures here",
		Content:          NarrativeFindings(strings.Repeat("n", 600)),
	}
	assert.InDelta(t, (1.0+0.2+0.5)/3, Score(p), 1e-9)
}

func TestScore_AlwaysInRange(t *testing.T) {
	for _, raw := range []string{"", "x", narrativeJSON, strings.Repeat("{", 50)} {
		s := Score(Parse(raw))
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
	}
}
