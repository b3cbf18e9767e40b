// Package findings converts untrusted model output into the engine's
// normalized narrative and estimates its quality.
package findings

import "strings"

// StructureTag records which response shape a report was parsed from, so
// renderers can choose bullet or prose layout.
type StructureTag string

const (
	TagLegacy    StructureTag = "legacy"
	TagNarrative StructureTag = "narrative"
	TagDegraded  StructureTag = "degraded"
)

// DegradedConfidence is assigned when no structured span could be parsed.
const DegradedConfidence = 0.3

// FindingEntry is one item of the legacy array-of-findings shape.
type FindingEntry struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// FindingsContent is the closed union of principal-findings shapes:
// LegacyFindings or NarrativeFindings.
type FindingsContent interface {
	Tag() StructureTag
	Text() string
	findingsContent()
}

type LegacyFindings []FindingEntry

func (LegacyFindings) Tag() StructureTag { return TagLegacy }

func (l LegacyFindings) Text() string {
	lines := make([]string, 0, len(l))
	for _, e := range l {
		switch {
		case e.Title != "" && e.Detail != "":
			lines = append(lines, "- "+e.Title+": "+e.Detail)
		case e.Title != "":
			lines = append(lines, "- "+e.Title)
		case e.Detail != "":
			lines = append(lines, "- "+e.Detail)
		}
	}
	return strings.Join(lines, "\n")
}

func (LegacyFindings) findingsContent() {}

type NarrativeFindings string

func (NarrativeFindings) Tag() StructureTag { return TagNarrative }

func (n NarrativeFindings) Text() string { return string(n) }

func (NarrativeFindings) findingsContent() {}

// ParsedFindings is the normalized output of one successful generation.
// Text fields are never absent; an empty string is the degraded value.
type ParsedFindings struct {
	ExecutiveSummary  string
	PrincipalFindings string
	PCAAnalysis       string
	Content           FindingsContent
	Confidence        float64
	StructureTag      StructureTag
	Degraded          bool
}

// Entries returns the legacy entries, or nil for any other shape.
func (p ParsedFindings) Entries() []FindingEntry {
	if l, ok := p.Content.(LegacyFindings); ok {
		return []FindingEntry(l)
	}
	return nil
}

// Restore rebuilds ParsedFindings from persisted columns.
func Restore(tag StructureTag, executiveSummary, principalFindings, pcaAnalysis string, entries []FindingEntry, confidence float64) ParsedFindings {
	p := ParsedFindings{
		ExecutiveSummary:  executiveSummary,
		PrincipalFindings: principalFindings,
		PCAAnalysis:       pcaAnalysis,
		Confidence:        confidence,
		StructureTag:      tag,
	}
	switch tag {
	case TagLegacy:
		p.Content = LegacyFindings(entries)
	case TagDegraded:
		p.Degraded = true
		p.Content = NarrativeFindings(principalFindings)
	default:
		p.Content = NarrativeFindings(principalFindings)
	}
	return p
}
