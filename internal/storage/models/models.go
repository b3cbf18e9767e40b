package models

import (
	"time"

	"github.com/keyfindings/backend/internal/findings"
)

// CachedReport is the persisted result for one scenario key.
type CachedReport struct {
	ID          string   `json:"id"`
	ScenarioKey string   `json:"scenario_key"`
	ToolName    string   `json:"tool_name"`
	Sources     []string `json:"sources"`
	Language    string   `json:"language"`

	ExecutiveSummary  string                  `json:"executive_summary"`
	PrincipalFindings string                  `json:"principal_findings"`
	PCAAnalysis       string                  `json:"pca_analysis"`
	StructureTag      findings.StructureTag   `json:"structure_tag"`
	Entries           []findings.FindingEntry `json:"entries,omitempty"`
	Confidence        float64                 `json:"confidence"`

	ModelUsed    string `json:"model_used"`
	ProviderUsed string `json:"provider_used"`
	LatencyMs    int64  `json:"latency_ms"`
	TokenCount   int    `json:"token_count"`

	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	AccessCount    int64     `json:"access_count"`

	UserRating   *int    `json:"user_rating,omitempty"`
	UserFeedback *string `json:"user_feedback,omitempty"`
}

// SetFindings copies parsed output onto the report.
func (r *CachedReport) SetFindings(p findings.ParsedFindings) {
	r.ExecutiveSummary = p.ExecutiveSummary
	r.PrincipalFindings = p.PrincipalFindings
	r.PCAAnalysis = p.PCAAnalysis
	r.StructureTag = p.StructureTag
	r.Entries = p.Entries()
	r.Confidence = p.Confidence
}

// Findings rebuilds the parsed view from the stored fields.
func (r *CachedReport) Findings() findings.ParsedFindings {
	return findings.Restore(r.StructureTag, r.ExecutiveSummary, r.PrincipalFindings, r.PCAAnalysis, r.Entries, r.Confidence)
}

// Clone returns a deep copy so callers cannot mutate a backend's record.
func (r *CachedReport) Clone() *CachedReport {
	if r == nil {
		return nil
	}
	c := *r
	c.Sources = append([]string(nil), r.Sources...)
	if r.Entries != nil {
		c.Entries = append([]findings.FindingEntry(nil), r.Entries...)
	}
	if r.UserRating != nil {
		v := *r.UserRating
		c.UserRating = &v
	}
	if r.UserFeedback != nil {
		v := *r.UserFeedback
		c.UserFeedback = &v
	}
	return &c
}
