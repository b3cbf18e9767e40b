package payload

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyfindings/backend/internal/llm"
)

func TestSlug(t *testing.T) {
	assert.Equal(t, "benchmarking", Slug(" Benchmarking "))
	assert.Equal(t, "crossref+google-trends", Slug("Crossref+Google Trends"))
	assert.Equal(t, "balanced-scorecard", Slug("Balanced  Scorecard!"))
	assert.Equal(t, "gestión", Slug("Gestión"))
}

func TestFileAggregator_ReadsSortedPath(t *testing.T) {
	dir := t.TempDir()
	a := NewFileAggregator(dir)

	path := a.Path("Benchmarking", []string{"Google Trends", "Crossref"})
	assert.Equal(t, filepath.Join(dir, "benchmarking", "crossref+google-trends.json"), path)

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(`{"pca":{"explained_variance":0.72}}`), 0o644))

	p, err := a.BuildPayload(context.Background(), "Benchmarking", []string{"Crossref", "Google Trends"})
	require.NoError(t, err)
	assert.Equal(t, "Benchmarking", p.ToolName)
	assert.Contains(t, p.Data, "pca")
}

func TestFileAggregator_MissingFile(t *testing.T) {
	a := NewFileAggregator(t.TempDir())

	_, err := a.BuildPayload(context.Background(), "x", []string{"y"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestFileAggregator_BadJSON(t *testing.T) {
	dir := t.TempDir()
	a := NewFileAggregator(dir)
	path := a.Path("x", []string{"y"})
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o644))

	_, err := a.BuildPayload(context.Background(), "x", []string{"y"})
	assert.Error(t, err)
}

func TestTemplatePromptBuilder_Default(t *testing.T) {
	b, err := NewTemplatePromptBuilder("")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"en", "es"}, b.Languages())

	p := &AnalysisPayload{ToolName: "Benchmarking", Sources: []string{"Crossref", "Google Trends"}, Data: map[string]any{"trend": "up"}}

	prompt, err := b.BuildPrompt(p, "ES")
	require.NoError(t, err)
	require.Len(t, prompt.Messages, 2)
	assert.Equal(t, llm.RoleSystem, prompt.Messages[0].Role)
	assert.Contains(t, prompt.Messages[1].Content, "Herramienta de gestión: Benchmarking")
	assert.Contains(t, prompt.Messages[1].Content, "Crossref, Google Trends")
	assert.Contains(t, prompt.Messages[1].Content, `"trend": "up"`)
}

func TestTemplatePromptBuilder_FallsBackToDefault(t *testing.T) {
	b, err := NewTemplatePromptBuilder("")
	require.NoError(t, err)

	prompt, err := b.BuildPrompt(&AnalysisPayload{ToolName: "TQM"}, "fr")
	require.NoError(t, err)
	assert.Contains(t, prompt.Messages[1].Content, "Management tool: TQM")
}

func TestParsePrompts_DefaultLanguageIsCaseInsensitive(t *testing.T) {
	b, err := ParsePrompts([]byte("default: EN\nlanguages:\n  EN:\n    user: \"Tool {{.ToolName}} in {{.Language}}\"\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"en"}, b.Languages())

	prompt, err := b.BuildPrompt(&AnalysisPayload{ToolName: "TQM"}, "fr")
	require.NoError(t, err)
	assert.Contains(t, prompt.Messages[len(prompt.Messages)-1].Content, "Tool TQM in en")
}

func TestParsePrompts_Invalid(t *testing.T) {
	_, err := ParsePrompts([]byte("languages: {}"))
	assert.Error(t, err)

	_, err = ParsePrompts([]byte("default: de\nlanguages:\n  en:\n    user: hi\n"))
	assert.Error(t, err)

	_, err = ParsePrompts([]byte("languages:\n  en:\n    user: \"{{.Nope\"\n"))
	assert.Error(t, err)

	_, err = ParsePrompts([]byte("languages:\n  en:\n    user: a\n  EN:\n    user: b\n"))
	assert.Error(t, err)
}

func TestBuildPrompt_NilPayload(t *testing.T) {
	b, err := NewTemplatePromptBuilder("")
	require.NoError(t, err)
	_, err = b.BuildPrompt(nil, "en")
	assert.Error(t, err)
}
