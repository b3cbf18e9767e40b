package payload

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/keyfindings/backend/internal/llm"
)

//go:embed prompts.yaml
var defaultPrompts []byte

type promptFile struct {
	Default   string                    `yaml:"default"`
	Languages map[string]promptTemplate `yaml:"languages"`
}

type promptTemplate struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

type compiled struct {
	system *template.Template
	user   *template.Template
}

// TemplatePromptBuilder renders prompts from per-language templates.
// Unknown languages use the file's default language.
type TemplatePromptBuilder struct {
	fallback  string
	languages map[string]compiled
}

// NewTemplatePromptBuilder loads templates from path, or the built-in set
// when path is empty.
func NewTemplatePromptBuilder(path string) (*TemplatePromptBuilder, error) {
	raw := defaultPrompts
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read prompts file: %w", err)
		}
		raw = b
	}
	return ParsePrompts(raw)
}

func ParsePrompts(raw []byte) (*TemplatePromptBuilder, error) {
	var f promptFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse prompts: %w", err)
	}
	if len(f.Languages) == 0 {
		return nil, fmt.Errorf("prompts file defines no languages")
	}
	fallback := strings.ToLower(strings.TrimSpace(f.Default))
	if fallback == "" {
		fallback = "en"
	}

	funcs := template.FuncMap{
		"join": strings.Join,
		"json": func(v any) (string, error) {
			b, err := json.MarshalIndent(v, "", "  ")
			return string(b), err
		},
	}

	b := &TemplatePromptBuilder{fallback: fallback, languages: make(map[string]compiled, len(f.Languages))}
	for lang, t := range f.Languages {
		key := strings.ToLower(strings.TrimSpace(lang))
		if _, dup := b.languages[key]; dup {
			return nil, fmt.Errorf("language %q is defined more than once", key)
		}
		if strings.TrimSpace(t.User) == "" {
			return nil, fmt.Errorf("language %q has no user template", lang)
		}
		sys, err := template.New(lang + ".system").Funcs(funcs).Parse(t.System)
		if err != nil {
			return nil, fmt.Errorf("language %q system template: %w", lang, err)
		}
		user, err := template.New(lang + ".user").Funcs(funcs).Parse(t.User)
		if err != nil {
			return nil, fmt.Errorf("language %q user template: %w", lang, err)
		}
		b.languages[key] = compiled{system: sys, user: user}
	}
	if _, ok := b.languages[fallback]; !ok {
		return nil, fmt.Errorf("default language %q has no templates", fallback)
	}
	return b, nil
}

func (b *TemplatePromptBuilder) Languages() []string {
	out := make([]string, 0, len(b.languages))
	for l := range b.languages {
		out = append(out, l)
	}
	return out
}

func (b *TemplatePromptBuilder) BuildPrompt(p *AnalysisPayload, language string) (llm.Prompt, error) {
	if p == nil {
		return llm.Prompt{}, fmt.Errorf("nil payload")
	}

	lang := strings.ToLower(strings.TrimSpace(language))
	t, ok := b.languages[lang]
	if !ok {
		lang = b.fallback
		t = b.languages[lang]
	}

	data := struct {
		ToolName string
		Sources  []string
		Language string
		Data     map[string]any
	}{p.ToolName, p.Sources, lang, p.Data}

	var sys, user strings.Builder
	if err := t.system.Execute(&sys, data); err != nil {
		return llm.Prompt{}, fmt.Errorf("render system prompt: %w", err)
	}
	if err := t.user.Execute(&user, data); err != nil {
		return llm.Prompt{}, fmt.Errorf("render user prompt: %w", err)
	}
	return llm.NewPrompt(strings.TrimSpace(sys.String()), strings.TrimSpace(user.String())), nil
}
