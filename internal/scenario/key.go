// Package scenario turns a (tool, sources, language) request into the stable
// cache key its report is stored under.
package scenario

import (
	"sort"
	"strconv"
	"strings"

	"github.com/keyfindings/backend/pkg/errs"
	"github.com/keyfindings/backend/pkg/utils"
)

// Key is the hex digest identifying one scenario.
type Key string

func (k Key) String() string {
	return string(k)
}

// Scenario is the normalized form of a request's inputs.
type Scenario struct {
	ToolName string
	Sources  []string
	Language string
}

// Normalize trims and lowercases the tool name and language, trims sources,
// drops empty ones and sorts them so selection order does not matter.
func Normalize(toolName string, sources []string, language string) (Scenario, error) {
	tool := strings.ToLower(strings.TrimSpace(toolName))
	if tool == "" {
		return Scenario{}, errs.InvalidScenario("tool name is required")
	}

	normalized := make([]string, 0, len(sources))
	for _, s := range sources {
		s = strings.TrimSpace(s)
		if s != "" {
			normalized = append(normalized, s)
		}
	}
	if len(normalized) == 0 {
		return Scenario{}, errs.InvalidScenario("at least one source is required")
	}
	sort.Strings(normalized)

	return Scenario{
		ToolName: tool,
		Sources:  normalized,
		Language: strings.ToLower(strings.TrimSpace(language)),
	}, nil
}

// Key hashes the normalized scenario. Every field is length-prefixed so no
// choice of separator characters in the inputs can make two scenarios share
// an encoding.
func (s Scenario) Key() Key {
	var b strings.Builder
	writeField(&b, s.ToolName)
	b.WriteString(strconv.Itoa(len(s.Sources)))
	b.WriteByte('#')
	for _, src := range s.Sources {
		writeField(&b, src)
	}
	writeField(&b, s.Language)
	return Key(utils.HashString(b.String()))
}

func writeField(b *strings.Builder, v string) {
	b.WriteString(strconv.Itoa(len(v)))
	b.WriteByte(':')
	b.WriteString(v)
}

// ComputeKey is Normalize followed by Key.
func ComputeKey(toolName string, sources []string, language string) (Key, error) {
	s, err := Normalize(toolName, sources, language)
	if err != nil {
		return "", err
	}
	return s.Key(), nil
}
