// Package payload adapts the statistics pipeline output and the prompt
// templates to the report engine.
package payload

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/keyfindings/backend/pkg/logger"
)

// AnalysisPayload is the pre-computed statistics for one scenario. Data is
// opaque to the engine and only rendered into prompts.
type AnalysisPayload struct {
	ToolName string         `json:"tool_name"`
	Sources  []string       `json:"sources"`
	Data     map[string]any `json:"data"`
}

// FileAggregator reads payloads written by the statistics pipeline as
// <dir>/<tool>/<source+source>.json.
type FileAggregator struct {
	dir string
}

func NewFileAggregator(dir string) *FileAggregator {
	return &FileAggregator{dir: dir}
}

func (a *FileAggregator) Path(toolName string, sources []string) string {
	sorted := append([]string(nil), sources...)
	sort.Strings(sorted)
	return filepath.Join(a.dir, Slug(toolName), Slug(strings.Join(sorted, "+"))+".json")
}

func (a *FileAggregator) BuildPayload(ctx context.Context, toolName string, sources []string) (*AnalysisPayload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := a.Path(toolName, sources)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload %s: %w", path, err)
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to decode payload %s: %w", path, err)
	}

	logger.Debug("Payload loaded", zap.String("path", path), zap.Int("fields", len(data)))

	return &AnalysisPayload{
		ToolName: toolName,
		Sources:  append([]string(nil), sources...),
		Data:     data,
	}, nil
}

// Slug lowercases s and collapses every run of non-alphanumeric runes
// except '+' into a single '-'.
func Slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
