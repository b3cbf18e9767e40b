package bootstrap

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyfindings/backend/internal/keyfindings"
	"github.com/keyfindings/backend/pkg/config"
	"github.com/keyfindings/backend/pkg/errs"
)

func testConfig(t *testing.T, backend string) *config.Config {
	return &config.Config{
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "kf.db")},
		Cache:  config.CacheConfig{Backend: backend, RetentionDays: 30},
		Orchestrator: config.OrchestratorConfig{
			MaxRetries: 1, RetryDelayMs: 1, MaxBackoffMs: 2, BackoffMultiplier: 2,
		},
		Providers: []config.ProviderConfig{{
			Name:   "local",
			Kind:   "openai",
			APIKey: "k",
			Models: []config.ModelConfig{{Name: "m", TimeoutSec: 1, MaxTokens: 10}},
		}},
		Payload: config.PayloadConfig{Dir: t.TempDir()},
	}
}

func TestBuild_SQLite(t *testing.T) {
	c, err := Build(testConfig(t, "sqlite"))
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "sqlite", c.Store.Backend())
	assert.Len(t, c.Registry.Chain(""), 1)
	assert.NoError(t, c.Store.Ping(context.Background()))
}

func TestBuild_MissingPayloadShortCircuits(t *testing.T) {
	c, err := Build(testConfig(t, "memory"))
	require.NoError(t, err)
	defer c.Close()

	_, _, err = c.Engine.GetOrGenerate(context.Background(), keyfindingsRequest())
	assert.ErrorIs(t, err, errs.ErrPayloadUnavailable)
	assert.Empty(t, c.Monitor.Snapshot())
}

func TestBuild_UnknownBackend(t *testing.T) {
	_, err := Build(testConfig(t, "mongo"))
	assert.Error(t, err)
}

func keyfindingsRequest() keyfindings.Request {
	return keyfindings.Request{ToolName: "Benchmarking", Sources: []string{"Crossref"}, Language: "en"}
}
