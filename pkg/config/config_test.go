package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		Cache:        CacheConfig{Backend: "sqlite", RetentionDays: 30, CleanupIntervalMinutes: 360},
		Orchestrator: OrchestratorConfig{MaxRetries: 3},
		Providers: []ProviderConfig{{
			Name:   "groq",
			Models: []ModelConfig{{Name: "llama", TimeoutSec: 30, MaxTokens: 2048}},
		}},
	}
}

func TestValidate_Accepts(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_RejectsUnknownBackend(t *testing.T) {
	cfg := validConfig()
	cfg.Cache.Backend = "memcached"
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsNonPositiveCleanupInterval(t *testing.T) {
	for _, minutes := range []int{0, -5} {
		cfg := validConfig()
		cfg.Cache.CleanupIntervalMinutes = minutes
		assert.Error(t, cfg.Validate(), "interval %d", minutes)
	}
}

func TestValidate_RejectsZeroRetries(t *testing.T) {
	cfg := validConfig()
	cfg.Orchestrator.MaxRetries = 0
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsNonPositiveModelLimits(t *testing.T) {
	cfg := validConfig()
	cfg.Providers[0].Models[0].TimeoutSec = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Providers[0].Models[0].MaxTokens = -1
	assert.Error(t, cfg.Validate())
}
