// Package registry holds the static, ordered fallback chain of providers and
// their models.
package registry

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/keyfindings/backend/internal/llm"
	"github.com/keyfindings/backend/pkg/config"
	"github.com/keyfindings/backend/pkg/errs"
	"github.com/keyfindings/backend/pkg/logger"
)

type Kind string

const (
	KindOpenAI    Kind = "openai"
	KindAnthropic Kind = "anthropic"
)

type ModelConfig struct {
	Name            string
	Timeout         time.Duration
	MaxTokens       int
	Temperature     float32
	TopP            float32
	CostPer1KTokens float64
}

type ProviderConfig struct {
	Name    string
	Kind    Kind
	BaseURL string
	APIKey  string
	Models  []ModelConfig
}

// HasCredential reports whether the provider can be called at all.
func (p ProviderConfig) HasCredential() bool {
	return strings.TrimSpace(p.APIKey) != ""
}

// Target is one (provider, model) step of the fallback chain.
type Target struct {
	Provider  string
	Model     ModelConfig
	Completer llm.Completer
}

func (t Target) ID() string {
	return t.Provider + "/" + t.Model.Name
}

// Factory builds the client for a provider.
type Factory func(p ProviderConfig) (llm.Completer, error)

type Registry struct {
	providers  []ProviderConfig
	completers map[string]llm.Completer
}

type Option func(*options)

type options struct {
	factory Factory
}

// WithFactory replaces the default client factory.
func WithFactory(f Factory) Option {
	return func(o *options) { o.factory = f }
}

// New validates the table and builds one client per credentialed provider.
// The table is read-only afterwards.
func New(providers []ProviderConfig, opts ...Option) (*Registry, error) {
	o := options{factory: DefaultFactory}
	for _, opt := range opts {
		opt(&o)
	}

	seen := make(map[string]bool, len(providers))
	r := &Registry{
		providers:  make([]ProviderConfig, 0, len(providers)),
		completers: make(map[string]llm.Completer, len(providers)),
	}
	for _, p := range providers {
		if p.Name == "" {
			return nil, errs.Configuration("provider name is required", nil)
		}
		if seen[p.Name] {
			return nil, errs.Configuration(fmt.Sprintf("duplicate provider %q", p.Name), nil)
		}
		seen[p.Name] = true

		for _, m := range p.Models {
			if err := validateModel(p.Name, m); err != nil {
				return nil, err
			}
		}

		p.Models = append([]ModelConfig(nil), p.Models...)
		r.providers = append(r.providers, p)

		if !p.HasCredential() {
			logger.Info("Provider has no credential, skipping", zap.String("provider", p.Name))
			continue
		}
		c, err := o.factory(p)
		if err != nil {
			return nil, errs.Configuration(fmt.Sprintf("provider %q", p.Name), err)
		}
		r.completers[p.Name] = c
	}

	return r, nil
}

func validateModel(provider string, m ModelConfig) error {
	switch {
	case m.Name == "":
		return errs.Configuration(fmt.Sprintf("provider %q has a model without name", provider), nil)
	case m.Timeout <= 0:
		return errs.Configuration(fmt.Sprintf("model %s/%s: timeout must be positive", provider, m.Name), nil)
	case m.MaxTokens <= 0:
		return errs.Configuration(fmt.Sprintf("model %s/%s: maxTokens must be positive", provider, m.Name), nil)
	}
	return nil
}

// DefaultFactory maps a provider kind to its client.
func DefaultFactory(p ProviderConfig) (llm.Completer, error) {
	switch p.Kind {
	case KindOpenAI, "":
		return llm.NewOpenAIClient(p.APIKey, p.BaseURL, nil), nil
	case KindAnthropic:
		return llm.NewAnthropicClient(p.APIKey, p.BaseURL, nil), nil
	default:
		return nil, fmt.Errorf("unsupported provider kind %q", p.Kind)
	}
}

// Chain returns the attempt sequence. Providers without credentials are left
// out. A preferred model, given as "model" or "provider/model", moves to the
// front; everything else keeps its configured order.
func (r *Registry) Chain(preferredModel string) []Target {
	var chain []Target
	for _, p := range r.providers {
		c, ok := r.completers[p.Name]
		if !ok {
			continue
		}
		for _, m := range p.Models {
			chain = append(chain, Target{Provider: p.Name, Model: m, Completer: c})
		}
	}

	preferredModel = strings.TrimSpace(preferredModel)
	if preferredModel == "" {
		return chain
	}
	for i, t := range chain {
		if t.Model.Name == preferredModel || t.ID() == preferredModel {
			reordered := make([]Target, 0, len(chain))
			reordered = append(reordered, t)
			reordered = append(reordered, chain[:i]...)
			reordered = append(reordered, chain[i+1:]...)
			return reordered
		}
	}

	logger.Warn("Preferred model not available, using default order", zap.String("model", preferredModel))
	return chain
}

// Providers returns a copy of the configured table, credentials redacted.
func (r *Registry) Providers() []ProviderConfig {
	out := make([]ProviderConfig, len(r.providers))
	for i, p := range r.providers {
		p.Models = append([]ModelConfig(nil), p.Models...)
		if p.APIKey != "" {
			p.APIKey = "***"
		}
		out[i] = p
	}
	return out
}

// FromConfig converts the config section, reading keys from apiKeyEnv when
// no literal key is set.
func FromConfig(cfgs []config.ProviderConfig) []ProviderConfig {
	out := make([]ProviderConfig, 0, len(cfgs))
	for _, c := range cfgs {
		key := c.APIKey
		if key == "" && c.APIKeyEnv != "" {
			key = os.Getenv(c.APIKeyEnv)
		}
		p := ProviderConfig{
			Name:    c.Name,
			Kind:    Kind(strings.ToLower(c.Kind)),
			BaseURL: c.BaseURL,
			APIKey:  key,
		}
		for _, m := range c.Models {
			p.Models = append(p.Models, ModelConfig{
				Name:            m.Name,
				Timeout:         time.Duration(m.TimeoutSec) * time.Second,
				MaxTokens:       m.MaxTokens,
				Temperature:     m.Temperature,
				TopP:            m.TopP,
				CostPer1KTokens: m.CostPer1KTokens,
			})
		}
		out = append(out, p)
	}
	return out
}
