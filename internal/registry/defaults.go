package registry

import (
	"os"
	"time"
)

// DefaultProviders is the built-in chain used when no providers are
// configured. Within each provider models are ordered fastest and
// best-quality first.
func DefaultProviders() []ProviderConfig {
	return []ProviderConfig{
		{
			Name:    "groq",
			Kind:    KindOpenAI,
			BaseURL: "https://api.groq.com/openai/v1",
			APIKey:  os.Getenv("GROQ_API_KEY"),
			Models: []ModelConfig{
				model("llama-3.3-70b-versatile", 30*time.Second, 0.00079),
				model("llama-3.1-8b-instant", 20*time.Second, 0.00008),
			},
		},
		{
			Name:    "openrouter",
			Kind:    KindOpenAI,
			BaseURL: "https://openrouter.ai/api/v1",
			APIKey:  os.Getenv("OPENROUTER_API_KEY"),
			Models: []ModelConfig{
				model("deepseek/deepseek-chat-v3-0324", 60*time.Second, 0.0011),
				model("google/gemini-2.0-flash-001", 45*time.Second, 0.0004),
			},
		},
		{
			Name:    "openai",
			Kind:    KindOpenAI,
			BaseURL: "https://api.openai.com/v1",
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			Models: []ModelConfig{
				model("gpt-4o-mini", 45*time.Second, 0.0006),
			},
		},
		{
			Name:    "anthropic",
			Kind:    KindAnthropic,
			BaseURL: "https://api.anthropic.com/v1",
			APIKey:  os.Getenv("ANTHROPIC_API_KEY"),
			Models: []ModelConfig{
				model("claude-3-5-haiku-latest", 45*time.Second, 0.004),
			},
		},
	}
}

func model(name string, timeout time.Duration, cost float64) ModelConfig {
	return ModelConfig{
		Name:            name,
		Timeout:         timeout,
		MaxTokens:       4096,
		Temperature:     0.3,
		TopP:            0.9,
		CostPer1KTokens: cost,
	}
}
