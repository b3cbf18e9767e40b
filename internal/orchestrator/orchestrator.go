// Package orchestrator drives one report generation across the provider
// fallback chain.
package orchestrator

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/keyfindings/backend/internal/findings"
	"github.com/keyfindings/backend/internal/llm"
	"github.com/keyfindings/backend/internal/metrics"
	"github.com/keyfindings/backend/internal/registry"
	"github.com/keyfindings/backend/pkg/config"
	"github.com/keyfindings/backend/pkg/errs"
	"github.com/keyfindings/backend/pkg/logger"
	"github.com/keyfindings/backend/pkg/retry"
)

type Config struct {
	// MaxRetries is the number of attempts per model, first one included.
	MaxRetries        int
	RetryDelay        time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:        3,
		RetryDelay:        2 * time.Second,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2,
	}
}

func FromConfig(c config.OrchestratorConfig) Config {
	return Config{
		MaxRetries:        c.MaxRetries,
		RetryDelay:        time.Duration(c.RetryDelayMs) * time.Millisecond,
		MaxBackoff:        time.Duration(c.MaxBackoffMs) * time.Millisecond,
		BackoffMultiplier: c.BackoffMultiplier,
	}
}

// Chainer yields the ordered attempt sequence.
type Chainer interface {
	Chain(preferredModel string) []registry.Target
}

// Recorder receives one call per attempt.
type Recorder interface {
	Record(provider, model string, latencyMs int64, tokens int, success bool)
}

type Metadata struct {
	ModelUsed      string `json:"model_used"`
	ProviderUsed   string `json:"provider_used"`
	ResponseTimeMs int64  `json:"response_time_ms"`
	TokenCount     int    `json:"token_count"`
	Attempts       int    `json:"attempts"`
}

type Orchestrator struct {
	chain    Chainer
	recorder Recorder
	cfg      Config
}

func New(chain Chainer, recorder Recorder, cfg Config) *Orchestrator {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.BackoffMultiplier <= 0 {
		cfg.BackoffMultiplier = 2
	}
	return &Orchestrator{chain: chain, recorder: recorder, cfg: cfg}
}

// Generate walks the chain one model at a time until a model answers. It
// never writes to the cache.
func (o *Orchestrator) Generate(ctx context.Context, prompt llm.Prompt, language, preferredModel string) (findings.ParsedFindings, Metadata, error) {
	start := time.Now()
	chain := o.chain.Chain(preferredModel)

	var (
		lastErr  error
		attempts int
	)

	for _, target := range chain {
		log := logger.GetLogger().With(
			zap.String("provider", target.Provider),
			zap.String("model", target.Model.Name),
			zap.String("language", language),
		)

		req := llm.CompletionRequest{
			Model:       target.Model.Name,
			Messages:    prompt.Messages,
			MaxTokens:   target.Model.MaxTokens,
			Temperature: target.Model.Temperature,
			TopP:        target.Model.TopP,
		}

		resp, n, err := retry.DoWithResult(ctx, o.retryConfig(log), func(attempt int) (*llm.CompletionResponse, error) {
			return o.attempt(ctx, target, req, attempt, log)
		})
		attempts += n

		if ctx.Err() != nil {
			return findings.ParsedFindings{}, Metadata{}, errs.Cancelled("orchestrator.generate", ctx.Err())
		}
		if err != nil {
			lastErr = err
			log.Warn("Model failed, advancing to next", zap.Error(err), zap.Int("attempts", n))
			continue
		}

		parsed := findings.Parse(resp.Content)
		meta := Metadata{
			ModelUsed:      target.Model.Name,
			ProviderUsed:   target.Provider,
			ResponseTimeMs: time.Since(start).Milliseconds(),
			TokenCount:     resp.TotalTokens,
			Attempts:       attempts,
		}

		metrics.ConfidenceScore.WithLabelValues(string(parsed.StructureTag)).Observe(parsed.Confidence)
		if target.Model.CostPer1KTokens > 0 && resp.TotalTokens > 0 {
			metrics.LLMCost.WithLabelValues(target.Provider, target.Model.Name).
				Add(float64(resp.TotalTokens) / 1000 * target.Model.CostPer1KTokens)
		}

		log.Info("Generation succeeded",
			zap.Int("attempts", attempts),
			zap.Int("tokens", resp.TotalTokens),
			zap.Int64("latency_ms", meta.ResponseTimeMs),
			zap.String("structure", string(parsed.StructureTag)),
			zap.Float64("confidence", parsed.Confidence),
		)
		return parsed, meta, nil
	}

	logger.Error("All providers exhausted",
		zap.Int("models", len(chain)),
		zap.Int("attempts", attempts),
		zap.Error(lastErr),
	)
	return findings.ParsedFindings{}, Metadata{}, errs.AllProvidersExhausted(attempts, lastErr)
}

func (o *Orchestrator) attempt(ctx context.Context, target registry.Target, req llm.CompletionRequest, n int, log *zap.Logger) (*llm.CompletionResponse, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, target.Model.Timeout)
	defer cancel()

	started := time.Now()
	resp, err := target.Completer.Complete(attemptCtx, req)
	latency := time.Since(started).Milliseconds()

	if err == nil && (resp == nil || strings.TrimSpace(resp.Content) == "") {
		err = &llm.AttemptError{Kind: llm.KindMalformed, Err: llm.ErrEmptyResponse}
	}

	tokens := 0
	if err == nil {
		tokens = resp.TotalTokens
	}
	if o.recorder != nil {
		o.recorder.Record(target.Provider, target.Model.Name, latency, tokens, err == nil)
	}

	if err != nil {
		log.Debug("Attempt failed", zap.Int("attempt", n), zap.Int64("latency_ms", latency), zap.Error(err))
		return nil, err
	}
	return resp, nil
}

func (o *Orchestrator) retryConfig(log *zap.Logger) retry.Config {
	return retry.Config{
		MaxAttempts:    o.cfg.MaxRetries,
		InitialDelay:   o.cfg.RetryDelay,
		MaxDelay:       o.cfg.MaxBackoff,
		Multiplier:     o.cfg.BackoffMultiplier,
		JitterFraction: 0.1,
		IsRetryable:    llm.IsRetryable,
		DelayFor: func(err error, backoff time.Duration) time.Duration {
			if kind, ok := llm.KindOf(err); ok && kind == llm.KindRateLimited {
				return o.cfg.RetryDelay
			}
			return backoff
		},
		Logger: log,
	}
}
