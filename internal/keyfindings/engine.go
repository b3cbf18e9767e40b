// Package keyfindings ties scenario keys, the report cache, payload and
// prompt building and the orchestrator into the engine's public operations.
package keyfindings

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/keyfindings/backend/internal/cache"
	"github.com/keyfindings/backend/internal/findings"
	"github.com/keyfindings/backend/internal/llm"
	"github.com/keyfindings/backend/internal/metrics"
	"github.com/keyfindings/backend/internal/orchestrator"
	"github.com/keyfindings/backend/internal/payload"
	"github.com/keyfindings/backend/internal/performance"
	"github.com/keyfindings/backend/internal/scenario"
	"github.com/keyfindings/backend/internal/storage/models"
	"github.com/keyfindings/backend/pkg/errs"
	"github.com/keyfindings/backend/pkg/logger"
)

type Cache interface {
	Get(ctx context.Context, key string) (*models.CachedReport, bool, error)
	Recheck(ctx context.Context, key string) (*models.CachedReport, bool, error)
	Put(ctx context.Context, key string, report *models.CachedReport) error
	UpdateFeedback(ctx context.Context, key string, rating int, feedback string) error
	Cleanup(ctx context.Context, maxAgeDays int) (int64, error)
	Size(ctx context.Context) (int64, error)
	Stats() cache.Stats
}

type Generator interface {
	Generate(ctx context.Context, prompt llm.Prompt, language, preferredModel string) (findings.ParsedFindings, orchestrator.Metadata, error)
}

type PayloadBuilder interface {
	BuildPayload(ctx context.Context, toolName string, sources []string) (*payload.AnalysisPayload, error)
}

type PromptBuilder interface {
	BuildPrompt(p *payload.AnalysisPayload, language string) (llm.Prompt, error)
}

type PerformanceSource interface {
	Snapshot() map[string]performance.Stats
}

type Request struct {
	ToolName       string
	Sources        []string
	Language       string
	ForceRefresh   bool
	PreferredModel string
}

type CacheStats struct {
	cache.Stats
	HitRate float64 `json:"hit_rate"`
	Entries int64   `json:"entries"`
}

type Engine struct {
	cache     Cache
	generator Generator
	payloads  PayloadBuilder
	prompts   PromptBuilder
	perf      PerformanceSource

	flight singleflight.Group
}

func NewEngine(c Cache, generator Generator, payloads PayloadBuilder, prompts PromptBuilder, perf PerformanceSource) *Engine {
	return &Engine{
		cache:     c,
		generator: generator,
		payloads:  payloads,
		prompts:   prompts,
		perf:      perf,
	}
}

type flightResult struct {
	report *models.CachedReport
	hit    bool
}

// GetOrGenerate returns the cached report for the scenario or generates,
// stores and returns a new one. Concurrent calls for the same scenario share
// one generation. Nothing is cached when generation fails.
func (e *Engine) GetOrGenerate(ctx context.Context, req Request) (*models.CachedReport, bool, error) {
	start := time.Now()
	report, hit, err := e.getOrGenerate(ctx, req)

	outcome := "generated"
	switch {
	case err != nil:
		outcome = string(errs.CodeOf(err))
		if outcome == "" {
			outcome = "error"
		}
	case hit:
		outcome = "cache_hit"
	}
	metrics.GenerationTotal.WithLabelValues(outcome).Inc()
	metrics.GenerationDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	return report, hit, err
}

func (e *Engine) getOrGenerate(ctx context.Context, req Request) (*models.CachedReport, bool, error) {
	sc, err := scenario.Normalize(req.ToolName, req.Sources, req.Language)
	if err != nil {
		return nil, false, err
	}
	key := sc.Key().String()

	log := logger.GetLogger().With(
		zap.String("scenario_key", key),
		zap.String("tool", sc.ToolName),
		zap.Strings("sources", sc.Sources),
		zap.String("language", sc.Language),
	)

	if !req.ForceRefresh {
		if report, ok := e.lookup(ctx, key, log); ok {
			log.Info("Report served from cache", zap.Int64("access_count", report.AccessCount))
			return report, true, nil
		}
	}

	flightKey := key
	if req.ForceRefresh {
		flightKey += "|force"
	}

	for {
		ch := e.flight.DoChan(flightKey, func() (interface{}, error) {
			return e.generate(ctx, sc, key, req, log)
		})

		select {
		case <-ctx.Done():
			return nil, false, errs.Cancelled("keyfindings.generate", ctx.Err())
		case res := <-ch:
			// A shared flight cancelled by its leader is retried for callers
			// that are still live.
			if res.Err != nil && res.Shared && errors.Is(res.Err, errs.ErrCancelled) && ctx.Err() == nil {
				continue
			}
			if res.Err != nil {
				return nil, false, res.Err
			}
			fr := res.Val.(flightResult)
			return fr.report.Clone(), fr.hit, nil
		}
	}
}

func (e *Engine) lookup(ctx context.Context, key string, log *zap.Logger) (*models.CachedReport, bool) {
	report, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		log.Warn("Cache lookup failed, treating as miss", zap.Error(err))
		return nil, false
	}
	return report, ok
}

func (e *Engine) generate(ctx context.Context, sc scenario.Scenario, key string, req Request, log *zap.Logger) (flightResult, error) {
	// The caller's lookup already counted the miss; a flight that finished
	// just before this one may have stored the report since.
	if !req.ForceRefresh {
		report, ok, err := e.cache.Recheck(ctx, key)
		if err != nil {
			log.Warn("Cache recheck failed, generating", zap.Error(err))
		} else if ok {
			return flightResult{report: report, hit: true}, nil
		}
	}

	p, err := e.payloads.BuildPayload(ctx, sc.ToolName, sc.Sources)
	if err != nil {
		if ctx.Err() != nil {
			return flightResult{}, errs.Cancelled("keyfindings.payload", ctx.Err())
		}
		log.Error("Payload build failed", zap.Error(err))
		return flightResult{}, errs.PayloadUnavailable("failed to build analysis payload", err)
	}

	prompt, err := e.prompts.BuildPrompt(p, sc.Language)
	if err != nil {
		log.Error("Prompt build failed", zap.Error(err))
		return flightResult{}, errs.PayloadUnavailable("failed to build prompt", err)
	}

	parsed, meta, err := e.generator.Generate(ctx, prompt, sc.Language, req.PreferredModel)
	if err != nil {
		log.Error("Report generation failed", zap.Error(err), zap.String("reason", string(errs.CodeOf(err))))
		return flightResult{}, err
	}

	report := &models.CachedReport{
		ToolName:     sc.ToolName,
		Sources:      sc.Sources,
		Language:     sc.Language,
		ModelUsed:    meta.ModelUsed,
		ProviderUsed: meta.ProviderUsed,
		LatencyMs:    meta.ResponseTimeMs,
		TokenCount:   meta.TokenCount,
	}
	report.SetFindings(parsed)

	if err := e.cache.Put(ctx, key, report); err != nil {
		log.Warn("Failed to cache report", zap.Error(err))
		report.ScenarioKey = key
	}

	log.Info("Report generated",
		zap.String("provider", meta.ProviderUsed),
		zap.String("model", meta.ModelUsed),
		zap.Int("attempts", meta.Attempts),
		zap.Int64("latency_ms", meta.ResponseTimeMs),
		zap.Float64("confidence", report.Confidence),
	)
	return flightResult{report: report}, nil
}

// GetCachedReport is a cache-only lookup; it counts as an access.
func (e *Engine) GetCachedReport(ctx context.Context, key string) (*models.CachedReport, error) {
	report, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.NotFound(key)
	}
	return report, nil
}

func (e *Engine) UpdateUserFeedback(ctx context.Context, key string, rating int, feedback string) error {
	return e.cache.UpdateFeedback(ctx, key, rating, feedback)
}

func (e *Engine) GetPerformanceStats() map[string]performance.Stats {
	if e.perf == nil {
		return map[string]performance.Stats{}
	}
	return e.perf.Snapshot()
}

func (e *Engine) CleanupCache(ctx context.Context, maxAgeDays int) (int64, error) {
	return e.cache.Cleanup(ctx, maxAgeDays)
}

func (e *Engine) CacheStats(ctx context.Context) (CacheStats, error) {
	st := e.cache.Stats()
	n, err := e.cache.Size(ctx)
	if err != nil {
		return CacheStats{}, err
	}
	return CacheStats{Stats: st, HitRate: st.HitRate(), Entries: n}, nil
}
