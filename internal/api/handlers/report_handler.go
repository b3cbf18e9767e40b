package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/keyfindings/backend/internal/keyfindings"
	"github.com/keyfindings/backend/internal/storage/models"
	"github.com/keyfindings/backend/pkg/logger"
)

const generationTimeout = 5 * time.Minute

type ReportRequest struct {
	Tool           string   `json:"tool"`
	Sources        []string `json:"sources"`
	Language       string   `json:"language"`
	ForceRefresh   bool     `json:"force_refresh"`
	PreferredModel string   `json:"preferred_model"`
}

func (r ReportRequest) toEngine() keyfindings.Request {
	return keyfindings.Request{
		ToolName:       r.Tool,
		Sources:        r.Sources,
		Language:       r.Language,
		ForceRefresh:   r.ForceRefresh,
		PreferredModel: r.PreferredModel,
	}
}

type ReportResponse struct {
	Report   *models.CachedReport `json:"report"`
	CacheHit bool                 `json:"cache_hit"`
}

type ReportHandler struct {
	engine *keyfindings.Engine
}

func NewReportHandler(engine *keyfindings.Engine) *ReportHandler {
	return &ReportHandler{
		engine: engine,
	}
}

func (h *ReportHandler) GenerateReport(c *fiber.Ctx) error {
	var req ReportRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), generationTimeout)
	defer cancel()

	report, hit, err := h.engine.GetOrGenerate(ctx, req.toEngine())
	if err != nil {
		logger.Error("Failed to generate report",
			zap.String("tool", req.Tool),
			zap.Strings("sources", req.Sources),
			zap.Error(err),
		)
		return errorResponse(c, "generation failed", err)
	}

	return c.JSON(ReportResponse{Report: report, CacheHit: hit})
}

func (h *ReportHandler) GetReport(c *fiber.Ctx) error {
	report, err := h.engine.GetCachedReport(c.UserContext(), c.Params("key"))
	if err != nil {
		return errorResponse(c, "report lookup failed", err)
	}
	return c.JSON(report)
}

func (h *ReportHandler) SubmitFeedback(c *fiber.Ctx) error {
	var req struct {
		Rating   int    `json:"rating"`
		Feedback string `json:"feedback"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	key := c.Params("key")
	if err := h.engine.UpdateUserFeedback(c.UserContext(), key, req.Rating, req.Feedback); err != nil {
		return errorResponse(c, "feedback rejected", err)
	}

	logger.Info("Feedback stored", zap.String("scenario_key", key), zap.Int("rating", req.Rating))

	return c.JSON(fiber.Map{
		"status": "stored",
	})
}

func (h *ReportHandler) GetPerformance(c *fiber.Ctx) error {
	stats := h.engine.GetPerformanceStats()

	out := make(map[string]fiber.Map, len(stats))
	for model, s := range stats {
		out[model] = fiber.Map{
			"requests":         s.Requests,
			"successes":        s.Successes,
			"failures":         s.Failures,
			"total_latency_ms": s.TotalLatencyMs,
			"total_tokens":     s.TotalTokens,
			"success_rate":     s.SuccessRate(),
			"avg_latency_ms":   s.AvgLatencyMs(),
			"last_used":        s.LastUsed,
		}
	}

	return c.JSON(fiber.Map{
		"models": out,
	})
}

func (h *ReportHandler) CleanupCache(c *fiber.Ctx) error {
	maxAge := c.QueryInt("max_age_days", 0)
	if maxAge <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "max_age_days must be a positive integer",
		})
	}

	deleted, err := h.engine.CleanupCache(c.UserContext(), maxAge)
	if err != nil {
		return errorResponse(c, "cleanup failed", err)
	}

	return c.JSON(fiber.Map{
		"deleted":      deleted,
		"max_age_days": maxAge,
	})
}

func (h *ReportHandler) GetCacheStats(c *fiber.Ctx) error {
	stats, err := h.engine.CacheStats(c.UserContext())
	if err != nil {
		return errorResponse(c, "cache unavailable", err)
	}
	return c.JSON(stats)
}

func (h *ReportHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/reports", h.GenerateReport)
	router.Get("/reports/:key", h.GetReport)
	router.Put("/reports/:key/feedback", h.SubmitFeedback)
	router.Get("/performance", h.GetPerformance)
	router.Delete("/cache", h.CleanupCache)
	router.Get("/cache/stats", h.GetCacheStats)
}
