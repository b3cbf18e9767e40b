package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	GenerationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "keyfindings_generation_duration_seconds",
			Help:    "End-to-end report generation duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 90},
		},
		[]string{"outcome"},
	)

	GenerationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyfindings_generation_total",
			Help: "Total report requests by outcome",
		},
		[]string{"outcome"},
	)

	LLMAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyfindings_llm_attempts_total",
			Help: "Provider attempts by model and result",
		},
		[]string{"provider", "model", "result"},
	)

	LLMLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "keyfindings_llm_latency_seconds",
			Help:    "Per-attempt provider latency in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "model"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyfindings_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"provider", "model"},
	)

	LLMCost = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyfindings_llm_cost_usd",
			Help: "Estimated LLM API cost in USD",
		},
		[]string{"provider", "model"},
	)

	ConfidenceScore = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "keyfindings_confidence_score",
			Help:    "Confidence of generated reports",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
		[]string{"structure"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyfindings_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"backend"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyfindings_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"backend"},
	)

	CacheEvictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyfindings_cache_evictions_total",
			Help: "Reports removed by retention cleanup",
		},
		[]string{"backend"},
	)

	UserRating = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "keyfindings_user_rating",
			Help:    "Ratings submitted for cached reports",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)
)

func Init() {
	prometheus.MustRegister(GenerationDuration)
	prometheus.MustRegister(GenerationTotal)
	prometheus.MustRegister(LLMAttempts)
	prometheus.MustRegister(LLMLatency)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(LLMCost)
	prometheus.MustRegister(ConfidenceScore)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(CacheEvictions)
	prometheus.MustRegister(UserRating)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
