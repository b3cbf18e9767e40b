// Package performance keeps per-model request counters for the running
// process.
package performance

import (
	"sync"
	"time"

	"github.com/keyfindings/backend/internal/metrics"
)

type Stats struct {
	Requests       int64     `json:"requests"`
	Successes      int64     `json:"successes"`
	Failures       int64     `json:"failures"`
	TotalLatencyMs int64     `json:"total_latency_ms"`
	TotalTokens    int64     `json:"total_tokens"`
	LastUsed       time.Time `json:"last_used"`
}

func (s Stats) SuccessRate() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.Successes) / float64(s.Requests)
}

func (s Stats) AvgLatencyMs() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.TotalLatencyMs) / float64(s.Requests)
}

// Monitor is safe for concurrent use. It is observational only.
type Monitor struct {
	mu    sync.Mutex
	stats map[string]*Stats
	now   func() time.Time
}

func NewMonitor() *Monitor {
	return &Monitor{
		stats: make(map[string]*Stats),
		now:   time.Now,
	}
}

func Key(provider, model string) string {
	return provider + "/" + model
}

func (m *Monitor) Record(provider, model string, latencyMs int64, tokens int, success bool) {
	m.mu.Lock()
	k := Key(provider, model)
	s, ok := m.stats[k]
	if !ok {
		s = &Stats{}
		m.stats[k] = s
	}
	s.Requests++
	if success {
		s.Successes++
	} else {
		s.Failures++
	}
	s.TotalLatencyMs += latencyMs
	s.TotalTokens += int64(tokens)
	s.LastUsed = m.now()
	m.mu.Unlock()

	result := "failure"
	if success {
		result = "success"
	}
	metrics.LLMAttempts.WithLabelValues(provider, model, result).Inc()
	metrics.LLMLatency.WithLabelValues(provider, model).Observe(float64(latencyMs) / 1000)
	if tokens > 0 {
		metrics.LLMTokensUsed.WithLabelValues(provider, model).Add(float64(tokens))
	}
}

// Snapshot returns a copy keyed by "provider/model".
func (m *Monitor) Snapshot() map[string]Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]Stats, len(m.stats))
	for k, s := range m.stats {
		out[k] = *s
	}
	return out
}

func (m *Monitor) Reset() {
	m.mu.Lock()
	m.stats = make(map[string]*Stats)
	m.mu.Unlock()
}
