package cache

import (
	"context"
	"sync"
	"time"

	"github.com/keyfindings/backend/internal/storage/models"
)

// MemoryBackend keeps reports in process memory. Reports are copied on the
// way in and out.
type MemoryBackend struct {
	mu      sync.RWMutex
	reports map[string]*models.CachedReport
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{reports: make(map[string]*models.CachedReport)}
}

func (m *MemoryBackend) Name() string { return "memory" }

func (m *MemoryBackend) Load(ctx context.Context, key string, accessedAt time.Time) (*models.CachedReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reports[key]
	if !ok {
		return nil, nil
	}
	r.AccessCount++
	r.LastAccessedAt = accessedAt
	return r.Clone(), nil
}

func (m *MemoryBackend) Save(ctx context.Context, report *models.CachedReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	m.reports[report.ScenarioKey] = report.Clone()
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) UpdateFeedback(ctx context.Context, key string, rating int, feedback string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reports[key]
	if !ok {
		return false, nil
	}
	r.UserRating = &rating
	r.UserFeedback = &feedback
	return true, nil
}

func (m *MemoryBackend) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for key, r := range m.reports {
		if r.LastAccessedAt.Before(cutoff) {
			delete(m.reports, key)
			n++
		}
	}
	return n, nil
}

func (m *MemoryBackend) Count(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.reports)), nil
}

func (m *MemoryBackend) Ping(ctx context.Context) error { return ctx.Err() }

func (m *MemoryBackend) Close() error { return nil }
