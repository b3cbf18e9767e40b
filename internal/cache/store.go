// Package cache is the content-addressed report store. A Store adds hit/miss
// accounting, per-key write serialization and error classification on top of
// a persistence Backend.
package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/keyfindings/backend/internal/metrics"
	"github.com/keyfindings/backend/internal/storage/models"
	"github.com/keyfindings/backend/pkg/errs"
	"github.com/keyfindings/backend/pkg/logger"
)

const MaxFeedbackLength = 2000

// Backend persists reports. Load returns (nil, nil) on a miss and, on a hit,
// increments the access count and sets the access time in one step.
type Backend interface {
	Name() string
	Load(ctx context.Context, key string, accessedAt time.Time) (*models.CachedReport, error)
	Save(ctx context.Context, report *models.CachedReport) error
	UpdateFeedback(ctx context.Context, key string, rating int, feedback string) (bool, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	Count(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

type Stats struct {
	Backend string `json:"backend"`
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
}

func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type Store struct {
	backend Backend
	now     func() time.Time

	hits   atomic.Int64
	misses atomic.Int64

	locksMu sync.Mutex
	locks   map[string]*keyLock
}

type keyLock struct {
	sync.Mutex
	refs int
}

type Option func(*Store)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		now:     time.Now,
		locks:   make(map[string]*keyLock),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Backend() string {
	return s.backend.Name()
}

// Get is a read-through lookup. A hit advances AccessCount and
// LastAccessedAt and returns the updated record.
func (s *Store) Get(ctx context.Context, key string) (*models.CachedReport, bool, error) {
	report, err := s.load(ctx, key)
	switch {
	case err != nil:
		s.miss()
		return nil, false, err
	case report == nil:
		s.miss()
		return nil, false, nil
	}

	s.hits.Add(1)
	metrics.CacheHits.WithLabelValues(s.backend.Name()).Inc()
	return report, true, nil
}

// Recheck is Get without hit/miss accounting, for a caller that already
// counted its lookup of key. A found record is still touched.
func (s *Store) Recheck(ctx context.Context, key string) (*models.CachedReport, bool, error) {
	report, err := s.load(ctx, key)
	if err != nil || report == nil {
		return nil, false, err
	}
	return report, true, nil
}

func (s *Store) load(ctx context.Context, key string) (*models.CachedReport, error) {
	report, err := s.backend.Load(ctx, key, s.now())
	if err != nil {
		return nil, errs.CacheUnavailable("cache.get", err)
	}
	return report, nil
}

func (s *Store) miss() {
	s.misses.Add(1)
	metrics.CacheMisses.WithLabelValues(s.backend.Name()).Inc()
}

// Put upserts report under key and returns once the backend has committed.
// It fills ID, timestamps and AccessCount on the passed report.
func (s *Store) Put(ctx context.Context, key string, report *models.CachedReport) error {
	unlock := s.lock(key)
	defer unlock()

	now := s.now()
	report.ScenarioKey = key
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	report.CreatedAt = now
	report.LastAccessedAt = now
	report.AccessCount = 1

	if err := s.backend.Save(ctx, report); err != nil {
		return errs.CacheUnavailable("cache.put", err)
	}
	return nil
}

func (s *Store) UpdateFeedback(ctx context.Context, key string, rating int, feedback string) error {
	if rating < 1 || rating > 5 {
		return errs.InvalidFeedback(fmt.Sprintf("rating must be between 1 and 5, got %d", rating))
	}
	if utf8.RuneCountInString(feedback) > MaxFeedbackLength {
		return errs.InvalidFeedback(fmt.Sprintf("feedback exceeds %d characters", MaxFeedbackLength))
	}

	unlock := s.lock(key)
	defer unlock()

	ok, err := s.backend.UpdateFeedback(ctx, key, rating, feedback)
	if err != nil {
		return errs.CacheUnavailable("cache.feedback", err)
	}
	if !ok {
		return errs.NotFound(key)
	}

	metrics.UserRating.Observe(float64(rating))
	return nil
}

// Cleanup deletes reports not accessed within maxAgeDays.
func (s *Store) Cleanup(ctx context.Context, maxAgeDays int) (int64, error) {
	if maxAgeDays <= 0 {
		return 0, errs.Configuration(fmt.Sprintf("maxAgeDays must be positive, got %d", maxAgeDays), nil)
	}

	cutoff := s.now().Add(-time.Duration(maxAgeDays) * 24 * time.Hour)
	n, err := s.backend.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, errs.CacheUnavailable("cache.cleanup", err)
	}

	metrics.CacheEvictions.WithLabelValues(s.backend.Name()).Add(float64(n))
	logger.Info("Cache cleanup finished",
		zap.String("backend", s.backend.Name()),
		zap.Int("max_age_days", maxAgeDays),
		zap.Int64("deleted", n),
	)
	return n, nil
}

// RunRetention calls Cleanup every interval until ctx is done.
func (s *Store) RunRetention(ctx context.Context, interval time.Duration, maxAgeDays int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Cleanup(ctx, maxAgeDays); err != nil {
				logger.Warn("Retention cleanup failed", zap.Error(err))
			}
		}
	}
}

func (s *Store) Stats() Stats {
	return Stats{
		Backend: s.backend.Name(),
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
	}
}

func (s *Store) Size(ctx context.Context) (int64, error) {
	n, err := s.backend.Count(ctx)
	if err != nil {
		return 0, errs.CacheUnavailable("cache.size", err)
	}
	return n, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.backend.Ping(ctx); err != nil {
		return errs.CacheUnavailable("cache.ping", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) lock(key string) func() {
	s.locksMu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &keyLock{}
		s.locks[key] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, key)
		}
		s.locksMu.Unlock()
	}
}
