package performance

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_RecordAndSnapshot(t *testing.T) {
	m := NewMonitor()
	m.Record("groq", "llama", 100, 50, true)
	m.Record("groq", "llama", 300, 0, false)
	m.Record("openai", "gpt", 200, 80, true)

	snap := m.Snapshot()
	require.Len(t, snap, 2)

	s := snap["groq/llama"]
	assert.Equal(t, int64(2), s.Requests)
	assert.Equal(t, int64(1), s.Successes)
	assert.Equal(t, int64(1), s.Failures)
	assert.Equal(t, int64(400), s.TotalLatencyMs)
	assert.Equal(t, int64(50), s.TotalTokens)
	assert.InDelta(t, 0.5, s.SuccessRate(), 1e-9)
	assert.InDelta(t, 200.0, s.AvgLatencyMs(), 1e-9)
	assert.False(t, s.LastUsed.IsZero())
}

func TestMonitor_SnapshotIsCopy(t *testing.T) {
	m := NewMonitor()
	m.Record("p", "m", 10, 1, true)

	snap := m.Snapshot()
	m.Record("p", "m", 10, 1, true)

	assert.Equal(t, int64(1), snap["p/m"].Requests)
	assert.Equal(t, int64(2), m.Snapshot()["p/m"].Requests)
}

func TestMonitor_Reset(t *testing.T) {
	m := NewMonitor()
	m.Record("p", "m", 10, 1, true)
	m.Reset()
	assert.Empty(t, m.Snapshot())
}

func TestMonitor_ConcurrentRecords(t *testing.T) {
	m := NewMonitor()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.Record("p", "m", 1, 1, i%2 == 0)
		}(i)
	}
	wg.Wait()

	s := m.Snapshot()["p/m"]
	assert.Equal(t, int64(50), s.Requests)
	assert.Equal(t, int64(25), s.Successes)
	assert.Equal(t, int64(25), s.Failures)
	assert.Equal(t, int64(50), s.TotalTokens)
}

func TestStats_ZeroRequests(t *testing.T) {
	var s Stats
	assert.Zero(t, s.SuccessRate())
	assert.Zero(t, s.AvgLatencyMs())
}
