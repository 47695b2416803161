package processor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingReplies_OverwriteAndTake(t *testing.T) {
	p := NewPendingReplies("rep-1", 10)
	t0 := time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)

	p.Start(42, t0)
	p.Start(42, t0.Add(time.Minute))
	assert.Equal(t, 1, p.Len())

	since, ok := p.Take(42)
	require.True(t, ok)
	assert.Equal(t, t0.Add(time.Minute), since)

	_, ok = p.Take(42)
	assert.False(t, ok)
	assert.Equal(t, 0, p.Len())
}

func TestPendingReplies_EvictsOldestOnOverflow(t *testing.T) {
	p := NewPendingReplies("rep-1", 2)
	t0 := time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)

	p.Start(1, t0)
	p.Start(2, t0)
	p.Start(1, t0.Add(time.Minute)) // refreshes 1, so 2 is now oldest
	p.Start(3, t0.Add(2*time.Minute))

	assert.Equal(t, 2, p.Len())
	_, ok := p.Take(2)
	assert.False(t, ok)
	_, ok = p.Take(1)
	assert.True(t, ok)
	_, ok = p.Take(3)
	assert.True(t, ok)
}

func TestNewPendingReplies_DefaultLimit(t *testing.T) {
	p := NewPendingReplies("rep-1", 0)
	assert.Equal(t, DefaultPendingLimit, p.limit)
}
