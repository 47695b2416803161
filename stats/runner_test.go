package stats

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NextMind-AI/repstats/memstore"
	"github.com/NextMind-AI/repstats/records"
)

type staticReps []records.Representative

func (s staticReps) Representatives() []records.Representative { return s }

// gatedStore blocks conversation reads until the gate is closed.
type gatedStore struct {
	*memstore.Store
	gate  chan struct{}
	reads atomic.Int32
}

func (g *gatedStore) ConversationsBetween(ctx context.Context, rep string, from, to time.Time) ([]records.ConversationRecord, error) {
	g.reads.Add(1)
	<-g.gate
	return g.Store.ConversationsBetween(ctx, rep, from, to)
}

func TestRunner_RunOnceComputesEveryRepresentative(t *testing.T) {
	store := memstore.New()
	now := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)
	add(t, store, "anna", 1, now.Add(-time.Hour), records.Inbound, isNew)

	runner := NewRunner(NewAggregator(store, time.UTC, fixedClock(now)), staticReps{anna, boris}, time.Minute)
	require.True(t, runner.RunOnce(context.Background()))

	rows, err := store.DailyStatsBetween(context.Background(), "anna", "2026-06-10", "2026-06-10")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].NewCounterparts)

	rows, err = store.DailyStatsBetween(context.Background(), "boris", "2026-06-10", "2026-06-10")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestRunner_SkipsOverlappingRun(t *testing.T) {
	store := &gatedStore{Store: memstore.New(), gate: make(chan struct{})}
	runner := NewRunner(NewAggregator(store, time.UTC), staticReps{boris}, time.Minute)

	done := make(chan bool)
	go func() { done <- runner.RunOnce(context.Background()) }()
	require.Eventually(t, func() bool { return store.reads.Load() == 1 }, time.Second, 5*time.Millisecond)

	assert.False(t, runner.RunOnce(context.Background()), "second run must be skipped")

	close(store.gate)
	assert.True(t, <-done)
	assert.Equal(t, int32(1), store.reads.Load())
}

func TestRunner_ComputeDailyWaitsForRun(t *testing.T) {
	store := &gatedStore{Store: memstore.New(), gate: make(chan struct{})}
	runner := NewRunner(NewAggregator(store, time.UTC), staticReps{boris}, time.Minute)

	done := make(chan bool)
	go func() { done <- runner.RunOnce(context.Background()) }()
	require.Eventually(t, func() bool { return store.reads.Load() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := runner.ComputeDaily(ctx, boris, "2026-06-10")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), store.reads.Load(), "no computation while the run holds the rows")

	computed := make(chan error, 1)
	go func() {
		_, err := runner.ComputeDaily(context.Background(), boris, "2026-06-10")
		computed <- err
	}()

	close(store.gate)
	assert.True(t, <-done)
	require.NoError(t, <-computed)
	assert.Equal(t, int32(2), store.reads.Load())

	rows, err := store.DailyStatsBetween(context.Background(), "boris", "2026-06-10", "2026-06-10")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestRunner_RunStopsWithContext(t *testing.T) {
	store := memstore.New()
	runner := NewRunner(NewAggregator(store, time.UTC), staticReps{boris}, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		runner.Run(ctx)
		close(stopped)
	}()

	require.Eventually(t, func() bool {
		rows, _ := store.DailyStatsBetween(context.Background(), "boris", "0000-01-01", "9999-12-31")
		return len(rows) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}
}

func TestNewRunner_DefaultInterval(t *testing.T) {
	r := NewRunner(NewAggregator(memstore.New(), nil), staticReps{}, 0)
	assert.Equal(t, DefaultInterval, r.interval)
}
