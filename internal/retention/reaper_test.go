package retention_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kiranshivaraju/aigrader/internal/retention"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePurger struct {
	mu      sync.Mutex
	cutoffs []time.Time
	n       int64
	err     error
}

func (f *fakePurger) PurgeTasksBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.n, f.err
}

func (f *fakePurger) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cutoffs)
}

func TestNewReaper_InvalidSchedule(t *testing.T) {
	_, err := retention.NewReaper(&fakePurger{}, "every now and then", time.Hour, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retention schedule")
}

func TestNewReaper_InvalidRetention(t *testing.T) {
	_, err := retention.NewReaper(&fakePurger{}, "@hourly", 0, nil)
	require.Error(t, err)
}

func TestNewReaper_AcceptsDescriptorsAndFiveFields(t *testing.T) {
	for _, spec := range []string{"@hourly", "@daily", "@every 10m", "*/15 * * * *"} {
		_, err := retention.NewReaper(&fakePurger{}, spec, time.Hour, nil)
		assert.NoError(t, err, spec)
	}
}

func TestNext(t *testing.T) {
	r, err := retention.NewReaper(&fakePurger{}, "@hourly", time.Hour, nil)
	require.NoError(t, err)

	from := time.Date(2026, 3, 1, 10, 20, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC), r.Next(from))
}

func TestRunOnce_UsesRetentionWindow(t *testing.T) {
	p := &fakePurger{n: 3}
	r, err := retention.NewReaper(p, "@hourly", 7*24*time.Hour, nil)
	require.NoError(t, err)

	before := time.Now().UTC()
	n, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	require.Len(t, p.cutoffs, 1)
	assert.WithinDuration(t, before.Add(-7*24*time.Hour), p.cutoffs[0], time.Second)
}

func TestRunOnce_Error(t *testing.T) {
	p := &fakePurger{err: errors.New("db down")}
	r, err := retention.NewReaper(p, "@hourly", time.Hour, nil)
	require.NoError(t, err)

	_, err = r.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestRun_FiresOnScheduleAndStops(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for a scheduled run")
	}
	p := &fakePurger{}
	r, err := retention.NewReaper(p, "@every 1s", time.Hour, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return p.calls() >= 1 }, 3*time.Second, 50*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("reaper did not stop")
	}
}
