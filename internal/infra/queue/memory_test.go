package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairlens/fairlens/internal/domain/jobs"
)

func testConfig() Config {
	return Config{
		MaxAttempts:  3,
		BackoffBase:  5 * time.Millisecond,
		BackoffCap:   50 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
		LockTTL:      time.Second,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestMemoryDeliversInOrder(t *testing.T) {
	q := NewMemory(testConfig())
	defer q.Close(context.Background())

	var mu sync.Mutex
	var got []string
	q.RegisterConsumer(func(ctx context.Context, job *jobs.Job) error {
		mu.Lock()
		got = append(got, job.Payload.AnalysisID)
		mu.Unlock()
		return nil
	})

	ids := make([]jobs.JobID, 0, 3)
	for _, a := range []string{"a1", "a2", "a3"} {
		id, err := q.Enqueue(context.Background(), jobs.Payload{AnalysisID: a})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	})

	mu.Lock()
	assert.Equal(t, []string{"a1", "a2", "a3"}, got)
	mu.Unlock()

	for _, id := range ids {
		assert.Equal(t, jobs.StateCompleted, q.Job(id).State)
	}
}

func TestMemoryRetriesUntilExhausted(t *testing.T) {
	q := NewMemory(testConfig())
	defer q.Close(context.Background())

	var mu sync.Mutex
	var attempts []time.Time
	q.RegisterConsumer(func(ctx context.Context, job *jobs.Job) error {
		mu.Lock()
		attempts = append(attempts, time.Now())
		mu.Unlock()
		return errors.New("downstream unavailable")
	})

	id, err := q.Enqueue(context.Background(), jobs.Payload{AnalysisID: "a1"})
	require.NoError(t, err)

	waitFor(t, func() bool {
		return q.Job(id).State == jobs.StateFailed
	})

	mu.Lock()
	require.Len(t, attempts, 3)
	mu.Unlock()

	j := q.Job(id)
	assert.Equal(t, 3, j.Attempts)
	assert.Contains(t, j.LastError, "downstream unavailable")
}

func TestMemoryPermanentErrorSkipsRetries(t *testing.T) {
	q := NewMemory(testConfig())
	defer q.Close(context.Background())

	var mu sync.Mutex
	calls := 0
	q.RegisterConsumer(func(ctx context.Context, job *jobs.Job) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return jobs.Permanent(errors.New("bad payload"))
	})

	id, err := q.Enqueue(context.Background(), jobs.Payload{AnalysisID: "a1"})
	require.NoError(t, err)

	waitFor(t, func() bool {
		return q.Job(id).State == jobs.StateFailed
	})

	mu.Lock()
	assert.Equal(t, 1, calls)
	mu.Unlock()
	assert.Equal(t, 1, q.Job(id).Attempts)
}

func TestMemoryEmitsLifecycleEvents(t *testing.T) {
	q := NewMemory(testConfig())
	defer q.Close(context.Background())

	q.RegisterConsumer(func(ctx context.Context, job *jobs.Job) error {
		if job.Attempts == 0 {
			return errors.New("first attempt fails")
		}
		return nil
	})

	id, err := q.Enqueue(context.Background(), jobs.Payload{AnalysisID: "a1"})
	require.NoError(t, err)

	waitFor(t, func() bool {
		return q.Job(id).State == jobs.StateCompleted
	})

	var types []jobs.EventType
	drain := true
	for drain {
		select {
		case ev := <-q.Events():
			types = append(types, ev.Type)
		default:
			drain = false
		}
	}
	assert.Equal(t, []jobs.EventType{jobs.EventActive, jobs.EventActive, jobs.EventCompleted}, types)
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	base := 5 * time.Second
	limit := 5 * time.Minute

	assert.Equal(t, 5*time.Second, jobs.Backoff(1, base, limit))
	assert.Equal(t, 10*time.Second, jobs.Backoff(2, base, limit))
	assert.Equal(t, 20*time.Second, jobs.Backoff(3, base, limit))
	assert.Equal(t, limit, jobs.Backoff(12, base, limit))
}

func TestMemoryBackoffDelaysRedelivery(t *testing.T) {
	cfg := testConfig()
	cfg.BackoffBase = 30 * time.Millisecond
	q := NewMemory(cfg)
	defer q.Close(context.Background())

	var mu sync.Mutex
	var stamps []time.Time
	q.RegisterConsumer(func(ctx context.Context, job *jobs.Job) error {
		mu.Lock()
		stamps = append(stamps, time.Now())
		mu.Unlock()
		if job.Attempts == 0 {
			return errors.New("retry me")
		}
		return nil
	})

	id, err := q.Enqueue(context.Background(), jobs.Payload{AnalysisID: "a1"})
	require.NoError(t, err)

	waitFor(t, func() bool {
		return q.Job(id).State == jobs.StateCompleted
	})

	mu.Lock()
	require.Len(t, stamps, 2)
	gap := stamps[1].Sub(stamps[0])
	mu.Unlock()
	assert.GreaterOrEqual(t, gap, 30*time.Millisecond)
}

func TestMemoryCloseStopsConsumer(t *testing.T) {
	q := NewMemory(testConfig())
	q.RegisterConsumer(func(ctx context.Context, job *jobs.Job) error { return nil })

	require.NoError(t, q.Close(context.Background()))

	// enqueue after close must not deliver
	id, err := q.Enqueue(context.Background(), jobs.Payload{AnalysisID: "late"})
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, jobs.StateWaiting, q.Job(id).State)
}
