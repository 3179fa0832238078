package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fairlens/fairlens/internal/domain/jobs"
)

// Memory is an in-process queue with the same delivery semantics as
// Durable (FIFO, retries with backoff, single consumer). It backs tests
// and local runs without a database; nothing survives a restart.
type Memory struct {
	cfg    Config
	events chan jobs.Event

	mu      sync.Mutex
	queue   []*jobs.Job
	handler jobs.Handler
	started bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

func NewMemory(cfg Config) *Memory {
	return &Memory{
		cfg:    cfg.withDefaults(),
		events: make(chan jobs.Event, 64),
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (q *Memory) Enqueue(_ context.Context, p jobs.Payload) (jobs.JobID, error) {
	now := time.Now().UTC()
	j := &jobs.Job{
		ID:            jobs.JobID(uuid.New().String()),
		Payload:       p,
		MaxAttempts:   q.cfg.MaxAttempts,
		BackoffBase:   q.cfg.BackoffBase,
		State:         jobs.StateWaiting,
		NextAttemptAt: now,
		EnqueuedAt:    now,
	}
	q.mu.Lock()
	q.queue = append(q.queue, j)
	q.mu.Unlock()
	q.notify()
	return j.ID, nil
}

func (q *Memory) RegisterConsumer(h jobs.Handler) {
	q.mu.Lock()
	q.handler = h
	start := !q.started
	q.started = true
	q.mu.Unlock()
	if start {
		go q.run()
	}
}

func (q *Memory) Events() <-chan jobs.Event { return q.events }

func (q *Memory) Close(ctx context.Context) error {
	q.mu.Lock()
	started := q.started
	q.mu.Unlock()

	close(q.stop)
	if !started {
		return nil
	}
	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Job returns a snapshot of one queue entry, for tests and inspection.
func (q *Memory) Job(id jobs.JobID) *jobs.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, j := range q.queue {
		if j.ID == id {
			snap := *j
			return &snap
		}
	}
	return nil
}

func (q *Memory) run() {
	defer close(q.done)
	ctx := context.Background()
	for {
		select {
		case <-q.stop:
			return
		default:
		}

		job, wait := q.claim()
		if job == nil {
			select {
			case <-q.stop:
				return
			case <-q.wake:
			case <-time.After(wait):
			}
			continue
		}
		q.deliver(ctx, job)
	}
}

// claim pops the oldest due waiting job, or reports how long to sleep.
func (q *Memory) claim() (*jobs.Job, time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now().UTC()
	wait := q.cfg.PollInterval
	for _, j := range q.queue {
		if j.State != jobs.StateWaiting {
			continue
		}
		if !j.NextAttemptAt.After(now) {
			j.State = jobs.StateActive
			snap := *j
			return &snap, 0
		}
		if d := j.NextAttemptAt.Sub(now); d < wait {
			wait = d
		}
	}
	return nil, wait
}

func (q *Memory) deliver(ctx context.Context, job *jobs.Job) {
	q.mu.Lock()
	handler := q.handler
	q.mu.Unlock()

	attempt := job.Attempts + 1
	q.emit(jobs.Event{Type: jobs.EventActive, JobID: job.ID, Attempt: attempt})

	err := handler(ctx, job)

	q.mu.Lock()
	stored := q.find(job.ID)
	switch {
	case err == nil:
		stored.State = jobs.StateCompleted
		stored.Attempts = attempt
	case jobs.IsPermanent(err) || attempt >= job.MaxAttempts:
		stored.State = jobs.StateFailed
		stored.Attempts = attempt
		stored.LastError = err.Error()
	default:
		stored.State = jobs.StateWaiting
		stored.Attempts = attempt
		stored.LastError = err.Error()
		stored.NextAttemptAt = time.Now().UTC().Add(jobs.Backoff(attempt, q.cfg.BackoffBase, q.cfg.BackoffCap))
	}
	q.mu.Unlock()

	switch {
	case err == nil:
		q.emit(jobs.Event{Type: jobs.EventCompleted, JobID: job.ID, Attempt: attempt})
	case jobs.IsPermanent(err) || attempt >= job.MaxAttempts:
		q.emit(jobs.Event{Type: jobs.EventFailed, JobID: job.ID, Attempt: attempt, Err: err.Error()})
	default:
		q.notify()
	}
}

func (q *Memory) find(id jobs.JobID) *jobs.Job {
	for _, j := range q.queue {
		if j.ID == id {
			return j
		}
	}
	return &jobs.Job{ID: id}
}

func (q *Memory) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Memory) emit(e jobs.Event) {
	select {
	case q.events <- e:
	default:
	}
}
