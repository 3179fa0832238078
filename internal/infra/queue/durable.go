package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fairlens/fairlens/internal/domain/jobs"
)

// Config tunes delivery. Zero values fall back to the pipeline defaults:
// 3 attempts, 5s backoff base capped at 5m, 2s poll, 60s stall TTL.
type Config struct {
	MaxAttempts  int
	BackoffBase  time.Duration
	BackoffCap   time.Duration
	PollInterval time.Duration
	LockTTL      time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 5 * time.Second
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = 5 * time.Minute
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 60 * time.Second
	}
	return c
}

// Store is the durable backing for the queue. Claiming must hand a job
// to exactly one owner at a time; a stale lock (older than the stall
// cutoff) makes the job claimable again.
type Store interface {
	Insert(ctx context.Context, j *jobs.Job) error
	ClaimNext(ctx context.Context, owner string, now, stallCutoff time.Time) (job *jobs.Job, reclaimed bool, err error)
	MarkCompleted(ctx context.Context, id jobs.JobID, attempts int) error
	Reschedule(ctx context.Context, id jobs.JobID, attempts int, next time.Time, lastErr string) error
	MarkFailed(ctx context.Context, id jobs.JobID, attempts int, lastErr string) error
}

// Durable is the at-least-once queue over a SQL jobs table. One consumer
// goroutine pulls one job at a time; delivery order is FIFO by enqueue.
type Durable struct {
	store  Store
	cfg    Config
	log    *logrus.Logger
	owner  string
	events chan jobs.Event

	mu      sync.Mutex
	handler jobs.Handler
	started bool

	stop chan struct{}
	done chan struct{}
}

func NewDurable(store Store, cfg Config, log *logrus.Logger) *Durable {
	return &Durable{
		store:  store,
		cfg:    cfg.withDefaults(),
		log:    log,
		owner:  "worker-" + uuid.New().String()[:8],
		events: make(chan jobs.Event, 64),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Enqueue inserts a job due immediately and returns its id.
func (q *Durable) Enqueue(ctx context.Context, p jobs.Payload) (jobs.JobID, error) {
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
	if err := q.store.Insert(ctx, j); err != nil {
		return "", err
	}
	return j.ID, nil
}

// RegisterConsumer installs the handler and starts the consumer loop.
// Calling it more than once replaces the handler but keeps one loop.
func (q *Durable) RegisterConsumer(h jobs.Handler) {
	q.mu.Lock()
	q.handler = h
	start := !q.started
	q.started = true
	q.mu.Unlock()
	if start {
		go q.run()
	}
}

func (q *Durable) Events() <-chan jobs.Event { return q.events }

// Close stops the consumer, letting an in-flight job finish. A job cut
// off mid-attempt keeps its lock until the stall TTL releases it for
// re-delivery, which is why handlers must be idempotent.
func (q *Durable) Close(ctx context.Context) error {
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

func (q *Durable) run() {
	defer close(q.done)
	ctx := context.Background()
	for {
		select {
		case <-q.stop:
			return
		default:
		}
		if !q.processOnce(ctx) {
			select {
			case <-q.stop:
				return
			case <-time.After(q.cfg.PollInterval):
			}
		}
	}
}

// processOnce claims and runs at most one job. Returns whether a job was
// claimed, so the loop can drain a backlog without sleeping.
func (q *Durable) processOnce(ctx context.Context) bool {
	now := time.Now().UTC()
	job, reclaimed, err := q.store.ClaimNext(ctx, q.owner, now, now.Add(-q.cfg.LockTTL))
	if err != nil {
		q.emit(jobs.Event{Type: jobs.EventQueueError, Err: err.Error()})
		q.log.WithField("owner", q.owner).Errorf("queue claim failed: %v", err)
		return false
	}
	if job == nil {
		return false
	}
	if reclaimed {
		q.emit(jobs.Event{Type: jobs.EventStalled, JobID: job.ID, Attempt: job.Attempts})
		q.log.WithFields(logrus.Fields{
			"job_id": job.ID,
			"owner":  q.owner,
		}).Warn("reclaimed stalled job")
	}

	q.mu.Lock()
	handler := q.handler
	q.mu.Unlock()

	attempt := job.Attempts + 1
	q.emit(jobs.Event{Type: jobs.EventActive, JobID: job.ID, Attempt: attempt})

	herr := handler(ctx, job)
	if herr == nil {
		if err := q.store.MarkCompleted(ctx, job.ID, attempt); err != nil {
			q.emit(jobs.Event{Type: jobs.EventQueueError, JobID: job.ID, Err: err.Error()})
		}
		q.emit(jobs.Event{Type: jobs.EventCompleted, JobID: job.ID, Attempt: attempt})
		return true
	}

	if jobs.IsPermanent(herr) || attempt >= job.MaxAttempts {
		if err := q.store.MarkFailed(ctx, job.ID, attempt, herr.Error()); err != nil {
			q.emit(jobs.Event{Type: jobs.EventQueueError, JobID: job.ID, Err: err.Error()})
		}
		q.emit(jobs.Event{Type: jobs.EventFailed, JobID: job.ID, Attempt: attempt, Err: herr.Error()})
		q.log.WithFields(logrus.Fields{
			"job_id":  job.ID,
			"attempt": attempt,
		}).Errorf("job failed permanently: %v", herr)
		return true
	}

	next := time.Now().UTC().Add(jobs.Backoff(attempt, q.cfg.BackoffBase, q.cfg.BackoffCap))
	if err := q.store.Reschedule(ctx, job.ID, attempt, next, herr.Error()); err != nil {
		q.emit(jobs.Event{Type: jobs.EventQueueError, JobID: job.ID, Err: err.Error()})
	}
	q.log.WithFields(logrus.Fields{
		"job_id":       job.ID,
		"attempt":      attempt,
		"next_attempt": next,
	}).Warnf("job attempt failed, rescheduled: %v", herr)
	return true
}

// emit never blocks: a slow events consumer drops notifications, not jobs.
func (q *Durable) emit(e jobs.Event) {
	select {
	case q.events <- e:
	default:
	}
}
