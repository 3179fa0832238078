package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/fairlens/fairlens/internal/domain/jobs"
)

// JobStore is the durable queue backing table. Claiming uses
// FOR UPDATE SKIP LOCKED so concurrent pipeline instances never hold the
// same job; stale locks are reclaimed after the stall cutoff.
type JobStore struct {
	db *sql.DB
}

func NewJobStore(db *sql.DB) *JobStore {
	return &JobStore{db: db}
}

func (s *JobStore) Insert(ctx context.Context, j *jobs.Job) error {
	const q = `
INSERT INTO analysis_jobs
(id, tenant_id, payload_json, attempts, max_attempts, backoff_base_ms, state, next_attempt_at, enqueued_at)
VALUES (?,?,?,?,?,?,?,?,?);
`
	payload, err := json.Marshal(j.Payload)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, q,
		j.ID, j.Payload.TenantID, string(payload),
		j.Attempts, j.MaxAttempts, j.BackoffBase.Milliseconds(),
		j.State, j.NextAttemptAt, j.EnqueuedAt,
	)
	return err
}

// ClaimNext locks the oldest due job (FIFO by enqueue time). A row whose
// lock expired counts as reclaimed so the queue can emit a stalled event.
func (s *JobStore) ClaimNext(ctx context.Context, owner string, now, stallCutoff time.Time) (*jobs.Job, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	const q = `
SELECT id, payload_json, attempts, max_attempts, backoff_base_ms, state, next_attempt_at, locked_by, last_error, enqueued_at
FROM analysis_jobs
WHERE (state = 'waiting' AND next_attempt_at <= ? AND locked_at IS NULL)
   OR (state = 'active' AND locked_at <= ?)
ORDER BY enqueued_at ASC, id ASC
LIMIT 1
FOR UPDATE SKIP LOCKED;
`
	row := tx.QueryRowContext(ctx, q, now, stallCutoff)

	var (
		j         jobs.Job
		payload   string
		backoffMS int64
		lockedBy  sql.NullString
		lastErr   sql.NullString
	)
	if err := row.Scan(&j.ID, &payload, &j.Attempts, &j.MaxAttempts, &backoffMS,
		&j.State, &j.NextAttemptAt, &lockedBy, &lastErr, &j.EnqueuedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	if err := json.Unmarshal([]byte(payload), &j.Payload); err != nil {
		return nil, false, err
	}
	j.BackoffBase = time.Duration(backoffMS) * time.Millisecond
	j.LastError = lastErr.String
	reclaimed := j.State == jobs.StateActive && lockedBy.Valid

	const upd = `
UPDATE analysis_jobs
SET state = 'active', locked_at = ?, locked_by = ?
WHERE id = ?;
`
	if _, err := tx.ExecContext(ctx, upd, now, owner, j.ID); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	j.State = jobs.StateActive
	return &j, reclaimed, nil
}

func (s *JobStore) MarkCompleted(ctx context.Context, id jobs.JobID, attempts int) error {
	const q = `
UPDATE analysis_jobs
SET state = 'completed', attempts = ?, locked_at = NULL, locked_by = NULL, last_error = NULL
WHERE id = ?;
`
	_, err := s.db.ExecContext(ctx, q, attempts, id)
	return err
}

func (s *JobStore) Reschedule(ctx context.Context, id jobs.JobID, attempts int, next time.Time, lastErr string) error {
	const q = `
UPDATE analysis_jobs
SET state = 'waiting', attempts = ?, next_attempt_at = ?, last_error = ?, locked_at = NULL, locked_by = NULL
WHERE id = ?;
`
	_, err := s.db.ExecContext(ctx, q, attempts, next, lastErr, id)
	return err
}

func (s *JobStore) MarkFailed(ctx context.Context, id jobs.JobID, attempts int, lastErr string) error {
	const q = `
UPDATE analysis_jobs
SET state = 'failed', attempts = ?, last_error = ?, locked_at = NULL, locked_by = NULL
WHERE id = ?;
`
	_, err := s.db.ExecContext(ctx, q, attempts, lastErr, id)
	return err
}
