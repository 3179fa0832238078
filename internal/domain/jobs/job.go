package jobs

import (
	"math"
	"time"
)

// JobID identifier type
type JobID string

// State enum for delivery state
type State string

const (
	StateWaiting   State = "waiting"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Payload is the serialized unit of work bound to one analysis.
type Payload struct {
	AnalysisID   string `json:"analysis_id"`
	TenantID     string `json:"tenant_id"`
	InitiatedBy  string `json:"initiated_by"`
	AnalyzerType string `json:"analyzer_type"`
	SourceJSON   string `json:"source_json"`
}

// Job is one durable queue entry. Attempts counts finished delivery
// attempts; the attempt currently in flight is Attempts+1.
type Job struct {
	ID            JobID
	Payload       Payload
	Attempts      int
	MaxAttempts   int
	BackoffBase   time.Duration
	State         State
	NextAttemptAt time.Time
	LastError     string
	EnqueuedAt    time.Time
}

// FinalAttempt reports whether the in-flight attempt is the last one.
func (j *Job) FinalAttempt() bool {
	return j.Attempts+1 >= j.MaxAttempts
}

// Backoff returns the delay before a given retry: base * 2^(attempt-1),
// capped so a misbehaving job cannot park itself for hours.
func Backoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt-1)))
	if d > cap {
		return cap
	}
	return d
}
