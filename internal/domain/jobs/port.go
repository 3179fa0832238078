package jobs

import "context"

// Handler consumes one delivered job. Returning nil marks the attempt
// completed. A retryable error re-schedules the job with backoff until
// attempts run out; a non-retryable error fails the job permanently.
type Handler func(ctx context.Context, job *Job) error

// EventType enum for queue lifecycle events
type EventType string

const (
	EventActive     EventType = "active"
	EventCompleted  EventType = "completed"
	EventFailed     EventType = "failed"
	EventStalled    EventType = "stalled"
	EventQueueError EventType = "queue-error"
)

// Event is a queue lifecycle notification. Best-effort: consumers that
// fall behind lose events, never deliveries.
type Event struct {
	Type    EventType
	JobID   JobID
	Attempt int
	Err     string
}

// Queue port: durable at-least-once work distribution. FIFO per queue,
// one owner per in-flight attempt, no cross-job ordering guarantee.
type Queue interface {
	Enqueue(ctx context.Context, p Payload) (JobID, error)
	RegisterConsumer(h Handler)
	Events() <-chan Event
	Close(ctx context.Context) error
}
