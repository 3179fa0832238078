package activity

import "time"

// Action enum for audit entries
type Action string

const (
	ActionQueued    Action = "queued"
	ActionStarted   Action = "started"
	ActionCompleted Action = "completed"
	ActionFailed    Action = "failed"
)

// Entry represents a persisted audit record for one lifecycle transition
type Entry struct {
	ID          int64     `json:"id"`
	TenantID    string    `json:"tenant_id"`
	UserID      string    `json:"user_id"`
	AnalysisID  string    `json:"analysis_id"`
	Action      Action    `json:"action"`
	Message     string    `json:"message"`
	DetailsJSON string    `json:"details_json,omitempty"` // raw JSON string
	CreatedAt   time.Time `json:"created_at"`
}
