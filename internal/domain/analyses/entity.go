package analyses

import (
	"time"
)

// AnalysisID identifier type
type AnalysisID string

// AnalyzerType enum
type AnalyzerType string

const (
	AnalyzerBias AnalyzerType = "bias"
	AnalyzerPII  AnalyzerType = "pii"
)

// Status enum
type Status string

const (
	StatusPending    Status = "pending"
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether a status can never change again.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// SourceKind enum
type SourceKind string

const (
	SourceDataset SourceKind = "dataset"
	SourceWebhook SourceKind = "webhook"
)

// SourceDescriptor points at the data an analysis consumes. Exactly one
// of DatasetID / WebhookPayloadID is set, depending on Kind.
type SourceDescriptor struct {
	Kind             SourceKind `json:"kind"`
	DatasetID        string     `json:"dataset_id,omitempty"`
	WebhookPayloadID string     `json:"webhook_payload_id,omitempty"`
	OutcomeColumn    string     `json:"outcome_column,omitempty"`
}

// Aggregate Root: Analysis
type Analysis struct {
	ID            AnalysisID       `json:"id"`
	TenantID      string           `json:"tenant_id"`
	AnalyzerType  AnalyzerType     `json:"analyzer_type"`
	Status        Status           `json:"status"`
	Source        SourceDescriptor `json:"source"`
	InitiatedBy   string           `json:"initiated_by"`
	ResultLocator string           `json:"result_locator,omitempty"`
	ErrorSummary  string           `json:"error_summary,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
}
