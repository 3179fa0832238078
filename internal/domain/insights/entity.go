package insights

import "time"

// InsightID identifier type
type InsightID string

// Insight represents an AI narrative stored for auditing and retrieval
type Insight struct {
	ID         InsightID `json:"id"`
	TenantID   string    `json:"tenant_id"`
	AnalysisID string    `json:"analysis_id"`
	Locator    string    `json:"locator"`
	Result     string    `json:"result"` // JSON string from AI
	CreatedAt  time.Time `json:"created_at"`
}
