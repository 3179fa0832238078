package datasets

import "time"

// DatasetID identifier type
type DatasetID string

// Dataset is metadata for an object stored in the artifact store. The
// pipeline only reads the locator (bucket/key) and the content type; the
// bytes themselves live in object storage.
type Dataset struct {
	ID          DatasetID `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Bucket      string    `json:"bucket"`
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	Filename    string    `json:"filename,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// WebhookPayloadID identifier type
type WebhookPayloadID string

// WebhookPayload is an inbound payload persisted verbatim by the HTTP
// receiver. The worker reads the resident body, never the wire.
type WebhookPayload struct {
	ID          WebhookPayloadID `json:"id"`
	TenantID    string           `json:"tenant_id"`
	ContentType string           `json:"content_type"`
	Body        []byte           `json:"-"`
	ReceivedAt  time.Time        `json:"received_at"`
}
