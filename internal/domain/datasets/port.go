package datasets

import "context"

// Repository port for dataset and webhook payload records
type Repository interface {
	SaveDataset(ctx context.Context, d *Dataset) error
	GetDataset(ctx context.Context, tenant string, id DatasetID) (*Dataset, error)
	SaveWebhookPayload(ctx context.Context, p *WebhookPayload) error
	GetWebhookPayload(ctx context.Context, tenant string, id WebhookPayloadID) (*WebhookPayload, error)
}
