package datasets

import (
	"context"

	"github.com/google/uuid"

	"github.com/fairlens/fairlens/internal/application"
	analyses "github.com/fairlens/fairlens/internal/domain/analyses"
	domain "github.com/fairlens/fairlens/internal/domain/datasets"
)

// Service implements dataset registration and the inbound webhook
// receiver. The receiver persists the raw payload; the pipeline only
// ever sees its reference id.
type Service struct {
	Repo  domain.Repository
	Clock application.Clock
}

// Command to register dataset metadata
type RegisterDatasetCommand struct {
	TenantID    string
	Bucket      string
	Key         string
	ContentType string
	Filename    string
}

func (s *Service) RegisterDataset(ctx context.Context, cmd RegisterDatasetCommand) (*domain.Dataset, error) {
	if cmd.TenantID == "" {
		return nil, analyses.Validationf("tenant id is required")
	}
	if cmd.Key == "" {
		return nil, analyses.Validationf("object key is required")
	}
	d := &domain.Dataset{
		ID:          domain.DatasetID(uuid.New().String()),
		TenantID:    cmd.TenantID,
		Bucket:      cmd.Bucket,
		Key:         cmd.Key,
		ContentType: cmd.ContentType,
		Filename:    cmd.Filename,
		CreatedAt:   s.Clock.Now(),
	}
	if err := s.Repo.SaveDataset(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// ReceiveWebhookPayload stores an inbound body verbatim and returns the
// persisted reference.
func (s *Service) ReceiveWebhookPayload(ctx context.Context, tenant, contentType string, body []byte) (*domain.WebhookPayload, error) {
	if tenant == "" {
		return nil, analyses.Validationf("tenant id is required")
	}
	if len(body) == 0 {
		return nil, analyses.Validationf("webhook payload is empty")
	}
	p := &domain.WebhookPayload{
		ID:          domain.WebhookPayloadID(uuid.New().String()),
		TenantID:    tenant,
		ContentType: contentType,
		Body:        body,
		ReceivedAt:  s.Clock.Now(),
	}
	if err := s.Repo.SaveWebhookPayload(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// GetDataset by id; nil when absent
func (s *Service) GetDataset(ctx context.Context, tenant string, id domain.DatasetID) (*domain.Dataset, error) {
	return s.Repo.GetDataset(ctx, tenant, id)
}
