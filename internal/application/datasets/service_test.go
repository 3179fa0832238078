package datasets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairlens/fairlens/internal/application"
	analyses "github.com/fairlens/fairlens/internal/domain/analyses"
	domain "github.com/fairlens/fairlens/internal/domain/datasets"
)

type fakeRepo struct {
	datasets []*domain.Dataset
	payloads []*domain.WebhookPayload
}

func (f *fakeRepo) SaveDataset(ctx context.Context, d *domain.Dataset) error {
	f.datasets = append(f.datasets, d)
	return nil
}

func (f *fakeRepo) GetDataset(ctx context.Context, tenant string, id domain.DatasetID) (*domain.Dataset, error) {
	for _, d := range f.datasets {
		if d.ID == id && d.TenantID == tenant {
			return d, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) SaveWebhookPayload(ctx context.Context, p *domain.WebhookPayload) error {
	f.payloads = append(f.payloads, p)
	return nil
}

func (f *fakeRepo) GetWebhookPayload(ctx context.Context, tenant string, id domain.WebhookPayloadID) (*domain.WebhookPayload, error) {
	for _, p := range f.payloads {
		if p.ID == id && p.TenantID == tenant {
			return p, nil
		}
	}
	return nil, nil
}

func TestRegisterDataset(t *testing.T) {
	repo := &fakeRepo{}
	svc := &Service{Repo: repo, Clock: application.SystemClock{}}

	d, err := svc.RegisterDataset(context.Background(), RegisterDatasetCommand{
		TenantID:    "t1",
		Bucket:      "uploads",
		Key:         "2026/hiring.csv",
		ContentType: "text/csv",
		Filename:    "hiring.csv",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, d.ID)
	assert.False(t, d.CreatedAt.IsZero())
	require.Len(t, repo.datasets, 1)

	got, err := svc.GetDataset(context.Background(), "t1", d.ID)
	require.NoError(t, err)
	assert.Equal(t, d, got)
}

func TestRegisterDatasetValidation(t *testing.T) {
	svc := &Service{Repo: &fakeRepo{}, Clock: application.SystemClock{}}

	_, err := svc.RegisterDataset(context.Background(), RegisterDatasetCommand{Key: "k.csv"})
	require.Error(t, err)
	assert.Equal(t, analyses.FaultValidation, analyses.KindOf(err))

	_, err = svc.RegisterDataset(context.Background(), RegisterDatasetCommand{TenantID: "t1"})
	require.Error(t, err)
	assert.Equal(t, analyses.FaultValidation, analyses.KindOf(err))
}

func TestReceiveWebhookPayload(t *testing.T) {
	repo := &fakeRepo{}
	svc := &Service{Repo: repo, Clock: application.SystemClock{}}

	body := []byte(`{"gender":"female","approved":true}`)
	p, err := svc.ReceiveWebhookPayload(context.Background(), "t1", "application/json", body)
	require.NoError(t, err)

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, body, p.Body)
	require.Len(t, repo.payloads, 1)
}

func TestReceiveWebhookPayloadRejectsEmptyBody(t *testing.T) {
	svc := &Service{Repo: &fakeRepo{}, Clock: application.SystemClock{}}

	_, err := svc.ReceiveWebhookPayload(context.Background(), "t1", "application/json", nil)
	require.Error(t, err)
	assert.Equal(t, analyses.FaultValidation, analyses.KindOf(err))
}
