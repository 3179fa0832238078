package postgres

import (
    "context"
    "database/sql"
    "time"

    domain "github.com/fairlens/fairlens/internal/domain/datasets"
)

type DatasetRepository struct { db *sql.DB }

func NewDatasetRepository(db *sql.DB) *DatasetRepository { return &DatasetRepository{db: db} }

// SaveDataset insert/update dataset metadata
func (r *DatasetRepository) SaveDataset(ctx context.Context, d *domain.Dataset) error {
    const q = `
INSERT INTO datasets
(id, tenant_id, bucket, object_key, content_type, filename, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET
 bucket=EXCLUDED.bucket, object_key=EXCLUDED.object_key,
 content_type=EXCLUDED.content_type, filename=EXCLUDED.filename;`
    created := d.CreatedAt
    if created.IsZero() { created = time.Now() }
    _, err := r.db.ExecContext(ctx, q,
        d.ID, stringOrDash(d.TenantID), d.Bucket, d.Key, d.ContentType, d.Filename, created,
    )
    return err
}

// GetDataset by ID + Tenant; nil when absent
func (r *DatasetRepository) GetDataset(ctx context.Context, tenant string, id domain.DatasetID) (*domain.Dataset, error) {
    const q = `
SELECT id, tenant_id, bucket, object_key, content_type, filename, created_at
FROM datasets
WHERE tenant_id=$1 AND id=$2
LIMIT 1;`
    var d domain.Dataset
    err := r.db.QueryRowContext(ctx, q, tenant, id).
        Scan(&d.ID, &d.TenantID, &d.Bucket, &d.Key, &d.ContentType, &d.Filename, &d.CreatedAt)
    if err == sql.ErrNoRows { return nil, nil }
    if err != nil { return nil, err }
    return &d, nil
}

// SaveWebhookPayload persists an inbound payload verbatim
func (r *DatasetRepository) SaveWebhookPayload(ctx context.Context, p *domain.WebhookPayload) error {
    const q = `
INSERT INTO webhook_payloads
(id, tenant_id, content_type, body, received_at)
VALUES ($1,$2,$3,$4,$5);`
    received := p.ReceivedAt
    if received.IsZero() { received = time.Now() }
    _, err := r.db.ExecContext(ctx, q, p.ID, stringOrDash(p.TenantID), p.ContentType, p.Body, received)
    return err
}

// GetWebhookPayload by ID + Tenant; nil when absent
func (r *DatasetRepository) GetWebhookPayload(ctx context.Context, tenant string, id domain.WebhookPayloadID) (*domain.WebhookPayload, error) {
    const q = `
SELECT id, tenant_id, content_type, body, received_at
FROM webhook_payloads
WHERE tenant_id=$1 AND id=$2
LIMIT 1;`
    var p domain.WebhookPayload
    err := r.db.QueryRowContext(ctx, q, tenant, id).
        Scan(&p.ID, &p.TenantID, &p.ContentType, &p.Body, &p.ReceivedAt)
    if err == sql.ErrNoRows { return nil, nil }
    if err != nil { return nil, err }
    return &p, nil
}
