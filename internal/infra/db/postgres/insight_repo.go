package postgres

import (
    "context"
    "database/sql"
    "strings"
    "time"

    domain "github.com/fairlens/fairlens/internal/domain/insights"
)

type InsightRepository struct { db *sql.DB }

func NewInsightRepository(db *sql.DB) *InsightRepository { return &InsightRepository{db: db} }

// Save inserts or updates an insight record
func (r *InsightRepository) Save(ctx context.Context, i *domain.Insight) error {
    const q = `
INSERT INTO analysis_insights
  (id, tenant_id, analysis_id, locator, result_json, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET
  tenant_id=EXCLUDED.tenant_id,
  analysis_id=EXCLUDED.analysis_id,
  locator=EXCLUDED.locator,
  result_json=EXCLUDED.result_json;`
    tenant := stringOrDash(i.TenantID)
    result := i.Result
    if strings.TrimSpace(result) == "" { result = "{}" }
    createdAt := i.CreatedAt
    if createdAt.IsZero() { createdAt = time.Now() }
    _, err := r.db.ExecContext(ctx, q, i.ID, tenant, i.AnalysisID, i.Locator, result, createdAt)
    return err
}

// Paginate returns a page of insight records ordered by created_at desc
func (r *InsightRepository) Paginate(ctx context.Context, tenant string, page, pageSize int) ([]*domain.Insight, error) {
    if page <= 0 { page = 1 }
    if pageSize <= 0 { pageSize = 20 }
    offset := (page - 1) * pageSize

    const q = `
SELECT id, tenant_id, analysis_id, locator, result_json, created_at
FROM analysis_insights
WHERE tenant_id=$1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3;`
    rows, err := r.db.QueryContext(ctx, q, tenant, pageSize, offset)
    if err != nil { return nil, err }
    defer rows.Close()

    var out []*domain.Insight
    for rows.Next() {
        var i domain.Insight
        if err := rows.Scan(&i.ID, &i.TenantID, &i.AnalysisID, &i.Locator, &i.Result, &i.CreatedAt); err != nil {
            return nil, err
        }
        out = append(out, &i)
    }
    return out, rows.Err()
}

// LatestByAnalysis returns the latest insight for a given analysis
func (r *InsightRepository) LatestByAnalysis(ctx context.Context, tenant string, analysisID string) (*domain.Insight, error) {
    const q = `
SELECT id, tenant_id, analysis_id, locator, result_json, created_at
FROM analysis_insights
WHERE tenant_id=$1 AND analysis_id=$2
ORDER BY created_at DESC, id DESC
LIMIT 1;`
    row := r.db.QueryRowContext(ctx, q, tenant, analysisID)
    var i domain.Insight
    if err := row.Scan(&i.ID, &i.TenantID, &i.AnalysisID, &i.Locator, &i.Result, &i.CreatedAt); err != nil {
        if err == sql.ErrNoRows { return nil, nil }
        return nil, err
    }
    return &i, nil
}
