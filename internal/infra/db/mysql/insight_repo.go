package mysql

import (
	"context"
	"database/sql"
	"strings"
	"time"

	domain "github.com/fairlens/fairlens/internal/domain/insights"
)

type InsightRepository struct {
	db *sql.DB
}

func NewInsightRepository(db *sql.DB) *InsightRepository {
	return &InsightRepository{db: db}
}

// Save inserts an insight record
func (r *InsightRepository) Save(ctx context.Context, i *domain.Insight) error {
	const q = `
INSERT INTO analysis_insights
  (id, tenant_id, analysis_id, locator, result_json, created_at)
VALUES (?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
  tenant_id=VALUES(tenant_id), analysis_id=VALUES(analysis_id), locator=VALUES(locator), result_json=VALUES(result_json);
`
	tenant := stringOrDash(i.TenantID)
	result := i.Result
	if strings.TrimSpace(result) == "" {
		// result_json column requires valid JSON; use empty object
		result = "{}"
	}
	createdAt := i.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q, i.ID, tenant, i.AnalysisID, i.Locator, result, createdAt)
	return err
}

// Paginate returns a page of insight records ordered by created_at desc
func (r *InsightRepository) Paginate(ctx context.Context, tenant string, page, pageSize int) ([]*domain.Insight, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	const q = `
SELECT id, tenant_id, analysis_id, locator, result_json, created_at
FROM analysis_insights
WHERE tenant_id=?
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?;
`
	rows, err := r.db.QueryContext(ctx, q, tenant, pageSize, offset)
	if err != nil {
		return nil, err
	}
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

// LatestByAnalysis returns the newest insight for one analysis, nil when absent
func (r *InsightRepository) LatestByAnalysis(ctx context.Context, tenant string, analysisID string) (*domain.Insight, error) {
	const q = `
SELECT id, tenant_id, analysis_id, locator, result_json, created_at
FROM analysis_insights
WHERE tenant_id=? AND analysis_id=?
ORDER BY created_at DESC, id DESC
LIMIT 1;
`
	var i domain.Insight
	err := r.db.QueryRowContext(ctx, q, tenant, analysisID).
		Scan(&i.ID, &i.TenantID, &i.AnalysisID, &i.Locator, &i.Result, &i.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &i, nil
}
