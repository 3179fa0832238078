package mysql

import (
	"context"
	"database/sql"
	"time"

	domain "github.com/fairlens/fairlens/internal/domain/activity"
)

type ActivityRepository struct {
	db *sql.DB
}

func NewActivityRepository(db *sql.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Save inserts an audit entry. Entries are append-only.
func (r *ActivityRepository) Save(ctx context.Context, e *domain.Entry) error {
	const q = `
INSERT INTO activity_log
(tenant_id, user_id, analysis_id, action, message, details_json, created_at)
VALUES (?,?,?,?,?,?,?);
`
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	res, err := r.db.ExecContext(ctx, q,
		stringOrDash(e.TenantID), stringOrDash(e.UserID), e.AnalysisID,
		e.Action, e.Message, e.DetailsJSON, created,
	)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		e.ID = id
	}
	return nil
}

// ListByAnalysis returns audit entries for one analysis, newest first
func (r *ActivityRepository) ListByAnalysis(ctx context.Context, tenant string, analysisID string, limit int) ([]*domain.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, tenant_id, user_id, analysis_id, action, message, details_json, created_at
FROM activity_log
WHERE tenant_id=? AND analysis_id=?
ORDER BY created_at DESC, id DESC
LIMIT ?;
`
	rows, err := r.db.QueryContext(ctx, q, tenant, analysisID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

// Latest returns the newest audit entries for a tenant
func (r *ActivityRepository) Latest(ctx context.Context, tenant string, limit int) ([]*domain.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, tenant_id, user_id, analysis_id, action, message, details_json, created_at
FROM activity_log
WHERE tenant_id=?
ORDER BY created_at DESC, id DESC
LIMIT ?;
`
	rows, err := r.db.QueryContext(ctx, q, tenant, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

func collectEntries(rows *sql.Rows) ([]*domain.Entry, error) {
	var out []*domain.Entry
	for rows.Next() {
		var (
			e       domain.Entry
			details sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.TenantID, &e.UserID, &e.AnalysisID,
			&e.Action, &e.Message, &details, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.DetailsJSON = details.String
		out = append(out, &e)
	}
	return out, rows.Err()
}
