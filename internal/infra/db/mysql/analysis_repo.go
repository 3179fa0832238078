package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	domain "github.com/fairlens/fairlens/internal/domain/analyses"
)

type AnalysisRepository struct {
	db *sql.DB
}

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

const analysisColumns = `id, tenant_id, analyzer_type, status, source_json, initiated_by, result_locator, error_summary, created_at, completed_at`

// Create inserts a new Analysis record
func (r *AnalysisRepository) Create(ctx context.Context, a *domain.Analysis) error {
	const q = `
INSERT INTO analyses
(id, tenant_id, analyzer_type, status, source_json, initiated_by, result_locator, error_summary, created_at, completed_at)
VALUES (?,?,?,?,?,?,?,?,?,?);
`
	source, err := json.Marshal(a.Source)
	if err != nil {
		return err
	}
	tenant := stringOrDash(a.TenantID)
	created := a.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err = r.db.ExecContext(ctx, q,
		a.ID, tenant, a.AnalyzerType, a.Status, string(source),
		a.InitiatedBy, a.ResultLocator, a.ErrorSummary, created, a.CompletedAt,
	)
	return err
}

// Get by ID + Tenant; returns nil when the record does not exist
func (r *AnalysisRepository) Get(ctx context.Context, tenant string, id domain.AnalysisID) (*domain.Analysis, error) {
	q := fmt.Sprintf(`SELECT %s FROM analyses WHERE tenant_id=? AND id=? LIMIT 1;`, analysisColumns)
	a, err := scanAnalysis(r.db.QueryRowContext(ctx, q, tenant, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

// Latest analyses per tenant
func (r *AnalysisRepository) Latest(ctx context.Context, tenant string, limit int) ([]*domain.Analysis, error) {
	if limit <= 0 {
		limit = 20
	}
	q := fmt.Sprintf(`SELECT %s FROM analyses WHERE tenant_id=? ORDER BY created_at DESC, id DESC LIMIT ?;`, analysisColumns)
	rows, err := r.db.QueryContext(ctx, q, tenant, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAnalyses(rows)
}

// Paginate with offset + limit (classic pagination)
func (r *AnalysisRepository) Paginate(ctx context.Context, tenant string, page, pageSize int) (domain.PaginatedResult, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	q := fmt.Sprintf(`SELECT %s FROM analyses WHERE tenant_id=? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?;`, analysisColumns)
	rows, err := r.db.QueryContext(ctx, q, tenant, pageSize, offset)
	if err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("querying analyses: %w", err)
	}
	defer rows.Close()

	list, err := collectAnalyses(rows)
	if err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("scanning analyses: %w", err)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM analyses WHERE tenant_id=?;`, tenant).Scan(&total); err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("counting analyses: %w", err)
	}

	return domain.PaginatedResult{
		Data:       list,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}, nil
}

// Summary counts analysis outcomes since N days
func (r *AnalysisRepository) Summary(ctx context.Context, tenant string, sinceDays int) (domain.Summary, error) {
	if sinceDays <= 0 {
		sinceDays = 7
	}
	cut := time.Now().AddDate(0, 0, -sinceDays)

	const q = `
SELECT COUNT(*) AS total,
       COALESCE(SUM(status='completed'),0) AS completed,
       COALESCE(SUM(status='failed'),0)    AS failed,
       COALESCE(SUM(status IN ('pending','queued','processing')),0) AS in_flight
FROM analyses
WHERE tenant_id=? AND created_at >= ?;
`
	var s domain.Summary
	if err := r.db.QueryRowContext(ctx, q, tenant, cut).
		Scan(&s.TotalAnalyses, &s.Completed, &s.Failed, &s.InFlight); err != nil {
		return domain.Summary{}, err
	}
	return s, nil
}

// UpdateStatus is a guarded compare-and-set: the status column changes
// only while the current value is in `from`, so a stale redelivery can
// never downgrade a terminal record. The row as it stands after the
// attempt is returned either way.
func (r *AnalysisRepository) UpdateStatus(ctx context.Context, tenant string, id domain.AnalysisID, from []domain.Status, to domain.Status, resultLocator, errorSummary string) (*domain.Analysis, error) {
	if len(from) == 0 {
		return nil, fmt.Errorf("update status: empty from-set")
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(from)), ",")
	q := fmt.Sprintf(`
UPDATE analyses
SET status = ?,
    result_locator = IF(? = '', result_locator, ?),
    error_summary  = ?,
    completed_at   = IF(? IN ('completed','failed'), NOW(), completed_at)
WHERE tenant_id = ? AND id = ? AND status IN (%s);`, placeholders)

	args := []interface{}{to, resultLocator, resultLocator, errorSummary, to, tenant, id}
	for _, f := range from {
		args = append(args, f)
	}
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return nil, err
	}
	return r.Get(ctx, tenant, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (*domain.Analysis, error) {
	var (
		a         domain.Analysis
		source    string
		locator   sql.NullString
		errSum    sql.NullString
		completed sql.NullTime
	)
	if err := row.Scan(&a.ID, &a.TenantID, &a.AnalyzerType, &a.Status, &source,
		&a.InitiatedBy, &locator, &errSum, &a.CreatedAt, &completed); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(source), &a.Source); err != nil {
		return nil, fmt.Errorf("decoding source descriptor: %w", err)
	}
	a.ResultLocator = locator.String
	a.ErrorSummary = errSum.String
	if completed.Valid {
		t := completed.Time
		a.CompletedAt = &t
	}
	return &a, nil
}

func collectAnalyses(rows *sql.Rows) ([]*domain.Analysis, error) {
	var out []*domain.Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
