package postgres

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

type AnalysisRepository struct { db *sql.DB }

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository { return &AnalysisRepository{db: db} }

const analysisColumns = `id, tenant_id, analyzer_type, status, source_json, initiated_by, result_locator, error_summary, created_at, completed_at`

// Create inserts a new Analysis record
func (r *AnalysisRepository) Create(ctx context.Context, a *domain.Analysis) error {
    const q = `
INSERT INTO analyses
(id, tenant_id, analyzer_type, status, source_json, initiated_by, result_locator, error_summary, created_at, completed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10);`

    source, err := json.Marshal(a.Source)
    if err != nil { return err }
    tenant := stringOrDash(a.TenantID)
    created := a.CreatedAt
    if created.IsZero() { created = time.Now() }

    _, err = r.db.ExecContext(ctx, q,
        a.ID, tenant, a.AnalyzerType, a.Status, string(source),
        a.InitiatedBy, a.ResultLocator, a.ErrorSummary, created, a.CompletedAt,
    )
    return err
}

// Get by ID + Tenant; nil when absent
func (r *AnalysisRepository) Get(ctx context.Context, tenant string, id domain.AnalysisID) (*domain.Analysis, error) {
    q := fmt.Sprintf(`SELECT %s FROM analyses WHERE tenant_id=$1 AND id=$2 LIMIT 1;`, analysisColumns)
    a, err := scanAnalysis(r.db.QueryRowContext(ctx, q, tenant, id))
    if err == sql.ErrNoRows { return nil, nil }
    return a, err
}

// Latest analyses per tenant
func (r *AnalysisRepository) Latest(ctx context.Context, tenant string, limit int) ([]*domain.Analysis, error) {
    if limit <= 0 { limit = 20 }
    q := fmt.Sprintf(`SELECT %s FROM analyses WHERE tenant_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2;`, analysisColumns)
    rows, err := r.db.QueryContext(ctx, q, tenant, limit)
    if err != nil { return nil, err }
    defer rows.Close()
    return collectAnalyses(rows)
}

// Paginate with offset + limit
func (r *AnalysisRepository) Paginate(ctx context.Context, tenant string, page, pageSize int) (domain.PaginatedResult, error) {
    if page <= 0 { page = 1 }
    if pageSize <= 0 { pageSize = 20 }
    offset := (page - 1) * pageSize

    q := fmt.Sprintf(`SELECT %s FROM analyses WHERE tenant_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3;`, analysisColumns)
    rows, err := r.db.QueryContext(ctx, q, tenant, pageSize, offset)
    if err != nil { return domain.PaginatedResult{}, fmt.Errorf("querying analyses: %w", err) }
    defer rows.Close()

    list, err := collectAnalyses(rows)
    if err != nil { return domain.PaginatedResult{}, fmt.Errorf("scanning analyses: %w", err) }

    var total int64
    if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM analyses WHERE tenant_id=$1;`, tenant).Scan(&total); err != nil {
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
    if sinceDays <= 0 { sinceDays = 7 }
    cut := time.Now().AddDate(0, 0, -sinceDays)
    const q = `
SELECT COUNT(*),
       COALESCE(SUM(CASE WHEN status='completed' THEN 1 ELSE 0 END),0),
       COALESCE(SUM(CASE WHEN status='failed' THEN 1 ELSE 0 END),0),
       COALESCE(SUM(CASE WHEN status IN ('pending','queued','processing') THEN 1 ELSE 0 END),0)
FROM analyses
WHERE tenant_id=$1 AND created_at >= $2;`
    var s domain.Summary
    if err := r.db.QueryRowContext(ctx, q, tenant, cut).Scan(&s.TotalAnalyses, &s.Completed, &s.Failed, &s.InFlight); err != nil {
        return domain.Summary{}, err
    }
    return s, nil
}

// UpdateStatus is the guarded compare-and-set (see mysql variant).
func (r *AnalysisRepository) UpdateStatus(ctx context.Context, tenant string, id domain.AnalysisID, from []domain.Status, to domain.Status, resultLocator, errorSummary string) (*domain.Analysis, error) {
    if len(from) == 0 { return nil, fmt.Errorf("update status: empty from-set") }

    args := []interface{}{to, resultLocator, errorSummary, tenant, id}
    ph := make([]string, 0, len(from))
    for _, f := range from {
        args = append(args, f)
        ph = append(ph, fmt.Sprintf("$%d", len(args)))
    }
    q := fmt.Sprintf(`
UPDATE analyses
SET status = $1,
    result_locator = CASE WHEN $2 = '' THEN result_locator ELSE $2 END,
    error_summary  = $3,
    completed_at   = CASE WHEN $1 IN ('completed','failed') THEN NOW() ELSE completed_at END
WHERE tenant_id = $4 AND id = $5 AND status IN (%s);`, strings.Join(ph, ","))

    if _, err := r.db.ExecContext(ctx, q, args...); err != nil { return nil, err }
    return r.Get(ctx, tenant, id)
}

type rowScanner interface{ Scan(dest ...any) error }

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
        if err != nil { return nil, err }
        out = append(out, a)
    }
    return out, rows.Err()
}
