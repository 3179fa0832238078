package activity

import (
	"context"
)

// Repository defines persistence for audit entries
type Repository interface {
	Save(ctx context.Context, e *Entry) error
	ListByAnalysis(ctx context.Context, tenant string, analysisID string, limit int) ([]*Entry, error)
	Latest(ctx context.Context, tenant string, limit int) ([]*Entry, error)
}
