package analyses

import "context"

// Repository port for analysis persistence
type Repository interface {
	Create(ctx context.Context, a *Analysis) error
	Get(ctx context.Context, tenant string, id AnalysisID) (*Analysis, error)
	Latest(ctx context.Context, tenant string, limit int) ([]*Analysis, error)
	Paginate(ctx context.Context, tenant string, page, pageSize int) (PaginatedResult, error)
	Summary(ctx context.Context, tenant string, sinceDays int) (Summary, error)

	// UpdateStatus is a compare-and-set: the row is updated only when its
	// current status is one of `from`. Returns the row after the attempt,
	// or nil when no row matched tenant+id. Late duplicate deliveries must
	// never be able to overwrite a terminal status with a blind write.
	UpdateStatus(ctx context.Context, tenant string, id AnalysisID, from []Status, to Status, resultLocator, errorSummary string) (*Analysis, error)
}

// ObjectStore port for dataset and result artifact bytes
type ObjectStore interface {
	GetObject(ctx context.Context, bucket, key string) ([]byte, string, error)
	PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error)
}
