package insights

import "context"

// Repository port for persisting and querying AI insights
type Repository interface {
	Save(ctx context.Context, i *Insight) error
	Paginate(ctx context.Context, tenant string, page, pageSize int) ([]*Insight, error)
	LatestByAnalysis(ctx context.Context, tenant string, analysisID string) (*Insight, error)
}

// Client is the AI provider port.
type Client interface {
	Summarize(ctx context.Context, resultJSON string) (string, error)
}
