package insights

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/fairlens/fairlens/internal/application"
	analyses "github.com/fairlens/fairlens/internal/domain/analyses"
	domain "github.com/fairlens/fairlens/internal/domain/insights"
)

// Service turns a completed analysis artifact into an AI narrative and
// stores it for retrieval.
type Service struct {
	Client   domain.Client
	Repo     domain.Repository
	Analyses analyses.Repository
	Store    analyses.ObjectStore
	Clock    application.Clock
}

// SummarizeAndStore loads the result artifact for a completed analysis,
// asks the AI provider for a narrative and persists it.
func (s *Service) SummarizeAndStore(ctx context.Context, tenant, analysisID string) (*domain.Insight, error) {
	a, err := s.Analyses.Get(ctx, tenant, analyses.AnalysisID(analysisID))
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, analyses.NotFoundf("analysis %s not found", analysisID)
	}
	if a.Status != analyses.StatusCompleted || a.ResultLocator == "" {
		return nil, analyses.Validationf("analysis %s has no result to summarize", analysisID)
	}

	bucket, key := splitLocator(a.ResultLocator)
	resultJSON, _, err := s.Store.GetObject(ctx, bucket, key)
	if err != nil {
		return nil, err
	}

	narrative, err := s.Client.Summarize(ctx, string(resultJSON))
	if err != nil {
		return nil, err
	}

	i := &domain.Insight{
		ID:         domain.InsightID(uuid.New().String()),
		TenantID:   tenant,
		AnalysisID: analysisID,
		Locator:    a.ResultLocator,
		Result:     narrative,
		CreatedAt:  s.Clock.Now(),
	}
	if err := s.Repo.Save(ctx, i); err != nil {
		return nil, err
	}
	return i, nil
}

// List returns a page of stored insights
func (s *Service) List(ctx context.Context, tenant string, page, pageSize int) ([]*domain.Insight, error) {
	return s.Repo.Paginate(ctx, tenant, page, pageSize)
}

// splitLocator splits "bucket/key..." into its parts; a locator with no
// slash is treated as a bare key in the default bucket.
func splitLocator(locator string) (string, string) {
	parts := strings.SplitN(locator, "/", 2)
	if len(parts) < 2 {
		return "", locator
	}
	return parts[0], parts[1]
}
