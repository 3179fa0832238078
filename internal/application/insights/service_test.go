package insights

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairlens/fairlens/internal/application"
	analyses "github.com/fairlens/fairlens/internal/domain/analyses"
	domain "github.com/fairlens/fairlens/internal/domain/insights"
)

type fakeAnalyses struct {
	analysis *analyses.Analysis
}

func (f *fakeAnalyses) Create(ctx context.Context, a *analyses.Analysis) error { return nil }

func (f *fakeAnalyses) Get(ctx context.Context, tenant string, id analyses.AnalysisID) (*analyses.Analysis, error) {
	return f.analysis, nil
}

func (f *fakeAnalyses) Latest(ctx context.Context, tenant string, limit int) ([]*analyses.Analysis, error) {
	return nil, nil
}

func (f *fakeAnalyses) Paginate(ctx context.Context, tenant string, page, pageSize int) (analyses.PaginatedResult, error) {
	return analyses.PaginatedResult{}, nil
}

func (f *fakeAnalyses) Summary(ctx context.Context, tenant string, sinceDays int) (analyses.Summary, error) {
	return analyses.Summary{}, nil
}

func (f *fakeAnalyses) UpdateStatus(ctx context.Context, tenant string, id analyses.AnalysisID, from []analyses.Status, to analyses.Status, resultLocator, errorSummary string) (*analyses.Analysis, error) {
	return f.analysis, nil
}

type fakeInsightRepo struct {
	saved []*domain.Insight
}

func (f *fakeInsightRepo) Save(ctx context.Context, i *domain.Insight) error {
	f.saved = append(f.saved, i)
	return nil
}

func (f *fakeInsightRepo) Paginate(ctx context.Context, tenant string, page, pageSize int) ([]*domain.Insight, error) {
	return f.saved, nil
}

func (f *fakeInsightRepo) LatestByAnalysis(ctx context.Context, tenant, analysisID string) (*domain.Insight, error) {
	if len(f.saved) == 0 {
		return nil, nil
	}
	return f.saved[len(f.saved)-1], nil
}

type fakeAI struct {
	narrative string
	err       error
	prompts   []string
}

func (f *fakeAI) Summarize(ctx context.Context, resultJSON string) (string, error) {
	f.prompts = append(f.prompts, resultJSON)
	return f.narrative, f.err
}

type fakeObjects struct {
	data map[string][]byte
}

func (f *fakeObjects) GetObject(ctx context.Context, bucket, key string) ([]byte, string, error) {
	d, ok := f.data[bucket+"/"+key]
	if !ok {
		return nil, "", errors.New("object not found")
	}
	return d, "application/json", nil
}

func (f *fakeObjects) PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	return bucket + "/" + key, nil
}

func newService(a *analyses.Analysis, ai *fakeAI, objects map[string][]byte) (*Service, *fakeInsightRepo) {
	repo := &fakeInsightRepo{}
	return &Service{
		Client:   ai,
		Repo:     repo,
		Analyses: &fakeAnalyses{analysis: a},
		Store:    &fakeObjects{data: objects},
		Clock:    application.SystemClock{},
	}, repo
}

func TestSummarizeAndStore(t *testing.T) {
	a := &analyses.Analysis{
		ID: "a1", TenantID: "t1",
		Status:        analyses.StatusCompleted,
		ResultLocator: "artifacts/results/t1/a1.json",
	}
	ai := &fakeAI{narrative: `{"summary":"low risk"}`}
	svc, repo := newService(a, ai, map[string][]byte{
		"artifacts/results/t1/a1.json": []byte(`{"total_records":10}`),
	})

	i, err := svc.SummarizeAndStore(context.Background(), "t1", "a1")
	require.NoError(t, err)

	assert.Equal(t, "a1", i.AnalysisID)
	assert.Equal(t, "artifacts/results/t1/a1.json", i.Locator)
	assert.Equal(t, `{"summary":"low risk"}`, i.Result)
	require.Len(t, repo.saved, 1)
	require.Len(t, ai.prompts, 1)
	assert.Equal(t, `{"total_records":10}`, ai.prompts[0])
}

func TestSummarizeRequiresCompletedAnalysis(t *testing.T) {
	a := &analyses.Analysis{ID: "a1", TenantID: "t1", Status: analyses.StatusProcessing}
	svc, _ := newService(a, &fakeAI{}, nil)

	_, err := svc.SummarizeAndStore(context.Background(), "t1", "a1")
	require.Error(t, err)
	assert.Equal(t, analyses.FaultValidation, analyses.KindOf(err))
}

func TestSummarizeMissingAnalysis(t *testing.T) {
	svc, _ := newService(nil, &fakeAI{}, nil)

	_, err := svc.SummarizeAndStore(context.Background(), "t1", "ghost")
	require.Error(t, err)
	assert.Equal(t, analyses.FaultNotFound, analyses.KindOf(err))
}

func TestSummarizePropagatesClientError(t *testing.T) {
	a := &analyses.Analysis{
		ID: "a1", TenantID: "t1",
		Status:        analyses.StatusCompleted,
		ResultLocator: "artifacts/results/t1/a1.json",
	}
	svc, repo := newService(a, &fakeAI{err: domain.ErrQuotaExceeded}, map[string][]byte{
		"artifacts/results/t1/a1.json": []byte(`{}`),
	})

	_, err := svc.SummarizeAndStore(context.Background(), "t1", "a1")
	require.ErrorIs(t, err, domain.ErrQuotaExceeded)
	assert.Empty(t, repo.saved)
}

func TestSplitLocator(t *testing.T) {
	b, k := splitLocator("artifacts/results/t1/a1.json")
	assert.Equal(t, "artifacts", b)
	assert.Equal(t, "results/t1/a1.json", k)

	b, k = splitLocator("bare-key.json")
	assert.Empty(t, b)
	assert.Equal(t, "bare-key.json", k)
}
