package analyses

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fairlens/fairlens/internal/analyzer/pii"
	"github.com/fairlens/fairlens/internal/analyzer/stats"
	"github.com/fairlens/fairlens/internal/application"
	"github.com/fairlens/fairlens/internal/domain/activity"
	domain "github.com/fairlens/fairlens/internal/domain/analyses"
	"github.com/fairlens/fairlens/internal/domain/jobs"
	"github.com/fairlens/fairlens/internal/ingest"
)

// Service implements the analysis pipeline use-cases: it creates and
// queues analyses and acts as the queue consumer that drives ingestion,
// the analyzers, result persistence and the status state machine.
// Designed to be used concurrently and thread-safe.
type Service struct {
	Repo         domain.Repository
	Activity     activity.Repository
	Queue        jobs.Queue
	Store        domain.ObjectStore
	Resolver     *ingest.Resolver
	Clock        application.Clock
	Log          *logrus.Logger
	ResultBucket string
}

// Command to queue an analysis
type QueueAnalysisCommand struct {
	TenantID     string
	InitiatedBy  string
	AnalyzerType string
	Source       domain.SourceDescriptor
}

// QueueAnalysisJob synchronously creates the pending Analysis record and
// hands the enqueue to a background goroutine, so the caller gets an id
// to poll immediately.
func (s *Service) QueueAnalysisJob(ctx context.Context, cmd QueueAnalysisCommand) (domain.AnalysisID, error) {
	if err := validateCommand(cmd); err != nil {
		return "", err
	}

	a := &domain.Analysis{
		ID:           domain.AnalysisID(uuid.New().String()),
		TenantID:     cmd.TenantID,
		AnalyzerType: domain.AnalyzerType(cmd.AnalyzerType),
		Status:       domain.StatusPending,
		Source:       cmd.Source,
		InitiatedBy:  cmd.InitiatedBy,
		CreatedAt:    s.Clock.Now(),
	}
	if err := s.Repo.Create(ctx, a); err != nil {
		return "", err
	}

	// run enqueue with context.Background() so it survives the HTTP request
	go s.enqueue(context.Background(), a)

	return a.ID, nil
}

func (s *Service) enqueue(ctx context.Context, a *domain.Analysis) {
	// mark queued before the insert: a job must never be delivered for an
	// analysis the state machine still considers pending
	if _, err := s.Repo.UpdateStatus(ctx, a.TenantID, a.ID,
		[]domain.Status{domain.StatusPending}, domain.StatusQueued, "", ""); err != nil {
		s.Log.WithField("analysis_id", a.ID).Errorf("marking queued: %v", err)
		return
	}

	source, _ := json.Marshal(a.Source)
	jobID, err := s.Queue.Enqueue(ctx, jobs.Payload{
		AnalysisID:   string(a.ID),
		TenantID:     a.TenantID,
		InitiatedBy:  a.InitiatedBy,
		AnalyzerType: string(a.AnalyzerType),
		SourceJSON:   string(source),
	})
	if err != nil {
		s.Log.WithField("analysis_id", a.ID).Errorf("enqueue failed: %v", err)
		_, _ = s.Repo.UpdateStatus(ctx, a.TenantID, a.ID,
			[]domain.Status{domain.StatusQueued}, domain.StatusFailed, "", "could not queue analysis job")
		s.audit(ctx, a, activity.ActionFailed, "could not queue analysis job", "")
		return
	}

	s.audit(ctx, a, activity.ActionQueued, fmt.Sprintf("analysis queued as job %s", jobID), "")
}

// HandleJob is the queue consumer. Delivery is at-least-once, so every
// step tolerates seeing work a previous attempt already did.
func (s *Service) HandleJob(ctx context.Context, job *jobs.Job) error {
	p := job.Payload
	log := s.Log.WithFields(logrus.Fields{
		"job_id":      job.ID,
		"analysis_id": p.AnalysisID,
		"tenant_id":   p.TenantID,
		"attempt":     job.Attempts + 1,
	})

	a, err := s.Repo.Get(ctx, p.TenantID, domain.AnalysisID(p.AnalysisID))
	if err != nil {
		return domain.Transient("loading analysis record", err)
	}
	if a == nil {
		log.Error("job references a missing analysis record")
		return jobs.Permanent(domain.NotFoundf("analysis %s not found", p.AnalysisID))
	}
	if a.Status.IsTerminal() {
		// stale or duplicate delivery; the terminal result stands
		log.WithField("status", a.Status).Info("ignoring delivery for terminal analysis")
		return nil
	}

	a, err = s.Repo.UpdateStatus(ctx, a.TenantID, a.ID,
		[]domain.Status{domain.StatusQueued, domain.StatusProcessing}, domain.StatusProcessing, "", "")
	if err != nil {
		return domain.Transient("marking analysis processing", err)
	}
	if a == nil || a.Status != domain.StatusProcessing {
		log.Info("analysis no longer eligible for processing")
		return nil
	}
	s.audit(ctx, a, activity.ActionStarted, "analysis started", "")
	log.Info("analysis started")

	locator, err := s.process(ctx, a)
	if err != nil {
		return s.fail(ctx, job, a, err, log)
	}

	updated, err := s.Repo.UpdateStatus(ctx, a.TenantID, a.ID,
		[]domain.Status{domain.StatusProcessing}, domain.StatusCompleted, locator, "")
	if err != nil {
		return domain.Transient("marking analysis completed", err)
	}
	if updated != nil && updated.Status == domain.StatusCompleted {
		s.audit(ctx, a, activity.ActionCompleted, "analysis completed", detailsJSON(map[string]any{"result_locator": locator}))
		log.WithField("result_locator", locator).Info("analysis completed")
	}
	return nil
}

// process runs ingestion -> analyzer -> result upload for one analysis
// and returns the result locator.
func (s *Service) process(ctx context.Context, a *domain.Analysis) (string, error) {
	input, err := s.Resolver.Resolve(ctx, a.TenantID, a.Source, a.AnalyzerType)
	if err != nil {
		return "", err
	}

	var result any
	switch a.AnalyzerType {
	case domain.AnalyzerBias:
		if input.Kind != ingest.KindTabular {
			return "", domain.Validationf("bias analysis needs tabular input")
		}
		r, err := stats.Analyze(input.Rows, a.Source.OutcomeColumn)
		if err == stats.ErrEmptyInput {
			return "", domain.Validationf("empty input: dataset has no records")
		}
		if err != nil {
			return "", domain.Internal("statistics engine", err)
		}
		result = r
	case domain.AnalyzerPII:
		if input.Kind != ingest.KindDocuments {
			return "", domain.Validationf("pii analysis needs document input")
		}
		result = pii.Scan(input.Docs, s.Log)
	default:
		return "", domain.Validationf("unsupported analyzer type %q", a.AnalyzerType)
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return "", domain.Internal("encoding result", err)
	}

	// the key is derived from the analysis id alone, so a retried job
	// overwrites its own artifact instead of creating a duplicate
	key := fmt.Sprintf("results/%s/%s.json", a.TenantID, a.ID)
	locator, err := s.Store.PutObject(ctx, s.ResultBucket, key, payload, "application/json")
	if err != nil {
		return "", domain.Transient("uploading result artifact", err)
	}
	return locator, nil
}

// fail applies the error taxonomy: non-retryable faults and exhausted
// attempts terminate the analysis; anything else re-surfaces to the
// queue for backoff.
func (s *Service) fail(ctx context.Context, job *jobs.Job, a *domain.Analysis, err error, log *logrus.Entry) error {
	kind := domain.KindOf(err)
	summary := domain.SummaryOf(err)
	details := detailsJSON(map[string]any{
		"kind":    string(kind),
		"attempt": job.Attempts + 1,
		"job_id":  string(job.ID),
	})

	if domain.IsRetryable(err) && !job.FinalAttempt() {
		log.WithField("kind", kind).Warnf("attempt failed, will retry: %v", err)
		return err
	}

	if _, uerr := s.Repo.UpdateStatus(ctx, a.TenantID, a.ID,
		[]domain.Status{domain.StatusQueued, domain.StatusProcessing}, domain.StatusFailed, "", summary); uerr != nil {
		log.Errorf("marking analysis failed: %v", uerr)
	}
	s.audit(ctx, a, activity.ActionFailed, summary, details)
	log.WithField("kind", kind).Errorf("analysis failed: %v", err)

	if !domain.IsRetryable(err) {
		return jobs.Permanent(err)
	}
	return err
}

//
// ==== QUERIES ====
//

// Get one analysis by id; nil when absent
func (s *Service) Get(ctx context.Context, tenant string, id domain.AnalysisID) (*domain.Analysis, error) {
	return s.Repo.Get(ctx, tenant, id)
}

// Latest N analyses
func (s *Service) Latest(ctx context.Context, tenant string, limit int) ([]*domain.Analysis, error) {
	return s.Repo.Latest(ctx, tenant, limit)
}

// Paginate analyses
func (s *Service) Paginate(ctx context.Context, tenant string, page, pageSize int) (domain.PaginatedResult, error) {
	return s.Repo.Paginate(ctx, tenant, page, pageSize)
}

// Summary of outcomes over the last N days
func (s *Service) Summary(ctx context.Context, tenant string, sinceDays int) (domain.Summary, error) {
	return s.Repo.Summary(ctx, tenant, sinceDays)
}

// RecentActivity for a tenant
func (s *Service) RecentActivity(ctx context.Context, tenant string, limit int) ([]*activity.Entry, error) {
	return s.Activity.Latest(ctx, tenant, limit)
}

// ActivityFor one analysis
func (s *Service) ActivityFor(ctx context.Context, tenant, analysisID string, limit int) ([]*activity.Entry, error) {
	return s.Activity.ListByAnalysis(ctx, tenant, analysisID, limit)
}

//
// ==== HELPERS ====
//

func validateCommand(cmd QueueAnalysisCommand) error {
	if cmd.TenantID == "" {
		return domain.Validationf("tenant id is required")
	}
	switch domain.AnalyzerType(cmd.AnalyzerType) {
	case domain.AnalyzerBias, domain.AnalyzerPII:
	default:
		return domain.Validationf("unsupported analyzer type %q", cmd.AnalyzerType)
	}
	switch cmd.Source.Kind {
	case domain.SourceDataset:
		if cmd.Source.DatasetID == "" {
			return domain.Validationf("dataset source needs a dataset id")
		}
	case domain.SourceWebhook:
		if cmd.Source.WebhookPayloadID == "" {
			return domain.Validationf("webhook source needs a payload id")
		}
	default:
		return domain.Validationf("unknown source kind %q", cmd.Source.Kind)
	}
	return nil
}

// audit writes one lifecycle entry; failures are logged, never fatal to
// the pipeline itself.
func (s *Service) audit(ctx context.Context, a *domain.Analysis, action activity.Action, message, details string) {
	e := &activity.Entry{
		TenantID:    a.TenantID,
		UserID:      a.InitiatedBy,
		AnalysisID:  string(a.ID),
		Action:      action,
		Message:     message,
		DetailsJSON: details,
		CreatedAt:   s.Clock.Now(),
	}
	if err := s.Activity.Save(ctx, e); err != nil {
		s.Log.WithField("analysis_id", a.ID).Errorf("writing audit entry: %v", err)
	}
}

func detailsJSON(m map[string]any) string {
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}
