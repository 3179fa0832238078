package httpserver

import (
    "database/sql"
    "errors"
    "encoding/json"
    "io"
    "net/http"
    "strconv"

    "github.com/go-chi/chi/v5"

    appanalyses "github.com/fairlens/fairlens/internal/application/analyses"
    appdatasets "github.com/fairlens/fairlens/internal/application/datasets"
    appinsights "github.com/fairlens/fairlens/internal/application/insights"
    domain "github.com/fairlens/fairlens/internal/domain/analyses"
    dominsights "github.com/fairlens/fairlens/internal/domain/insights"
    "github.com/fairlens/fairlens/internal/middleware"
)

type Router struct {
	analysesSvc *appanalyses.Service
	datasetsSvc *appdatasets.Service
	insightsSvc *appinsights.Service
}

func NewRouter(analysesSvc *appanalyses.Service, datasetsSvc *appdatasets.Service, insightsSvc *appinsights.Service) http.Handler {
	r := &Router{analysesSvc: analysesSvc, datasetsSvc: datasetsSvc, insightsSvc: insightsSvc}
	mux := chi.NewRouter()

	mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

    mux.Route("/v1/{tenant}", func(rt chi.Router) {
		rt.Post("/analyses", r.wrap(r.handleQueueAnalysis))
		rt.Get("/analyses", r.wrap(r.handleListAnalyses))
		rt.Get("/analyses/latest", r.wrap(r.handleLatest))
		rt.Get("/analyses/{id}", r.wrap(r.handleGet))
		rt.Get("/analyses/{id}/activity", r.wrap(r.handleAnalysisActivity))
		rt.Get("/summary", r.wrap(r.handleSummary))
		rt.Get("/activity", r.wrap(r.handleActivity))
		rt.Post("/datasets", r.wrap(r.handleRegisterDataset))
		rt.Post("/webhooks/inbound", r.wrap(r.handleWebhookInbound))
        rt.Post("/insights", r.wrap(r.handleInsightCreate))
        rt.Get("/insights", r.wrap(r.handleInsightList))
    })

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
    return func(w http.ResponseWriter, req *http.Request) {
        if err := h(w, req); err != nil {
            if errors.Is(err, sql.ErrNoRows) {
                http.Error(w, "not found", http.StatusNotFound)
                return
            }
            if errors.Is(err, dominsights.ErrQuotaExceeded) {
                http.Error(w, "ai quota exceeded", http.StatusTooManyRequests)
                return
            }
            var fault *domain.Fault
            if errors.As(err, &fault) {
                switch fault.Kind {
                case domain.FaultValidation:
                    http.Error(w, fault.Summary(), http.StatusUnprocessableEntity)
                    return
                case domain.FaultNotFound:
                    http.Error(w, fault.Summary(), http.StatusNotFound)
                    return
                }
            }
            http.Error(w, err.Error(), http.StatusInternalServerError)
        }
    }
}

// POST /v1/{tenant}/analyses
// Body: {"source": "dataset"|"webhook", "dataset_id": ..., "webhook_payload_id": ...,
// "analyzer_type": "bias"|"pii", "initiated_by": ..., "outcome_column": ...}
// The analysis runs in the background; the response carries the id to poll.
func (r *Router) handleQueueAnalysis(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	if err := middleware.ValidateTenantID(tenant); err != nil {
		return domain.Validationf("%v", err)
	}

	var body struct {
		Source           string `json:"source"`
		DatasetID        string `json:"dataset_id"`
		WebhookPayloadID string `json:"webhook_payload_id"`
		AnalyzerType     string `json:"analyzer_type"`
		InitiatedBy      string `json:"initiated_by"`
		OutcomeColumn    string `json:"outcome_column"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return domain.Validationf("invalid request body: %v", err)
	}
	if err := middleware.ValidateAnalyzerType(body.AnalyzerType); err != nil {
		return domain.Validationf("%v", err)
	}

	cmd := appanalyses.QueueAnalysisCommand{
		TenantID:     tenant,
		InitiatedBy:  middleware.SanitizeString(body.InitiatedBy),
		AnalyzerType: body.AnalyzerType,
		Source: domain.SourceDescriptor{
			Kind:             domain.SourceKind(body.Source),
			DatasetID:        body.DatasetID,
			WebhookPayloadID: body.WebhookPayloadID,
			OutcomeColumn:    body.OutcomeColumn,
		},
	}

	id, err := r.analysesSvc.QueueAnalysisJob(req.Context(), cmd)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	return json.NewEncoder(w).Encode(map[string]any{
		"analysis_id": id,
		"status":      domain.StatusPending,
	})
}

// GET /v1/{tenant}/analyses/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateAnalysisID(id); err != nil {
		return domain.Validationf("%v", err)
	}

	a, err := r.analysesSvc.Get(req.Context(), tenant, domain.AnalysisID(id))
	if err != nil {
		return err
	}
	if a == nil {
		return domain.NotFoundf("analysis %s not found", id)
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(a)
}

// GET /v1/{tenant}/analyses/latest?limit=20
func (r *Router) handleLatest(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.analysesSvc.Latest(req.Context(), tenant, middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}

// GET /v1/{tenant}/analyses?page=&page_size=
func (r *Router) handleListAnalyses(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))

	res, err := r.analysesSvc.Paginate(req.Context(), tenant, page, size)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(res)
}

// GET /v1/{tenant}/summary?days=7
func (r *Router) handleSummary(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	days, _ := strconv.Atoi(req.URL.Query().Get("days"))

	summary, err := r.analysesSvc.Summary(req.Context(), tenant, middleware.ValidateDays(days))
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(summary)
}

// GET /v1/{tenant}/activity?limit=50
func (r *Router) handleActivity(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.analysesSvc.RecentActivity(req.Context(), tenant, middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}

// GET /v1/{tenant}/analyses/{id}/activity?limit=50
func (r *Router) handleAnalysisActivity(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.analysesSvc.ActivityFor(req.Context(), tenant, id, middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}

// POST /v1/{tenant}/datasets
// Body: {"bucket": ..., "key": ..., "content_type": ..., "filename": ...}
func (r *Router) handleRegisterDataset(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")

	var body struct {
		Bucket      string `json:"bucket"`
		Key         string `json:"key"`
		ContentType string `json:"content_type"`
		Filename    string `json:"filename"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return domain.Validationf("invalid request body: %v", err)
	}
	if err := middleware.ValidateObjectKey(body.Key); err != nil {
		return domain.Validationf("%v", err)
	}

	d, err := r.datasetsSvc.RegisterDataset(req.Context(), appdatasets.RegisterDatasetCommand{
		TenantID:    tenant,
		Bucket:      body.Bucket,
		Key:         body.Key,
		ContentType: body.ContentType,
		Filename:    body.Filename,
	})
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	return json.NewEncoder(w).Encode(d)
}

// POST /v1/{tenant}/webhooks/inbound
// Stores the raw body verbatim; a later analysis request references the returned id.
func (r *Router) handleWebhookInbound(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")

	body, err := io.ReadAll(io.LimitReader(req.Body, maxWebhookBody))
	if err != nil {
		return err
	}

	p, err := r.datasetsSvc.ReceiveWebhookPayload(req.Context(), tenant, req.Header.Get("Content-Type"), body)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	return json.NewEncoder(w).Encode(map[string]any{
		"webhook_payload_id": p.ID,
		"received_at":        p.ReceivedAt,
	})
}

const maxWebhookBody = 10 << 20

// POST /v1/{tenant}/insights
// Body: {"analysis_id": "<id>"}
// The server fetches the analysis result artifact and runs AI summarization on it.
func (r *Router) handleInsightCreate(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	if r.insightsSvc == nil {
		http.Error(w, "insights are not configured", http.StatusServiceUnavailable)
		return nil
	}

	var body struct {
		AnalysisID string `json:"analysis_id"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return domain.Validationf("invalid request body: %v", err)
	}
	if body.AnalysisID == "" {
		return domain.Validationf("analysis_id is required")
	}

	i, err := r.insightsSvc.SummarizeAndStore(req.Context(), tenant, body.AnalysisID)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(i)
}

// GET /v1/{tenant}/insights?page=&page_size=
func (r *Router) handleInsightList(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	if r.insightsSvc == nil {
		http.Error(w, "insights are not configured", http.StatusServiceUnavailable)
		return nil
	}
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))

	list, err := r.insightsSvc.List(req.Context(), tenant, page, size)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}
