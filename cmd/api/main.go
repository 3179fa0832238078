package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/fairlens/fairlens/internal/application"
	appanalyses "github.com/fairlens/fairlens/internal/application/analyses"
	appdatasets "github.com/fairlens/fairlens/internal/application/datasets"
	appinsights "github.com/fairlens/fairlens/internal/application/insights"
	"github.com/fairlens/fairlens/internal/config"
	"github.com/fairlens/fairlens/internal/domain/activity"
	domanalyses "github.com/fairlens/fairlens/internal/domain/analyses"
	"github.com/fairlens/fairlens/internal/domain/datasets"
	dominsights "github.com/fairlens/fairlens/internal/domain/insights"
	"github.com/fairlens/fairlens/internal/domain/jobs"
	aiopenai "github.com/fairlens/fairlens/internal/infra/ai/openai"
	mysqlp "github.com/fairlens/fairlens/internal/infra/db/mysql"
	postgresp "github.com/fairlens/fairlens/internal/infra/db/postgres"
	"github.com/fairlens/fairlens/internal/infra/httpserver"
	"github.com/fairlens/fairlens/internal/infra/queue"
	minioStore "github.com/fairlens/fairlens/internal/infra/storage"
	"github.com/fairlens/fairlens/internal/ingest"
	"github.com/fairlens/fairlens/internal/middleware"
)

type repositories struct {
	analyses domanalyses.Repository
	activity activity.Repository
	datasets datasets.Repository
	insights dominsights.Repository
	jobStore queue.Store
}

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx := context.Background()

	// connect database; the driver selects which backend everything runs on
	db, repos, err := connectDatabase(ctx, cfg)
	if err != nil {
		log.Fatalf("database connect error: %v", err)
	}
	defer db.Close()

	// init minio
	store, err := minioStore.New(ctx,
		cfg.Minio.Endpoint,
		cfg.Minio.Region,
		cfg.Minio.BucketName,
		cfg.Minio.AccessKey,
		cfg.Minio.SecretKey,
		cfg.Minio.UseSSL,
	)
	if err != nil {
		log.Fatalf("minio init error: %v", err)
	}

	// init queue
	q := queue.NewDurable(repos.jobStore, queue.Config{
		MaxAttempts:  cfg.Queue.MaxAttempts,
		BackoffBase:  cfg.QueueBackoffBase(),
		BackoffCap:   cfg.QueueBackoffCap(),
		PollInterval: cfg.QueuePollInterval(),
		LockTTL:      cfg.QueueLockTTL(),
	}, log)

	// init services
	resolver := &ingest.Resolver{Datasets: repos.datasets, Store: store, Log: log}
	analysesSvc := &appanalyses.Service{
		Repo:         repos.analyses,
		Activity:     repos.activity,
		Queue:        q,
		Store:        store,
		Resolver:     resolver,
		Clock:        application.SystemClock{},
		Log:          log,
		ResultBucket: store.Bucket(),
	}
	datasetsSvc := &appdatasets.Service{Repo: repos.datasets, Clock: application.SystemClock{}}

	var insightsSvc *appinsights.Service
	if cfg.OpenAI.APIKey != "" {
		insightsSvc = &appinsights.Service{
			Client:   aiopenai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model),
			Repo:     repos.insights,
			Analyses: repos.analyses,
			Store:    store,
			Clock:    application.SystemClock{},
		}
	}

	// start the consumer and drain lifecycle events into logs and metrics
	q.RegisterConsumer(analysesSvc.HandleJob)
	go drainQueueEvents(q.Events(), log)

	// init router
	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))
	mux.Use(middleware.LoggingMiddleware(log))
	mux.Use(middleware.MetricsMiddleware)
	if cfg.RateLimit.Capacity > 0 {
		mux.Use(middleware.RateLimitMiddleware(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate))
	}
	if len(cfg.Auth.APIKeys) > 0 {
		mux.Use(middleware.APIKeyAuth(cfg.Auth.APIKeys))
		mux.Use(middleware.RequireValidTenant)
	}

	mux.Get("/ready", middleware.ReadinessHandler)
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)
	mux.Get("/healthz", middleware.HealthHandler(map[string]middleware.HealthChecker{
		"database":     &middleware.DatabaseHealthChecker{DB: db},
		"object_store": &middleware.ObjectStoreHealthChecker{Store: store},
	}))
	mux.Mount("/", httpserver.NewRouter(analysesSvc, datasetsSvc, insightsSvc))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Infof("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Warnf("shutdown error: %v", err)
	}
	if err := q.Close(ctx2); err != nil {
		log.Warnf("queue close error: %v", err)
	}
}

func connectDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, repositories, error) {
	switch cfg.Database.Driver {
	case "", "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, repositories{}, err
		}
		return db, repositories{
			analyses: mysqlp.NewAnalysisRepository(db),
			activity: mysqlp.NewActivityRepository(db),
			datasets: mysqlp.NewDatasetRepository(db),
			insights: mysqlp.NewInsightRepository(db),
			jobStore: mysqlp.NewJobStore(db),
		}, nil
	case "postgres":
		db, err := postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, repositories{}, err
		}
		return db, repositories{
			analyses: postgresp.NewAnalysisRepository(db),
			activity: postgresp.NewActivityRepository(db),
			datasets: postgresp.NewDatasetRepository(db),
			insights: postgresp.NewInsightRepository(db),
			jobStore: postgresp.NewJobStore(db),
		}, nil
	default:
		return nil, repositories{}, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
}

// drainQueueEvents logs each delivery transition and keeps the process
// metrics in step with the consumer.
func drainQueueEvents(events <-chan jobs.Event, log *logrus.Logger) {
	for ev := range events {
		entry := log.WithFields(logrus.Fields{
			"job_id":  ev.JobID,
			"attempt": ev.Attempt,
		})
		switch ev.Type {
		case jobs.EventActive:
			middleware.IncrementAnalyses()
			middleware.IncrementAnalysesRunning()
			entry.Info("job active")
		case jobs.EventCompleted:
			middleware.DecrementAnalysesRunning()
			entry.Info("job completed")
		case jobs.EventFailed:
			middleware.DecrementAnalysesRunning()
			middleware.IncrementAnalysesFailed()
			entry.Warn("job failed")
		case jobs.EventStalled:
			entry.Warn("job reclaimed from stalled worker")
		case jobs.EventQueueError:
			entry.WithField("error", ev.Err).Error("queue error")
		}
	}
}
