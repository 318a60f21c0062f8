// cmd/worker-manager/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"health-risk-workers/internal/alerts"
	"health-risk-workers/internal/api"
	"health-risk-workers/internal/assessment"
	"health-risk-workers/internal/audit"
	"health-risk-workers/internal/common/aws"
	"health-risk-workers/internal/common/camunda"
	"health-risk-workers/internal/common/config"
	"health-risk-workers/internal/common/database"
	"health-risk-workers/internal/common/logger"
	"health-risk-workers/internal/common/observability"
	"health-risk-workers/internal/riskmodel"
	"health-risk-workers/pkg/registry"

	ahr "health-risk-workers/internal/workers/clinical/assess-health-risk"
	nct "health-risk-workers/internal/workers/clinical/notify-care-team"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	obs := observability.New(cfg.Observability.ServiceName, cfg.Observability.JaegerEndpoint)
	defer obs.Shutdown()

	ctx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	checks := map[string]api.HealthChecker{}

	// --- Threshold tables: a bad table is fatal ---
	thresholds, err := assessment.ThresholdsFromConfig(cfg.Thresholds)
	if err != nil {
		zapLog.Fatal("threshold configuration invalid", zap.Error(err))
	}

	// --- Risk model ---
	modelRegistry := riskmodel.NewRegistry(riskmodel.LoaderFromConfig(cfg.Model), riskmodel.Source(cfg.Model), log)
	if err := modelRegistry.Reload(ctx); err != nil {
		// Scoring continues rule-only until /api/model/reload succeeds.
		zapLog.Warn("risk model not loaded, assessments fall back to thresholds", zap.Error(err))
	}

	// --- Init Redis (prediction cache) with retry ---
	var predictionCache *riskmodel.PredictionCache
	if cfg.Database.Redis.Enabled && cfg.Model.CacheTTL > 0 {
		var redis *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			redis, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return redis.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redis.Close()
		predictionCache = riskmodel.NewPredictionCache(redis.Client, time.Duration(cfg.Model.CacheTTL)*time.Second, log)
		checks["redis"] = redis
		zapLog.Info("Redis connected successfully")
	}

	orchestrator, err := assessment.NewOrchestrator(assessment.Options{
		Thresholds:    thresholds,
		Model:         riskmodel.NewAdapter(modelRegistry, predictionCache, cfg.Model.Version),
		ModelTimeout:  config.GetDuration(cfg.Model.Timeout),
		Logger:        log,
		Observability: obs,
	})
	if err != nil {
		zapLog.Fatal("assessment pipeline init failed", zap.Error(err))
	}

	// --- Audit sinks ---
	var sinks []audit.Sink
	var store *audit.PostgresStore

	if cfg.Database.Postgres.Enabled {
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()

		store = audit.NewPostgresStore(pg)
		if err := store.EnsureSchema(ctx); err != nil {
			zapLog.Fatal("audit schema migration failed", zap.Error(err))
		}
		if days := cfg.Database.Postgres.RetentionDays; days > 0 {
			go runRetention(ctx, store, time.Duration(days)*24*time.Hour, zapLog)
		}
		sinks = append(sinks, store)
		checks["postgres"] = pg
		zapLog.Info("PostgreSQL connected successfully")
	}

	if cfg.Database.Elasticsearch.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}

		indexer := audit.NewSearchIndexer(esClient, cfg.Database.Elasticsearch.Index)
		if err := indexer.EnsureIndex(ctx); err != nil {
			zapLog.Fatal("audit index creation failed", zap.Error(err))
		}
		sinks = append(sinks, indexer)
		checks["elasticsearch"] = esClient
		zapLog.Info("Elasticsearch connected successfully")
	}

	recorder := audit.NewRecorder(log, sinks...)

	// --- Care-team alerts ---
	var snsClient *aws.SNSClient
	var sesClient *aws.SESClient
	if cfg.Alerts.Enabled {
		awsCfg, err := aws.LoadConfig(ctx, cfg.Alerts.AWS.Region)
		if err != nil {
			zapLog.Fatal("aws config load failed", zap.Error(err))
		}
		snsClient = aws.NewSNSClient(awsCfg)
		sesClient = aws.NewSESClient(awsCfg)
	}
	notifier := alerts.NewNotifier(cfg.Alerts, snsClient, sesClient, log)

	// --- Zeebe client and workers ---
	var zeebe *camunda.Client
	var workers []*camunda.CamundaWorker
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClientWithConfig(camunda.ConfigFrom(cfg.Camunda))
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		checks["zeebe"] = api.CheckFunc(zeebe.HealthCheck)
		zapLog.Info("Zeebe client connected successfully")

		assessHandler, err := ahr.NewHandler(ahr.HandlerOptions{
			AppConfig:     cfg,
			Assessor:      orchestrator,
			Recorder:      recorder,
			Observability: obs,
			Logger:        log,
		})
		if err != nil {
			zapLog.Fatal("failed to create worker", zap.String("taskType", ahr.TaskType), zap.Error(err))
		}
		if w := camunda.StartWorker(zeebe.GetClient(), ahr.TaskType, config.GetWorkerConfig(cfg, ahr.TaskType), assessHandler, log); w != nil {
			workers = append(workers, w)
		}

		notifyHandler, err := nct.NewHandler(nct.HandlerOptions{
			AppConfig:     cfg,
			Sender:        notifier,
			Observability: obs,
			Logger:        log,
		})
		if err != nil {
			zapLog.Fatal("failed to create worker", zap.String("taskType", nct.TaskType), zap.Error(err))
		}
		if w := camunda.StartWorker(zeebe.GetClient(), nct.TaskType, config.GetWorkerConfig(cfg, nct.TaskType), notifyHandler, log); w != nil {
			workers = append(workers, w)
		}

		if cfg.Escalation.Message != "" && !config.IsWorkerEnabled(cfg, nct.TaskType) {
			zapLog.Warn("escalation messages are published but no notify worker runs in this process",
				zap.String("message", cfg.Escalation.Message))
		}
		zapLog.Info("Workers registered", zap.Int("count", len(workers)))
		checkRegistry(cfg.Registry.Path, workers, zapLog)
	}

	// --- HTTP API ---
	var server *api.Server
	if cfg.HTTP.Enabled {
		opts := api.Options{
			ServiceName:   cfg.App.Name,
			Assessor:      orchestrator,
			Models:        modelRegistry,
			Recorder:      recorder,
			Checks:        checks,
			Observability: obs,
			Logger:        log,
		}
		// Interfaces stay nil unless the backing client exists.
		if store != nil {
			opts.Store = store
		}
		switch {
		case zeebe != nil && cfg.Escalation.Message != "":
			opts.Escalator = alerts.NewProcessEscalator(zeebe, cfg.Escalation.Message, log)
		case notifier.Enabled():
			opts.Escalator = notifier
		}

		server, err = api.NewServer(opts)
		if err != nil {
			zapLog.Fatal("http server init failed", zap.Error(err))
		}
		server.Start(cfg.HTTP)
	}

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	stopBackground()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			zapLog.Error("Error stopping HTTP server", zap.Error(err))
		}
	}

	for _, w := range workers {
		w.Stop()
	}

	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}

	zapLog.Info("Worker manager stopped gracefully")
}

// checkRegistry warns about running workers the activity registry does not
// describe. A missing registry file is not an error.
func checkRegistry(path string, workers []*camunda.CamundaWorker, log *zap.Logger) {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		log.Warn("activity registry not loaded", zap.String("path", path), zap.Error(err))
		return
	}
	for _, w := range workers {
		activity, ok := reg.FindByTaskType(w.TaskType())
		if !ok {
			log.Warn("worker missing from activity registry", zap.String("taskType", w.TaskType()))
			continue
		}
		log.Debug("worker registered in activity registry",
			zap.String("taskType", w.TaskType()),
			zap.String("activityId", activity.ID),
			zap.String("version", activity.Version),
		)
	}
}

// runRetention purges audit rows older than keep once at startup and then
// daily until ctx is cancelled.
func runRetention(ctx context.Context, store *audit.PostgresStore, keep time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		n, err := store.Purge(ctx, time.Now().UTC().Add(-keep))
		if err != nil && ctx.Err() == nil {
			log.Warn("audit retention purge failed", zap.Error(err))
		} else if n > 0 {
			log.Info("audit retention purge", zap.Int64("deleted", n))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
