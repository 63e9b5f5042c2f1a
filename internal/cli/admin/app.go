package admin

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/lessonlens/internal/api/handlers"
	"github.com/cloo-solutions/lessonlens/internal/config"
	"github.com/cloo-solutions/lessonlens/internal/database"
	"github.com/cloo-solutions/lessonlens/internal/jobs"
	"github.com/cloo-solutions/lessonlens/internal/logger"
	"github.com/cloo-solutions/lessonlens/internal/metrics"
	"github.com/cloo-solutions/lessonlens/internal/openai"
	"github.com/cloo-solutions/lessonlens/internal/repository"
	"github.com/cloo-solutions/lessonlens/internal/server"
	"github.com/cloo-solutions/lessonlens/internal/service"
	"github.com/cloo-solutions/lessonlens/internal/storage"
	"github.com/cloo-solutions/lessonlens/internal/telemetry"
)

// app holds the wired pipeline shared by the serve and worker commands
type app struct {
	cfg        *config.Config
	log        *logger.Logger
	metrics    *metrics.Metrics
	dispatcher *jobs.Dispatcher
	router     http.Handler

	closers []func()
}

func setupLogger(cfg *config.Config) (*logger.Logger, error) {
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, err
	}
	return log, nil
}

// setupTelemetry initializes Sentry when a DSN is configured
func setupTelemetry(cfg *config.Config, log *logger.Logger) func() {
	// 10% sampling outside development
	sampleRate := 0.1
	if cfg.Environment == "development" {
		sampleRate = 1.0
	}

	shutdown, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		TracesSampleRate: sampleRate,
		Debug:            cfg.Debug,
	}, log)
	if err != nil {
		log.Warn("telemetry init failed, continuing without tracing", "error", err)
		return func() {}
	}
	return shutdown
}

// openPool connects to Postgres. workers is the number of job loops that
// will share the pool, zero for one-shot commands.
func openPool(ctx context.Context, cfg *config.Config, workers int) (*pgxpool.Pool, error) {
	pool, err := database.NewPool(ctx, database.Config{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
		Workers:  workers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return pool, nil
}

func modelConfig(cfg *config.Config) openai.ModelConfig {
	return openai.ModelConfig{
		ResponsesModel:      cfg.ResponsesModel,
		EmbeddingModel:      cfg.EmbeddingModel,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		ImageModel:          cfg.ImageModel,
	}
}

// newApp connects every backing service and wires the pipeline. Redis and S3
// are optional: without Redis every regeneration starts a fresh thread, and
// without S3 image rendering is disabled.
func newApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*app, error) {
	if !cfg.HasOpenAI() {
		return nil, fmt.Errorf("LESSONLENS_OPENAI_API_KEY is required")
	}

	a := &app{cfg: cfg, log: log, metrics: metrics.New()}

	pool, err := openPool(ctx, cfg, cfg.WorkerConcurrency)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, pool.Close)
	log.Info("connected to database")

	var threads openai.ThreadStore
	if cfg.HasRedis() {
		rdb, err := storage.NewRedisClient(ctx, storage.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		threads = storage.NewRedisThreadStore(rdb, cfg.RedisThreadTTL)
		log.Info("generation threads stored in redis", "ttl", cfg.RedisThreadTTL)
	} else {
		log.Warn("redis not configured, regeneration threads cannot be continued")
	}

	models := modelConfig(cfg)
	sdk := openai.NewSDKClient(openai.Config{APIKey: cfg.OpenAIAPIKey, BaseURL: cfg.OpenAIBaseURL})
	embedder := openai.NewClient(openai.NewOpenAIAdapter(sdk, models), models).WithMetrics(a.metrics)
	generator := openai.NewGenerator(sdk, threads, models).WithMetrics(a.metrics)

	pageRepo := repository.NewPageRepository(pool)
	moduleRepo := repository.NewModuleRepository(pool)
	embeddingRepo := repository.NewPageEmbeddingRepository(pool)
	conceptRepo := repository.NewConceptRepository(pool)
	relationRepo := repository.NewRelationRepository(pool)
	jobRepo := repository.NewPipelineJobRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	embeddingSvc := service.NewEmbeddingService(embedder, pageRepo, embeddingRepo, log)
	similaritySvc := service.NewSimilarityService(pageRepo, embeddingSvc, embeddingRepo, cfg.NeighborMinSimilarity)
	conceptSvc := service.NewConceptService(pageRepo, moduleRepo, conceptRepo, generator, service.ConceptConfig{
		MaxTerms:           cfg.ConceptMaxTerms,
		DefinitionMaxChars: cfg.ConceptDefinitionMaxChars,
	}, a.metrics, log)
	relationSvc := service.NewRelationService(pageRepo, moduleRepo, similaritySvc, generator, relationRepo,
		cfg.SuggestionMinSimilarity, a.metrics, log).WithDefaultTopK(cfg.SuggestionTopK)
	regenerationSvc := service.NewRegenerationService(pageRepo, moduleRepo, generator, txRunner, a.metrics, log)
	editingSvc := service.NewEditingService(txRunner, a.metrics, log)

	var imageSvc handlers.ImageService
	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
			URLExpiry:       cfg.S3URLExpiry,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Info("S3 bucket ready", "bucket", cfg.S3Bucket)
		renderer := openai.NewImageGenerator(sdk, models).WithMetrics(a.metrics)
		imageSvc = service.NewImageService(pageRepo, renderer, s3Client, log)
	} else {
		log.Warn("S3 not configured, image rendering disabled")
	}

	a.dispatcher = jobs.NewDispatcher(jobRepo, embeddingSvc, conceptSvc, jobs.DispatcherConfig{
		BatchSize:   cfg.JobBatchSize,
		MaxAttempts: cfg.JobMaxAttempts,
		RetryDelay:  cfg.JobRetryDelay,
		StaleAfter:  cfg.JobStaleAfter,
	}, a.metrics, log)

	a.router = server.NewRouter(server.RouterConfig{
		Logger:              log,
		Metrics:             a.metrics,
		PageHandler:         handlers.NewPageHandler(editingSvc, imageSvc),
		RelationHandler:     handlers.NewRelationHandler(similaritySvc, relationSvc),
		RegenerationHandler: handlers.NewRegenerationHandler(regenerationSvc),
		ListingHandler:      handlers.NewListingHandler(conceptRepo, relationRepo),
		JobHandler:          handlers.NewJobHandler(jobRepo),
	})

	return a, nil
}

func (a *app) newWorker() *jobs.Worker {
	return jobs.NewWorker(a.dispatcher, a.cfg.WorkerPollInterval, a.cfg.WorkerConcurrency, a.log)
}

// Close releases connections in reverse order of acquisition
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
