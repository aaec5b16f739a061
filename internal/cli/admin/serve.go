package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/mementolabs/memento/internal/api/handlers"
	"github.com/mementolabs/memento/internal/config"
	"github.com/mementolabs/memento/internal/ingest"
	"github.com/mementolabs/memento/internal/jina"
	"github.com/mementolabs/memento/internal/jobs"
	"github.com/mementolabs/memento/internal/llm"
	"github.com/mementolabs/memento/internal/repository"
	"github.com/mementolabs/memento/internal/search"
	"github.com/mementolabs/memento/internal/server"
	"github.com/mementolabs/memento/internal/service"
	"github.com/mementolabs/memento/internal/status"
	"github.com/mementolabs/memento/internal/storage"
	"github.com/mementolabs/memento/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the memento API server and ingestion worker on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("no-worker", false, "Do not run the background ingestion worker")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.SentryDSN != "" {
		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.SentryEnv,
			TracesSampleRate: cfg.SentrySampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	log.Println("connected to database")

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("invalid redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	log.Println("connected to redis")

	memoryRepo := repository.NewMemoryRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	vectorRepo := repository.NewVectorRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)
	queryLogRepo := repository.NewQueryLogRepository(pool)
	apiKeyRepo := repository.NewAPIKeyRepository(pool)
	ingestJobRepo := repository.NewIngestJobRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	uuidGen := &service.DefaultUUIDGenerator{}
	authSvc := service.NewAuthService(apiKeyRepo, uuidGen)

	if cfg.InitUserID != "" && cfg.InitAPIKey != "" {
		if err := bootstrapInitialKey(ctx, cfg, authSvc); err != nil {
			return fmt.Errorf("failed to bootstrap initial API key: %w", err)
		}
	}

	var objectStore service.ObjectStore
	var uploadSigner handlers.UploadURLSigner
	if cfg.HasS3() {
		s3Config := storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		}
		s3Client, err := storage.NewS3Client(ctx, s3Config)
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		objectStore = s3Client
		uploadSigner = s3Client
	}

	if !cfg.HasJina() {
		return fmt.Errorf("at least one Jina API key is required (MEMENTO_JINA_API_KEYS)")
	}
	jinaClient, err := jina.New(jina.Config{
		SegmentBaseURL: cfg.JinaSegmentBaseURL,
		RerankBaseURL:  cfg.JinaRerankBaseURL,
		RerankModel:    cfg.JinaRerankModel,
	}, jina.NewRandomKeys(cfg.JinaAPIKeys))
	if err != nil {
		return fmt.Errorf("failed to create jina client: %w", err)
	}

	embedder := llm.NewEmbedder(llm.EmbedderConfig{
		APIKey:     cfg.EmbeddingAPIKey,
		BaseURL:    cfg.EmbeddingBaseURL,
		Model:      cfg.EmbeddingModel,
		Dimensions: cfg.EmbeddingDimensions,
	})

	tracker := status.NewTracker(redisClient)
	segmenter := ingest.NewSegmenter(jinaClient, 0)
	batcher := service.NewUpsertBatcher(vectorRepo)
	extractors := service.DefaultExtractors(objectStore)

	ingestSvc := service.NewIngestService(
		txRunner, memoryRepo, chunkRepo, segmenter, embedder, batcher, tracker, extractors,
	)
	memorySvc := service.NewMemoryService(memoryRepo, chunkRepo, vectorRepo, embedder)

	searcher := search.NewSearcher(embedder, vectorRepo, chunkRepo, cfg.SemanticFloor)
	fusionCfg := search.FusionConfig{
		K:                 cfg.FusionK,
		SemanticWeight:    cfg.SemanticWeight,
		FullTextWeight:    cfg.FullTextWeight,
		ScoreScale:        cfg.FusionScoreScale,
		RelativeThreshold: cfg.RelativeThreshold,
	}
	reranker := search.NewReranker(jinaClient, search.RerankConfig{
		BatchLimit:      search.DefaultRerankConfig().BatchLimit,
		MemoryThreshold: cfg.RerankMemThreshold,
		WebThreshold:    cfg.RerankWebThreshold,
		TopK:            cfg.RerankTopK,
	})
	formatter := search.NewWebFormatter(search.DefaultContentLimits())

	// Leave the interface nil when no chat backend is configured so the
	// orchestrator can tell answering is unavailable.
	var chatClient search.ChatClient
	if cfg.HasChat() {
		chatClient = llm.NewChat(llm.ChatConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.ChatBaseURL,
			Model:   cfg.ChatModel,
		})
	}
	orch := search.NewOrchestrator(chatClient, messageRepo)

	querySvc := service.NewQueryService(
		searcher, fusionCfg, reranker, formatter, orch, chunkRepo, messageRepo,
	).WithQueryLog(queryLogRepo)
	if cfg.HasChat() {
		querySvc = querySvc.WithRefiner(llm.NewRefiner(llm.ChatConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.ChatBaseURL,
			Model:   cfg.ChatModel,
		}))
	}
	if cfg.HasWebSearch() {
		querySvc = querySvc.WithWebSearch(jinaClient)
	}

	var ingestWorker *jobs.Worker
	noWorker, _ := cmd.Flags().GetBool("no-worker")
	if !noWorker {
		processor := jobs.NewIngestWorker(ingestJobRepo, ingestSvc)
		ingestWorker = jobs.NewWorker(processor, cfg.WorkerPollInterval)
		go ingestWorker.Start(ctx)
		log.Println("ingestion worker started")
	}

	memoryHandler := handlers.NewMemoryHandler(ingestSvc, memorySvc)
	if uploadSigner != nil {
		memoryHandler = memoryHandler.WithUploader(uploadSigner)
	}

	routerCfg := server.RouterConfig{
		AuthValidator: authSvc,
		MemoryHandler: memoryHandler,
		StatusHandler: handlers.NewStatusHandler(tracker),
		QueryHandler:  handlers.NewQueryHandler(querySvc),
	}

	router := server.NewRouter(routerCfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if ingestWorker != nil {
		ingestWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

func bootstrapInitialKey(ctx context.Context, cfg *config.Config, authSvc *service.AuthService) error {
	if !service.IsValidAPIToken(cfg.InitAPIKey) {
		return fmt.Errorf("invalid MEMENTO_INIT_API_KEY format (expected 'mto_<64 hex chars>')")
	}

	existingKey, err := authSvc.GetAPIKeyByHash(ctx, cfg.InitAPIKey)
	if err == nil && existingKey != nil {
		log.Printf("bootstrap: API key already exists (id: %s)", existingKey.ID)
		return nil
	}

	if err := authSvc.CreateAPIKeyWithToken(ctx, cfg.InitUserID, "bootstrap", cfg.InitAPIKey); err != nil {
		return fmt.Errorf("failed to create API key: %w", err)
	}
	log.Printf("bootstrap: created API key for user %s", cfg.InitUserID)

	return nil
}

func runMigrations(databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
