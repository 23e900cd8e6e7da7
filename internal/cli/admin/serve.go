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
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/substrate-kb/substrate/internal/api/handlers"
	"github.com/substrate-kb/substrate/internal/config"
	"github.com/substrate-kb/substrate/internal/database"
	"github.com/substrate-kb/substrate/internal/index"
	"github.com/substrate-kb/substrate/internal/jobs"
	"github.com/substrate-kb/substrate/internal/openai"
	"github.com/substrate-kb/substrate/internal/repository"
	"github.com/substrate-kb/substrate/internal/server"
	"github.com/substrate-kb/substrate/internal/service"
	"github.com/substrate-kb/substrate/internal/storage"
	"github.com/substrate-kb/substrate/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the retrieval API server",
		Long:  "Start the substrate API server: load the index, start the decay worker, and serve search, recommendation, and ingestion endpoints",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
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

	pool, err := database.NewPool(ctx, database.Config{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	instanceRepo := repository.NewInstanceRepository(pool)
	profileRepo := repository.NewProfileRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	idx := index.New(index.Config{
		Dimension:           cfg.EmbeddingDimension,
		BruteForceThreshold: cfg.BruteForceThreshold,
		M:                   cfg.HNSWM,
		EfConstruction:      cfg.HNSWEfConstruction,
		EfSearch:            cfg.HNSWEfSearch,
	})

	var snapshotStore *storage.SnapshotStore
	if cfg.HasS3() {
		snapshotStore, err = storage.NewSnapshotStore(ctx, storage.SnapshotStoreConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create snapshot store: %w", err)
		}
		if err := snapshotStore.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure snapshot bucket: %w", err)
		}
		log.Printf("snapshot bucket '%s' ready", cfg.S3Bucket)
	}

	instanceSvc := service.NewInstanceService(instanceRepo, idx, cfg.EmbeddingDimension)

	if err := warmIndex(ctx, idx, instanceSvc, snapshotStore); err != nil {
		return fmt.Errorf("failed to load index: %w", err)
	}
	log.Printf("index ready: %d instances", idx.Len())

	var embedder service.QueryEmbedder
	if cfg.HasOpenAI() {
		embedder = openai.NewClientWithConfig(openai.Config{
			APIKey:              cfg.OpenAIAPIKey,
			EmbeddingDimensions: cfg.EmbeddingDimension,
		})
		log.Println("query-text search enabled")
	}

	searchSvc := service.NewSearchService(idx, embedder, service.SearchConfig{
		Alpha:     cfg.SearchAlpha,
		TopKCap:   cfg.TopKCap,
		Dimension: cfg.EmbeddingDimension,
	})

	decayScorer := service.NewDecayScorer(instanceRepo, idx,
		service.DefaultDecayConfig(cfg.DecayBaseHalfLife, cfg.DecayBatchSize))

	recommendEngine := service.NewRecommendationEngine(profileRepo, idx, service.RecommendationConfig{
		Alpha:               cfg.SearchAlpha,
		CandidateMultiplier: cfg.CandidateMultiplier,
		TopKCap:             cfg.TopKCap,
		FreshnessFloor:      cfg.FreshnessFloor,
	})

	profileSvc := service.NewProfileService(txRunner, decayScorer, service.ProfileConfig{
		Beta:      cfg.InterestBeta,
		Dimension: cfg.EmbeddingDimension,
	})

	// Bring persisted decay scores up to date before serving queries.
	if result, err := decayScorer.RunOnce(ctx); err != nil {
		log.Printf("startup decay sweep failed (continuing with stored scores): %v", err)
	} else {
		log.Printf("startup decay sweep: updated=%d skipped=%d", result.Updated, result.Skipped)
	}

	decayWorker := jobs.NewWorker("decay", jobs.NewDecaySweeper(decayScorer), cfg.DecayInterval)
	go decayWorker.Start(ctx)

	var snapshotWorker *jobs.Worker
	var snapshotPublisher *jobs.SnapshotPublisher
	if snapshotStore != nil {
		snapshotPublisher = jobs.NewSnapshotPublisher(idx, snapshotStore)
		snapshotWorker = jobs.NewWorker("snapshot", snapshotPublisher, cfg.SnapshotInterval)
		go snapshotWorker.Start(ctx)
	}

	routerCfg := server.RouterConfig{
		InstanceHandler:   handlers.NewInstanceHandler(instanceSvc, decayScorer),
		SearchHandler:     handlers.NewSearchHandler(searchSvc),
		RecommendHandler:  handlers.NewRecommendHandler(recommendEngine),
		EngagementHandler: handlers.NewEngagementHandler(profileSvc),
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

	decayWorker.Stop()
	if snapshotWorker != nil {
		snapshotWorker.Stop()
	}

	// Final export so the next boot warms from current state.
	if snapshotPublisher != nil {
		if err := snapshotPublisher.ProcessJobs(ctx); err != nil {
			log.Printf("shutdown snapshot failed: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// warmIndex loads the index from the latest snapshot when available, falling
// back to a full rebuild from the store. The store stays authoritative; a
// stale snapshot only means the first decay sweep has more to correct.
func warmIndex(ctx context.Context, idx *index.Index, instanceSvc *service.InstanceService, snapshotStore *storage.SnapshotStore) error {
	if snapshotStore != nil {
		key, err := snapshotStore.LatestSnapshotKey(ctx)
		if err != nil {
			log.Printf("snapshot lookup failed, rebuilding from store: %v", err)
		} else if key != "" {
			body, err := snapshotStore.GetSnapshot(ctx, key)
			if err == nil {
				loaded, err := idx.ReadSnapshot(ctx, body)
				body.Close()
				if err == nil {
					log.Printf("index warmed from snapshot %s (%d instances)", key, loaded)
					return nil
				}
				log.Printf("snapshot %s unusable, rebuilding from store: %v", key, err)
			} else {
				log.Printf("snapshot download failed, rebuilding from store: %v", err)
			}
		}
	}

	loaded, err := instanceSvc.RebuildIndex(ctx)
	if err != nil {
		return err
	}
	log.Printf("index rebuilt from store (%d instances)", loaded)
	return nil
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	// Create postgres driver instance
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	// Create migrate instance with file source
	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	// Run migrations
	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Get migration version and status
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
