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

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/attrebi/kbase/internal/ai"
	"github.com/attrebi/kbase/internal/config"
	"github.com/attrebi/kbase/internal/db"
	"github.com/attrebi/kbase/internal/embedcache"
	"github.com/attrebi/kbase/internal/filestore"
	"github.com/attrebi/kbase/internal/handler"
	"github.com/attrebi/kbase/internal/job"
	"github.com/attrebi/kbase/internal/middleware"
	"github.com/attrebi/kbase/internal/repo"
	"github.com/attrebi/kbase/internal/schedule"
	"github.com/attrebi/kbase/internal/service"
	"github.com/attrebi/kbase/internal/worker"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "kbased",
		Short: "knowledge base ingestion and retrieval server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, database, err := setup(configPath)
			if err != nil {
				return err
			}
			defer database.Close()
			return runServer(cfg, database)
		},
	}
	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")

	resyncCmd := &cobra.Command{
		Use:   "resync",
		Short: "generate missing chunk embeddings and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, database, err := setup(configPath)
			if err != nil {
				return err
			}
			defer database.Close()
			return runResync(cfg, database)
		},
	}
	resyncCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")

	rootCmd.AddCommand(runCmd, resyncCmd)
	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func setup(configPath string) (*config.Config, *sql.DB, error) {
	if configPath == "" {
		return nil, nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

	database, err := db.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(database); err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}
	return cfg, database, nil
}

// buildEmbeddingClient wires the configured provider behind the in-memory
// and database caches. Returns a nil client when no provider is configured;
// semantic features degrade and everything else keeps working.
func buildEmbeddingClient(cfg *config.Config, cacheRepo *repo.EmbeddingCacheRepo) (*ai.Client, error) {
	if cfg.AI.Provider == "" {
		return nil, nil
	}
	provider, err := ai.NewProvider(cfg.AI.Provider, cfg.AI.Data)
	if err != nil {
		return nil, fmt.Errorf("init ai provider: %w", err)
	}
	embedder := ai.NewEmbedder(provider, cfg.AI.Model)
	embedder = embedcache.WrapDBCacheToEmbedder(embedder, cacheRepo)
	embedder = embedcache.WrapLruCacheToEmbedder(embedder, cfg.AI.CacheSize,
		time.Duration(cfg.AI.CacheTTLHours)*time.Hour)
	return ai.NewClient(embedder, cfg.AI.Dimension, time.Duration(cfg.AI.Timeout)*time.Second), nil
}

func runServer(cfg *config.Config, database *sql.DB) error {
	logutil.GetLogger(context.Background()).Info("starting server",
		zap.Int("port", cfg.Port),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("file_store", cfg.FileStore.Type),
	)

	docRepo := repo.NewDocumentRepo(database)
	chunkRepo := repo.NewChunkRepo(database)
	embRepo := repo.NewEmbeddingRepo(database)
	linkRepo := repo.NewChatLinkRepo(database)
	cacheRepo := repo.NewEmbeddingCacheRepo(database)

	client, err := buildEmbeddingClient(cfg, cacheRepo)
	if err != nil {
		return err
	}

	var store filestore.Store
	if cfg.FileStore.Type != "" {
		store, err = filestore.New(cfg.FileStore)
		if err != nil {
			return fmt.Errorf("init file store: %w", err)
		}
	}

	pool := worker.NewPool(cfg.EmbedWorker.Workers, cfg.EmbedWorker.QueueSize)
	pool.Start(context.Background())

	embeddingService := service.NewEmbeddingService(chunkRepo, embRepo, client, pool,
		time.Duration(cfg.EmbedWorker.DelayMS)*time.Millisecond)
	ingestService := service.NewIngestService(docRepo, chunkRepo, embeddingService, store)
	documentService := service.NewDocumentService(docRepo, chunkRepo, embRepo, linkRepo, embeddingService)
	searchService := service.NewSearchService(docRepo, embRepo, client)

	scheduler := schedule.NewCronScheduler()
	if client.Enabled() {
		sweepJob := job.NewEmbeddingSweepJob(embeddingService, cfg.EmbedWorker.SweepLimit)
		if err := scheduler.AddJob(sweepJob, cfg.EmbedWorker.SweepCron); err != nil {
			return err
		}
		cleanupJob := job.NewEmbeddingCacheCleanupJob(cacheRepo, 30)
		if err := scheduler.AddJob(cleanupJob, "30 4 * * *"); err != nil {
			return err
		}
	}

	deps := handler.RouterDeps{
		Ingest:     handler.NewIngestHandler(ingestService),
		Documents:  handler.NewDocumentHandler(documentService),
		Search:     handler.NewSearchHandler(searchService),
		Embeddings: handler.NewEmbeddingHandler(documentService, embeddingService),
		JWTSecret:  []byte(cfg.JWTSecret),
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler.Start(ctx)
	logutil.GetLogger(ctx).Info("http server listening",
		zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	scheduler.Stop()
	embeddingService.Shutdown()
	pool.Stop()
	return nil
}

func runResync(cfg *config.Config, database *sql.DB) error {
	chunkRepo := repo.NewChunkRepo(database)
	embRepo := repo.NewEmbeddingRepo(database)
	cacheRepo := repo.NewEmbeddingCacheRepo(database)
	client, err := buildEmbeddingClient(cfg, cacheRepo)
	if err != nil {
		return err
	}
	if !client.Enabled() {
		return fmt.Errorf("ai.provider must be configured for resync")
	}
	embeddingService := service.NewEmbeddingService(chunkRepo, embRepo, client, nil,
		time.Duration(cfg.EmbedWorker.DelayMS)*time.Millisecond)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return embeddingService.ResyncAll(ctx, cfg.EmbedWorker.SweepLimit)
}
