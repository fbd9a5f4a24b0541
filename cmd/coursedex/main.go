package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/campushq/coursedex/internal/config"
	dbRedis "github.com/campushq/coursedex/internal/db/redis"
	"github.com/campushq/coursedex/internal/docstore"
	"github.com/campushq/coursedex/internal/hydrate"
	logpkg "github.com/campushq/coursedex/internal/logger"
	"github.com/campushq/coursedex/internal/metrics"
	"github.com/campushq/coursedex/internal/passage"
	budgetrepo "github.com/campushq/coursedex/internal/repository/budget"
	"github.com/campushq/coursedex/internal/repository/embcache"
	indexrepo "github.com/campushq/coursedex/internal/repository/index"
	chiTransport "github.com/campushq/coursedex/internal/transport/chi"
	openaiEmb "github.com/campushq/coursedex/internal/transport/openai"
	embeddinguc "github.com/campushq/coursedex/internal/usecase/embedding"
	healthuc "github.com/campushq/coursedex/internal/usecase/health"
	searchuc "github.com/campushq/coursedex/internal/usecase/search"
	syncuc "github.com/campushq/coursedex/internal/usecase/sync"
	"github.com/campushq/coursedex/internal/version"
)

const hydrateCacheSize = 256

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting coursedex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("snapshot", cfg.Snapshot.Path),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterEngineMetrics()

	// Document store — the canonical snapshot lives in memory.
	docs := docstore.NewStore(logger)
	if err := docs.LoadFile(cfg.Snapshot.Path); err != nil {
		logger.Fatal("Failed to load snapshot", zap.Error(err))
	}
	logger.Info("Snapshot loaded",
		zap.Int("documents", docs.Len()),
		zap.Int("courses", len(docs.Courses())),
	)

	formatter := passage.New(docs.CourseName)

	// Embedder chain: OpenAI-compatible provider wrapped with a Redis cache.
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		BatchSize:  cfg.Embedding.BatchSize,
		MaxChars:   cfg.Embedding.MaxChars,
		Provider:   "openai",
		Logger:     logger,
	})
	cached := embcache.New(base, store, cfg.Index.KeyPrefix, metrics.EmbeddingCacheTotal, logger)

	// Pass nil interface (not typed nil pointer!) if budget is not configured.
	// Go gotcha: (*BudgetTracker)(nil) wrapped in BudgetChecker != nil.
	var budgetChecker embeddinguc.BudgetChecker
	budgetCfg := cfg.Embedding.Budget
	if budgetCfg.DailyTokenLimit > 0 || budgetCfg.MonthlyTokenLimit > 0 {
		action := embeddinguc.BudgetActionWarn
		if budgetCfg.Action == "reject" {
			action = embeddinguc.BudgetActionReject
		}
		tracker := embeddinguc.NewBudgetTracker(
			"openai", cfg.Index.KeyPrefix,
			budgetCfg.DailyTokenLimit, budgetCfg.MonthlyTokenLimit,
			action, logger,
		)
		// Connect persistence store — loads current counters from DB.
		tracker.WithStore(ctx, budgetrepo.New(store, 48*time.Hour, 62*24*time.Hour))
		budgetChecker = tracker
	}

	embedder := embeddinguc.NewInstrumentedEmbedder(cached, "openai", cfg.Embedding.Model, budgetChecker, logger)
	logger.Info("Embedder created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Bool("budget_enforced", budgetChecker != nil),
	)

	indexRepo := indexrepo.New(store, indexrepo.Config{
		KeyPrefix:       cfg.Index.KeyPrefix,
		VectorDim:       cfg.Embedding.Dimensions,
		HNSWM:           cfg.Index.HNSWM,
		HNSWEFConstruct: cfg.Index.HNSWEFConstruct,
	})

	syncSvc := syncuc.New(docs, indexRepo, formatter, embedder, cfg.Index.UpsertBatchSize, logger)

	fetcher, err := hydrate.NewFetcher(hydrateCacheSize, logger)
	if err != nil {
		logger.Fatal("Failed to create content fetcher", zap.Error(err))
	}

	searchSvc := searchuc.New(docs, indexRepo, embedder, formatter, fetcher, docs, searchuc.Config{
		MinScore:     cfg.Search.MinScore,
		FusionAlpha:  cfg.Search.FusionAlpha,
		KeywordScore: cfg.Search.KeywordScore,
		BM25K1:       cfg.Search.BM25K1,
		BM25B:        cfg.Search.BM25B,
	}, logger)

	healthSvc := healthuc.New(store, base, docs)

	server := chiTransport.NewServer(searchSvc, syncSvc, docs, healthSvc, logger)
	handler := server.Router(cfg.Auth.APIKeys)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}
