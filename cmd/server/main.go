package main

import (
	"context"
	"fmt"
	"os"

	"adsync/internal/delivery"
	"adsync/internal/domain"
	"adsync/internal/infrastructure"
	"adsync/internal/usecase"
	"adsync/pkg/config"
	"adsync/pkg/logger"
	"adsync/pkg/metrics"
	"adsync/pkg/retry"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level)
	log.Info("Starting adsync server")

	m := metrics.New()
	ctx := context.Background()

	accounts := []domain.AdAccount{{
		AccountRef: cfg.Platform.PrimaryAccountRef,
		Credential: cfg.Platform.PrimaryAccountToken,
		Role:       domain.RolePrimary,
	}}
	if cfg.Platform.SecondaryAccountRef != "" {
		accounts = append(accounts, domain.AdAccount{
			AccountRef: cfg.Platform.SecondaryAccountRef,
			Credential: cfg.Platform.SecondaryAccountToken,
			Role:       domain.RoleSecondary,
		})
	}

	rules := domain.DefaultCategoryRules()
	if cfg.Sync.CategoryRulesPath != "" {
		rules, err = domain.LoadCategoryRules(cfg.Sync.CategoryRulesPath)
		if err != nil {
			log.WithError(err).Fatal("Failed to load category rules")
		}
	}

	recordRepo, err := infrastructure.NewPostgresAdRepository(ctx, cfg.Storage.PostgresDSN, log, m)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize storage")
	}
	defer recordRepo.Close()

	runRepo := infrastructure.NewRunRepository(log)

	platformClient := infrastructure.NewPlatformClient(
		cfg.Platform.BaseURL,
		cfg.Platform.APIVersion,
		cfg.Platform.RequestTimeout,
		cfg.Platform.RequestsPerSecond,
		log, m,
	)
	creativeClient := infrastructure.NewCreativeClient(
		platformClient,
		cfg.Platform.PrimaryAccountRef,
		cfg.Platform.PrimaryAccountToken,
		cfg.Platform.RequestsPerSecond,
		log, m,
	)

	executor := retry.NewExecutor(cfg.Sync.RetryBaseDelay, cfg.Sync.RetryMaxDelay, cfg.Sync.MaxRetries, log, m)

	fetcher := usecase.NewAccountFetcher(platformClient, executor, log, m)
	merger := usecase.NewCrossAccountMerger(accounts, log)
	parser := usecase.NewAdNameParser(rules, log)
	resolver := usecase.NewThumbnailResolver(creativeClient, executor, log, m)
	classifier := usecase.NewStatusClassifier(log)

	syncService := usecase.NewSyncService(
		accounts, fetcher, merger, parser, resolver, classifier,
		recordRepo, runRepo, log, m,
		cfg.Sync.ThumbnailBatchSize,
		cfg.Sync.ThumbnailPause,
		cfg.Sync.UpsertBatchSize,
	)

	handlers := delivery.NewHTTPHandlers(syncService, runRepo, log, m)
	router := delivery.NewHTTPRouter(handlers, log, m)

	engine := router.SetupRoutes()
	log.WithField("port", cfg.Server.Port).Info("Listening")
	if err := engine.Run(":" + cfg.Server.Port); err != nil {
		log.WithError(err).Fatal("Server exited")
	}
}
