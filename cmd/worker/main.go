package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"

	"github.com/terekhovme/imagehub/internal/config"
	"github.com/terekhovme/imagehub/internal/domain"
	"github.com/terekhovme/imagehub/internal/helpers"
	"github.com/terekhovme/imagehub/internal/infrastructure/analyzer"
	infradatabase "github.com/terekhovme/imagehub/internal/infrastructure/database"
	"github.com/terekhovme/imagehub/internal/infrastructure/kafka"
	"github.com/terekhovme/imagehub/internal/infrastructure/storage"
	"github.com/terekhovme/imagehub/internal/repository/memory"
	"github.com/terekhovme/imagehub/internal/repository/postgres"
	"github.com/terekhovme/imagehub/internal/retry"
	"github.com/terekhovme/imagehub/internal/usecase"
	"github.com/terekhovme/imagehub/internal/worker"
)

func main() {
	zlog.Init()
	zlog.Logger.Info().Msg("Starting ImageHub Worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load("")
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to load config")
	}

	var (
		repo     domain.ImageRepository
		database *dbpg.DB
	)
	switch cfg.Records.Type {
	case "memory":
		// Useful only when api and worker run in one process; a
		// standalone worker needs postgres to see api writes.
		zlog.Logger.Warn().Msg("records.type=memory gives the worker its own empty store")
		repo = memory.NewImageRepository()
	case "postgres":
		connectRetries := cfg.Database.ConnectRetries
		connectDelay := cfg.Database.ConnectRetryDelaySec
		if connectRetries == 0 {
			connectRetries = 15
		}
		if connectDelay == 0 {
			connectDelay = 3
		}

		slaves := []string{}
		if strings.TrimSpace(cfg.Database.Slaves) != "" {
			slaves = helpers.SplitAndTrim(cfg.Database.Slaves, ",")
		}
		dbOpts := &dbpg.Options{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetimeSec) * time.Second,
		}

		database, err = infradatabase.ConnectWithRetries(cfg.Database.DSN, slaves, dbOpts, connectRetries, connectDelay)
		if err != nil || database == nil {
			zlog.Logger.Fatal().Err(err).Msg("failed to connect to database after all retries")
		}

		zlog.Logger.Info().Msg("Running database migrations...")
		if err := infradatabase.RunMigrations(database, cfg.Migrations.Path); err != nil {
			zlog.Logger.Warn().Err(err).Msg("Migrations warning (might be already applied)")
		}

		repo = postgres.NewImageRepository(database, retry.DefaultStrategy)
	}

	storageService, err := storage.New(&cfg.Storage)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to initialize storage")
	}

	processorUsecase := usecase.NewProcessorUsecase(repo, storageService, analyzer.New())
	imageWorker := worker.NewImageWorker(processorUsecase)

	kafkaConsumer, err := kafka.NewConsumer(&cfg.Kafka, imageWorker.HandleProcessingTask)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to initialize Kafka consumer")
	}
	defer kafkaConsumer.Close()

	go func() {
		if err := kafkaConsumer.Start(ctx); err != nil {
			zlog.Logger.Error().Err(err).Msg("Kafka consumer error")
		}
	}()

	<-ctx.Done()
	zlog.Logger.Info().Msg("Shutdown signal received")

	if database != nil && database.Master != nil {
		database.Master.Close()
		for _, s := range database.Slaves {
			if s != nil {
				s.Close()
			}
		}
	}

	zlog.Logger.Info().Msg("Worker shutdown complete")
}
