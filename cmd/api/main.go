package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/terekhovme/imagehub/internal/config"
	"github.com/terekhovme/imagehub/internal/domain"
	httpHandler "github.com/terekhovme/imagehub/internal/handler/http"
	"github.com/terekhovme/imagehub/internal/handler/middleware"
	"github.com/terekhovme/imagehub/internal/helpers"
	infradatabase "github.com/terekhovme/imagehub/internal/infrastructure/database"
	"github.com/terekhovme/imagehub/internal/infrastructure/kafka"
	"github.com/terekhovme/imagehub/internal/infrastructure/storage"
	"github.com/terekhovme/imagehub/internal/repository/memory"
	"github.com/terekhovme/imagehub/internal/repository/postgres"
	"github.com/terekhovme/imagehub/internal/retry"
	"github.com/terekhovme/imagehub/internal/usecase"
)

func main() {
	zlog.Init()
	zlog.Logger.Info().Msg("Starting ImageHub API Server")

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
		repo = memory.NewImageRepository()
	case "postgres":
		database = mustConnect(cfg)
		repo = postgres.NewImageRepository(database, retry.DefaultStrategy)
	}

	storageService, err := storage.New(&cfg.Storage)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to initialize storage")
	}

	kafkaProducer := kafka.NewProducer(&cfg.Kafka)
	defer kafkaProducer.Close()

	imageUsecase := usecase.NewImageUsecase(
		repo,
		storageService,
		kafkaProducer,
		cfg.Upload.MaxSizeMB,
		cfg.Query.DefaultLimit,
		cfg.Query.MaxLimit,
	)

	engine := ginext.New("api")
	engine.Use(
		middleware.ErrorHandlerMiddleware(),
		middleware.LoggerMiddleware(),
		middleware.CORSMiddleware(),
	)

	engine.GET("/health", func(c *ginext.Context) {
		c.JSON(http.StatusOK, ginext.H{"status": "ok"})
	})

	imageHandler := httpHandler.NewImageHandler(
		imageUsecase,
		cfg.Upload.MaxSizeMB,
		cfg.Upload.AllowedFormats,
		cfg.Server.PresignExpiryMin,
	)
	imageHandler.RegisterRoutes(engine)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
	}

	go func() {
		zlog.Logger.Info().Str("addr", cfg.Server.Addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Logger.Fatal().Err(err).Msg("Failed to start API server")
		}
	}()

	<-ctx.Done()
	zlog.Logger.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("HTTP server shutdown failed")
	} else {
		zlog.Logger.Info().Msg("HTTP server stopped gracefully")
	}

	closeDatabase(database)

	zlog.Logger.Info().Msg("API shutdown complete")
}

func mustConnect(cfg *config.Config) *dbpg.DB {
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

	database, err := infradatabase.ConnectWithRetries(cfg.Database.DSN, slaves, dbOpts, connectRetries, connectDelay)
	if err != nil || database == nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to database after all retries")
	}

	zlog.Logger.Info().Msg("Running database migrations...")
	if err := infradatabase.RunMigrations(database, cfg.Migrations.Path); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Migrations failed")
	}

	return database
}

func closeDatabase(database *dbpg.DB) {
	if database == nil || database.Master == nil {
		return
	}
	if err := database.Master.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("closing db master failed")
	}
	for i, s := range database.Slaves {
		if s == nil {
			continue
		}
		if err := s.Close(); err != nil {
			zlog.Logger.Error().Err(err).Int("slave_index", i).Msg("closing db slave failed")
		}
	}
}
