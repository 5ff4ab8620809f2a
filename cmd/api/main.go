package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"intelplatform/internal/analysis"
	"intelplatform/internal/cache"
	"intelplatform/internal/config"
	"intelplatform/internal/database"
	"intelplatform/internal/handlers"
	"intelplatform/internal/jobs"
	"intelplatform/internal/log"
	"intelplatform/internal/queue"
	"intelplatform/internal/repository"
	"intelplatform/internal/server"
	"intelplatform/internal/service"
	"intelplatform/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)

	ctx := context.Background()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	if cfg.Postgres.AutoMigrate {
		if err := database.Migrate(ctx, dbPool); err != nil {
			logger.Fatal().Err(err).Msg("database migration failed")
		}
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	var files *service.DatasetFileService
	datasets := repository.NewDatasetRepository(dbPool)
	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Warn().Err(err).Msg("object store disabled")
	} else {
		if err := objectStore.EnsureBuckets(ctx); err != nil {
			logger.Warn().Err(err).Msg("ensure buckets failed")
		}
		files = service.NewDatasetFileService(datasets, objectStore, cfg.Storage.MaxUploadBytes, log.WithComponent(logger, "datasets"))
	}

	lockoutStore, err := newLockoutStore(cfg.Security.LockoutBackend, dbPool, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid lockout backend")
	}
	authLog := log.WithComponent(logger, "auth")
	tracker := service.NewLockoutTracker(lockoutStore, cfg.Security.MaxAttempts, cfg.Security.LockoutDuration, authLog)
	registry := service.NewSessionRegistry(repository.NewPostgresSessionStore(dbPool), cfg.Security.SessionTTL, cfg.Security.SessionTokenBytes, authLog)
	authService := service.NewAuthService(repository.NewPostgresCredentialStore(dbPool), tracker, registry, authLog)

	if path := cfg.Security.LegacyUsersFile; path != "" {
		importLegacyUsers(ctx, logger, authService, path)
	}

	var llm analysis.Client
	if client, err := analysis.NewOpenAIClient(cfg.LLM); err != nil {
		logger.Warn().Err(err).Msg("ai analysis disabled")
	} else {
		llm = client
	}

	producer := queue.NewProducer(redisClient, cfg.Queue.Stream)
	incidents := repository.NewIncidentRepository(dbPool)
	tickets := repository.NewTicketRepository(dbPool)
	analysisService := service.NewAnalysisService(
		incidents,
		datasets,
		tickets,
		repository.NewAnalysisRepository(dbPool),
		producer,
		llm,
		log.WithComponent(logger, "analysis"),
	)

	handlerSet := handlers.NewHandlerSet(logger, cfg, handlers.Dependencies{
		Auth:      authService,
		Analysis:  analysisService,
		Files:     files,
		Incidents: incidents,
		Datasets:  datasets,
		Tickets:   tickets,
		Checks: map[string]handlers.HealthCheck{
			"database": dbPool.Ping,
			"cache":    cache.HealthCheck(redisClient),
		},
	})
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(producer, cfg.Scheduler.PruneSpec, log.WithComponent(logger, "scheduler"))
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, dbPool, redisClient)
}

func newLockoutStore(backend string, db *pgxpool.Pool, client *redis.Client) (repository.LockoutStore, error) {
	switch backend {
	case config.BackendPostgres:
		return repository.NewPostgresLockoutStore(db), nil
	case config.BackendRedis:
		return repository.NewRedisLockoutStore(client), nil
	case config.BackendMemory:
		return repository.NewMemoryLockoutStore(), nil
	}
	return nil, errors.New("unknown lockout backend " + backend)
}

func importLegacyUsers(ctx context.Context, logger zerolog.Logger, auth *service.AuthService, path string) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return
		}
		logger.Error().Err(err).Str("path", path).Msg("open legacy users file failed")
		return
	}
	defer f.Close()

	result, err := auth.ImportLegacyUsers(ctx, f)
	if err != nil {
		logger.Error().Err(err).Str("path", path).Msg("legacy user import failed")
		return
	}
	logger.Info().
		Int("imported", result.Imported).
		Int("skipped", result.Skipped).
		Int("invalid", result.Invalid).
		Msg("legacy users imported")
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}

	db.Close()
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}

	logger.Info().Msg("server exited cleanly")
}
