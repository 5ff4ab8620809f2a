package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"intelplatform/internal/analysis"
	"intelplatform/internal/cache"
	"intelplatform/internal/config"
	"intelplatform/internal/database"
	"intelplatform/internal/log"
	"intelplatform/internal/queue"
	"intelplatform/internal/repository"
	"intelplatform/internal/service"
	"intelplatform/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.WithComponent(log.New(cfg.Environment, cfg.Logging.Level), "worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer dbPool.Close()

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	var llm analysis.Client
	if c, err := analysis.NewOpenAIClient(cfg.LLM); err != nil {
		logger.Warn().Err(err).Msg("analysis tasks will fail until an api key is configured")
	} else {
		llm = c
	}

	analyses := service.NewAnalysisService(
		repository.NewIncidentRepository(dbPool),
		repository.NewDatasetRepository(dbPool),
		repository.NewTicketRepository(dbPool),
		repository.NewAnalysisRepository(dbPool),
		queue.NewProducer(client, cfg.Queue.Stream),
		llm,
		logger,
	)
	sessions := service.NewSessionRegistry(
		repository.NewPostgresSessionStore(dbPool),
		cfg.Security.SessionTTL,
		cfg.Security.SessionTokenBytes,
		logger,
	)

	processor := tasks.NewProcessor(analyses, sessions, logger)
	consumer := queue.NewConsumer(
		client,
		cfg.Queue.Stream,
		cfg.Queue.Group,
		cfg.Queue.Consumer,
		cfg.Queue.ClaimInterval,
		logger,
		processor,
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Fatal().Err(err).Msg("consumer stopped unexpectedly")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		logger.Warn().Msg("consumer did not stop in time")
	}
}
