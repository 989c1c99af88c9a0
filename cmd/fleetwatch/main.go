package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"fleetwatch/internal/alerts"
	"fleetwatch/internal/analytics"
	"fleetwatch/internal/broker"
	"fleetwatch/internal/config"
	"fleetwatch/internal/logging"
	"fleetwatch/internal/pipeline"
	"fleetwatch/internal/rollup"
	"fleetwatch/internal/store"
	transport "fleetwatch/internal/transport/http"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger setup failed: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewPostgresStore(ctx, cfg)
	if err != nil {
		logger.Fatal("postgres connection failed", zap.Error(err))
	}
	defer db.Close()

	redis, err := store.NewRedisStore(ctx, cfg)
	if err != nil {
		logger.Fatal("redis connection failed", zap.Error(err))
	}
	defer redis.Close()

	producer, err := broker.NewProducer(cfg.KafkaBrokers, cfg.AlertTopic, logger)
	if err != nil {
		logger.Fatal("kafka producer setup failed", zap.Error(err))
	}
	defer producer.Close()

	consumer, err := broker.NewConsumer(cfg.KafkaBrokers, cfg.TelemetryTopic, cfg.ConsumerGroup, logger)
	if err != nil {
		logger.Fatal("kafka consumer setup failed", zap.Error(err))
	}
	defer consumer.Close()

	agg := analytics.NewAggregator(logger)

	// Restore runs to completion before any live record is consumed, so the
	// seeded baselines are never raced by ingestion.
	analytics.NewRestorer(db, agg, logger).Restore(ctx)

	lifecycle := alerts.NewLifecycle(db, logger)
	dispatcher := pipeline.NewDispatcher(cfg.DBChannelSize, cfg.StateChannelSize, cfg.AlertChannelSize)
	ingestor := pipeline.NewIngestor(agg, dispatcher, logger)

	var workers sync.WaitGroup
	runWorkers := func(n int, run func(context.Context)) {
		for i := 0; i < n; i++ {
			workers.Add(1)
			go func() {
				defer workers.Done()
				run(ctx)
			}()
		}
	}
	runWorkers(cfg.DBWriterWorkers, pipeline.NewDBWriter(dispatcher.DBChan, db, cfg.DBBatchSize, cfg.DBFlushIntervalMS, logger).Run)
	runWorkers(cfg.StateWriterWorkers, pipeline.NewStateWriter(dispatcher.StateChan, redis, logger).Run)
	runWorkers(cfg.AlertWorkers, pipeline.NewAlertWorker(dispatcher.AlertChan, lifecycle, producer, logger).Run)

	job := rollup.NewJob(db, logger, cfg.RollupBufferDays)
	scheduler := rollup.NewScheduler(job, cfg.RollupHour, cfg.RollupMinute, logger)
	workers.Add(1)
	go func() {
		defer workers.Done()
		scheduler.Run(ctx)
	}()

	workers.Add(1)
	go func() {
		defer workers.Done()
		if err := consumer.Run(ctx, ingestor.Handle); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("telemetry consumer stopped", zap.Error(err))
			stop()
		}
	}()

	api := transport.NewServer(agg, lifecycle, scheduler, db, db, logger)
	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: api.Handler(),
	}
	go func() {
		logger.Info("http server listening", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}

	workers.Wait()
	logger.Info("shutdown complete")
}
