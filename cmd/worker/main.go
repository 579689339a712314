package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/feichai0017/ingest-triage/config"
	"github.com/feichai0017/ingest-triage/internal/classify"
	"github.com/feichai0017/ingest-triage/internal/confidence"
	"github.com/feichai0017/ingest-triage/internal/extract"
	"github.com/feichai0017/ingest-triage/internal/extract/ocr"
	"github.com/feichai0017/ingest-triage/internal/pipeline"
	"github.com/feichai0017/ingest-triage/internal/quality"
	"github.com/feichai0017/ingest-triage/internal/review"
	"github.com/feichai0017/ingest-triage/pkg/logger"
	"github.com/feichai0017/ingest-triage/pkg/queue"
	"github.com/feichai0017/ingest-triage/pkg/sink"
	"github.com/feichai0017/ingest-triage/pkg/storage"
	"github.com/feichai0017/ingest-triage/pkg/worker"
)

func main() {
	log, err := logger.NewLogger(
		logger.WithLevel("info"),
		logger.WithEncoding("json"),
		logger.WithOutputPaths([]string{"stdout", "logs/worker.log"}),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg := config.Get()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stor, err := storage.New(&cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to initialize storage", logger.Error(err))
	}
	go storage.RunRetention(ctx, stor, 24*time.Hour, cfg.Storage.Retention, log)

	q, err := queue.NewAsynqQueue(cfg)
	if err != nil {
		log.Fatal("Failed to initialize queue", logger.Error(err))
	}
	defer q.Close()

	store := sink.NewRedisSink(redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
		DB:   cfg.Redis.DB,
	}))

	engine, err := buildEngine(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize OCR engine", logger.Error(err))
	}

	pipe := pipeline.New(
		classify.NewClassifier(log),
		quality.NewAssessor(cfg.Pipeline),
		extract.NewRegistry(cfg, engine, log),
		confidence.NewAssessor(),
		review.NewRouter(store, cfg.Pipeline.ReviewThreshold, log),
		log,
	)

	workerCfg := &worker.Config{
		RedisAddr:   cfg.Redis.Addr,
		RedisDB:     cfg.Redis.DB,
		Concurrency: cfg.Worker.Concurrency,
		Queues:      cfg.Worker.Queues,
	}

	triageWorker, err := worker.NewTriageWorker(workerCfg, pipe, store, stor, q, cfg.Pipeline.JobTimeout, log)
	if err != nil {
		log.Fatal("Failed to create triage worker", logger.Error(err))
	}

	if err := triageWorker.Start(ctx); err != nil {
		log.Fatal("Failed to start worker", logger.Error(err))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down worker...")
	triageWorker.Stop()
	log.Info("Worker stopped")
}

func buildEngine(ctx context.Context, cfg *config.Config, log logger.Logger) (ocr.Engine, error) {
	switch cfg.OCR.Engine {
	case "textract":
		return ocr.NewTextract(ctx, &ocr.TextractConfig{
			Region:    cfg.OCR.Region,
			AccessKey: cfg.OCR.AccessKey,
			SecretKey: cfg.OCR.SecretKey,
		}, log)
	default:
		return ocr.NewTesseract(log), nil
	}
}
