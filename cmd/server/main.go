package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/feichai0017/ingest-triage/api/handlers"
	"github.com/feichai0017/ingest-triage/api/routes"
	"github.com/feichai0017/ingest-triage/config"
	"github.com/feichai0017/ingest-triage/internal/service/ingest"
	"github.com/feichai0017/ingest-triage/internal/validator"
	"github.com/feichai0017/ingest-triage/pkg/logger"
	"github.com/feichai0017/ingest-triage/pkg/queue"
	"github.com/feichai0017/ingest-triage/pkg/sink"
	"github.com/feichai0017/ingest-triage/pkg/storage"
)

func main() {
	log, err := logger.NewLogger(
		logger.WithLevel("info"),
		logger.WithEncoding("json"),
		logger.WithOutputPaths([]string{"stdout", "logs/server.log"}),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg := config.Get()

	stor, err := storage.New(&cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to initialize storage", logger.Error(err))
	}

	q, err := queue.NewAsynqQueue(cfg)
	if err != nil {
		log.Fatal("Failed to initialize queue", logger.Error(err))
	}
	defer q.Close()

	outcomes := sink.NewRedisSink(redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
		DB:   cfg.Redis.DB,
	}))

	v := validator.NewDocumentValidator(log, nil)
	ingestService := ingest.NewService(v, stor, q, outcomes, log)

	h := handlers.NewHandlers(ingestService, log)
	r := gin.New()
	r.Use(gin.Recovery())
	routes.SetupRoutes(r, h)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: r,
	}

	go func() {
		log.Info("Server starting", logger.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error", logger.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", logger.Error(err))
	}
}
