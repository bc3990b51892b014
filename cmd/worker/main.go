package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"mailverify/internal/cache"
	"mailverify/internal/config"
	"mailverify/internal/lookup"
	"mailverify/internal/queue"
	"mailverify/internal/store"
	"mailverify/internal/validator"
	"mailverify/internal/worker"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg := config.Load()
	if cfg.RedisAddr == "" || cfg.DatabaseURL == "" {
		log.Fatal("REDIS_ADDR and DB_URL are required for the bulk worker")
	}

	jobQueue, err := queue.Connect(cfg.RedisAddr)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to Redis")
	}
	defer jobQueue.Close()

	jobStore, err := store.Connect(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to Postgres")
	}
	defer jobStore.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	domains := cache.New()
	domains.StartCleanup(ctx, 5*time.Minute)

	smtpVerifier := &lookup.SMTPVerifier{
		HeloDomain:    cfg.HeloDomain,
		Timeout:       cfg.SMTPTimeout,
		MaxConcurrent: cfg.SMTPMaxConcurrent,
	}
	// Queue tasks were admitted when the job was accepted, so the worker
	// verifier runs without a rate limiter.
	verifier := validator.New(smtpVerifier, nil, nil, domains, log)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
		<-quit
		log.Info("shutdown signal received")
		cancel()
	}()

	runner := &worker.Runner{
		Queue:    jobQueue,
		Store:    jobStore,
		Verifier: verifier,
		Log:      log,
	}
	runner.Start(ctx)
}
