package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"mailverify/internal/cache"
	"mailverify/internal/config"
	"mailverify/internal/lookup"
	"mailverify/internal/metrics"
	"mailverify/internal/pool"
	"mailverify/internal/queue"
	"mailverify/internal/ratelimit"
	"mailverify/internal/store"
	"mailverify/internal/validator"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg := config.Load()

	limitCfg := ratelimit.DefaultConfig()
	limitCfg.RequestsPerHour = cfg.RequestsPerHour
	limitCfg.MaxBulkEmails = cfg.MaxBulkEmails
	limiter := ratelimit.New(limitCfg)

	tracker := metrics.New()
	domains := cache.New()

	smtpVerifier := &lookup.SMTPVerifier{
		HeloDomain:    cfg.HeloDomain,
		Timeout:       cfg.SMTPTimeout,
		MaxConcurrent: cfg.SMTPMaxConcurrent,
	}
	verifier := validator.New(smtpVerifier, limiter, tracker, domains, log)
	workPool := pool.New(pool.DefaultWorkers())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	limiter.StartEviction(ctx, 5*time.Minute)
	domains.StartCleanup(ctx, 5*time.Minute)

	s := &server{
		cfg:      cfg,
		verifier: verifier,
		limiter:  limiter,
		tracker:  tracker,
		pool:     workPool,
		log:      log,
	}

	// The job store is optional: without Redis and Postgres every bulk
	// request is verified inline.
	if cfg.RedisAddr != "" && cfg.DatabaseURL != "" {
		jobQueue, err := queue.Connect(cfg.RedisAddr)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to Redis")
		}
		defer jobQueue.Close()

		jobStore, err := store.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to Postgres")
		}
		defer jobStore.Close()

		s.queue = jobQueue
		s.store = jobStore
		log.Info("job store enabled: large batches run asynchronously")
	} else {
		log.Info("job store disabled (REDIS_ADDR/DB_URL not set): bulk requests run inline")
	}

	mux := http.NewServeMux()
	guard := func(h http.HandlerFunc) http.HandlerFunc {
		return enableCORS(requireAPIKey(cfg.APIKey, h))
	}
	mux.HandleFunc("/api/validate-email", guard(s.handleValidateEmail))
	mux.HandleFunc("/api/validate-emails", guard(s.handleValidateEmails))
	mux.HandleFunc("/api/validate-emails/batch/", guard(s.handleBatchStatus))
	mux.HandleFunc("/api/metrics", guard(s.handleMetrics))
	mux.HandleFunc("/api/rate-limit-config", guard(s.handleRateLimitConfig))
	mux.HandleFunc("/", enableCORS(s.handleHealth))

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		log.WithField("port", cfg.Port).Info("mailverify API listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	<-quit
	log.Info("shutdown signal received, draining in-flight requests")

	cancel()
	workPool.Terminate()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Fatal("graceful shutdown failed")
	}
	log.Info("server shut down cleanly")
}
