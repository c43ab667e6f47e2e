package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"custos/internal/actortoken"
	"custos/internal/batch/metrics"
	"custos/internal/batch/service"
	"custos/internal/batch/store"
	"custos/internal/blobstore"
	"custos/internal/ledger"
	"custos/internal/partner"
	"custos/internal/platform/config"
	"custos/internal/platform/httpserver"
	"custos/internal/platform/logger"
	"custos/internal/platform/otel"
	platformpg "custos/internal/platform/postgres"
	platformredis "custos/internal/platform/redis"
	httptransport "custos/internal/transport/http"
	"custos/pkg/platform/middleware/auth"
)

// main wires the dependency graph and runs the server lifecycle. Optional
// backends fall back to in-memory implementations when unconfigured, so a
// bare `go run ./cmd/server` gives a fully working single-process instance.
func main() {
	log := logger.New()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Setup(ctx, "custos", cfg.OTelEndpoint)
	if err != nil {
		log.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Error("tracer shutdown failed", "error", err)
		}
	}()

	var (
		partnerStore partner.Store
		batchStore   store.Store
		healthChecks []func(context.Context) error
	)
	if cfg.PostgresDSN != "" {
		db, err := platformpg.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := platformpg.EnsureSchema(ctx, db); err != nil {
			log.Error("failed to apply schema", "error", err)
			os.Exit(1)
		}
		partnerStore = partner.NewPostgres(db)
		batchStore = store.NewPostgres(db)
		healthChecks = append(healthChecks, db.PingContext)
		log.Info("using postgres store")
	} else {
		partnerStore = partner.NewInMemoryStore()
		batchStore = store.NewInMemory()
		log.Info("using in-memory store")
	}

	var blobs blobstore.Store
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		blobs = blobstore.NewRedis(redisClient.Client)
		healthChecks = append(healthChecks, redisClient.Health)
		log.Info("using redis content store")
	} else {
		blobs = blobstore.NewInMemory()
		log.Info("using in-memory content store")
	}

	var committer ledger.Committer
	if len(cfg.Kafka.Brokers) > 0 {
		kafka, err := ledger.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic,
			ledger.WithKafkaLogger(log),
			ledger.WithCommitTimeout(cfg.Kafka.CommitTimeout),
		)
		if err != nil {
			log.Error("failed to connect to kafka", "error", err)
			os.Exit(1)
		}
		committer = ledger.NewRetrying(kafka, cfg.Kafka.MaxRetries, cfg.Kafka.RetryBackoff)
		log.Info("using kafka ledger", "topic", cfg.Kafka.Topic)
	} else {
		committer = ledger.NewInMemoryCommitter()
		log.Info("using in-memory ledger")
	}
	defer committer.Close()

	directory := partner.NewDirectory(partnerStore, partner.WithLogger(log))
	batches := service.New(batchStore, directory, committer,
		service.WithLogger(log),
		service.WithMetrics(metrics.New()),
		service.WithBlobStore(blobs),
	)
	tokens := actortoken.NewService(cfg.JWTSigningKey, "custos")

	handlerOpts := []httptransport.HandlerOption{httptransport.WithHandlerLogger(log)}
	for _, check := range healthChecks {
		handlerOpts = append(handlerOpts, httptransport.WithHealthCheck(check))
	}
	handler := httptransport.NewHandler(batches, directory, tokens, handlerOpts...)
	router := httptransport.NewRouter(handler,
		auth.RequireActor(tokens, log),
		auth.RequireAdminToken(cfg.AdminTokenHash),
	)

	srv := httpserver.New(cfg.Addr, router, httpserver.Options{
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	})

	go func() {
		log.Info("starting custos", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
