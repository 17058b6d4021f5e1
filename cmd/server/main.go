package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	certcache "attest/internal/certificate/cache"
	certhandler "attest/internal/certificate/handler"
	certmetrics "attest/internal/certificate/metrics"
	certservice "attest/internal/certificate/service"
	certstore "attest/internal/certificate/store"
	issuerhandler "attest/internal/issuer/handler"
	issuermetrics "attest/internal/issuer/metrics"
	issuerservice "attest/internal/issuer/service"
	issuerstore "attest/internal/issuer/store"
	"attest/internal/platform/config"
	"attest/internal/platform/httpserver"
	"attest/internal/platform/kafka/producer"
	"attest/internal/platform/logger"
	platformredis "attest/internal/platform/redis"
	httptransport "attest/internal/transport/http"
	"attest/internal/verification"
	verificationhandler "attest/internal/verification/handler"
	"attest/pkg/domain"
	audit "attest/pkg/platform/audit"
	auditkafka "attest/pkg/platform/audit/publishers/kafka"
	auditmemory "attest/pkg/platform/audit/store/memory"
	auditpostgres "attest/pkg/platform/audit/store/postgres"
	auditworker "attest/pkg/platform/audit/worker"
)

const auditInboxSize = 256

// main wires dependencies and supervises the server lifecycle. Business
// logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	owner, err := domain.ParseAddress(cfg.OwnerAddress)
	if err != nil {
		log.Error("invalid ATTEST_OWNER_ADDRESS", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var db *sql.DB
	if cfg.PostgresDSN != "" {
		db, err = sql.Open("postgres", cfg.PostgresDSN)
		if err == nil {
			err = db.PingContext(ctx)
		}
		if err != nil {
			log.Error("postgres connection failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Audit pipeline: synchronous store write, optional Kafka stream.
	var auditStore audit.Store
	if db != nil {
		auditStore = auditpostgres.New(db)
	} else {
		auditStore = auditmemory.New()
	}
	publisherOpts := []audit.Option{}
	var (
		inbox        chan audit.Event
		streamWorker *auditworker.Worker
	)
	if len(cfg.KafkaBrokers) > 0 {
		kafkaProducer, err := producer.New(cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			log.Error("kafka producer init failed", "error", err)
			os.Exit(1)
		}
		defer kafkaProducer.Close()
		if err := kafkaProducer.EnsureTopic(ctx); err != nil {
			log.Error("kafka topic bootstrap failed", "error", err)
			os.Exit(1)
		}
		inbox = make(chan audit.Event, auditInboxSize)
		publisherOpts = append(publisherOpts, audit.WithInbox(inbox))
		streamWorker = auditworker.New(auditkafka.New(kafkaProducer, log), inbox, log)
	}
	auditPublisher := audit.NewPublisher(auditStore, publisherOpts...)

	var issuers issuerstore.Store
	if db != nil {
		issuers = issuerstore.NewPostgres(db)
	} else {
		issuers = issuerstore.NewInMemory()
	}
	registry, err := issuerservice.New(owner, issuers,
		issuerservice.WithLogger(log),
		issuerservice.WithAuditPublisher(auditPublisher),
		issuerservice.WithMetrics(issuermetrics.New()),
	)
	if err != nil {
		log.Error("issuer registry init failed", "error", err)
		os.Exit(1)
	}

	var certs certstore.Store
	certOpts := []certservice.Option{
		certservice.WithLogger(log),
		certservice.WithAuditPublisher(auditPublisher),
		certservice.WithMetrics(certmetrics.New()),
	}
	if db != nil {
		certs = certstore.NewPostgres(db)
		certOpts = append(certOpts, certservice.WithStoreTx(newPostgresStoreTx(db)))
	} else {
		certs = certstore.NewInMemory()
	}
	if redisClient != nil {
		certOpts = append(certOpts, certservice.WithCache(certcache.NewRedis(redisClient, cfg.VerifyCacheTTL)))
	}
	certService, err := certservice.New(certs, registry, registry.CertificateCounter(), certOpts...)
	if err != nil {
		log.Error("certificate service init failed", "error", err)
		os.Exit(1)
	}

	verifier, err := verification.New(certService, log)
	if err != nil {
		log.Error("verification service init failed", "error", err)
		os.Exit(1)
	}

	router := httptransport.NewRouter(httptransport.Config{
		Logger:         log,
		AdminTokenHash: cfg.AdminTokenHash,
		MaxUploadBytes: cfg.MaxUploadBytes,
		RequestTimeout: cfg.RequestTimeout,
		Health:         healthCheck(db, redisClient),
	},
		issuerhandler.New(registry, owner, log),
		certhandler.New(certService, log),
		verificationhandler.New(verifier, log),
	)

	srv := httpserver.New(cfg.Addr, router, cfg.RequestTimeout)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("starting attest server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if streamWorker != nil {
		group.Go(func() error {
			if err := streamWorker.Run(groupCtx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func healthCheck(db *sql.DB, redisClient *platformredis.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				return err
			}
		}
		if redisClient != nil {
			if err := redisClient.Health(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}
