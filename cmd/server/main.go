// Command server runs the age verification gateway: the verification flow,
// the guardian consent flow, and the consent postback surface behind one
// HTTP listener.
//
// Storage degrades gracefully for local runs: without DATABASE_URL state
// lives in memory, without REDIS_URL pending sessions and rate limit buckets
// do too, and without KAFKA_BROKERS audit events stay in the outbox.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	ghandler "agegate/internal/guardian/handler"
	gservice "agegate/internal/guardian/service"
	gmemory "agegate/internal/guardian/store/memory"
	gpostgres "agegate/internal/guardian/store/postgres"
	"agegate/internal/platform/config"
	"agegate/internal/platform/database"
	"agegate/internal/platform/httpserver"
	"agegate/internal/platform/kafka"
	"agegate/internal/platform/kafka/producer"
	"agegate/internal/platform/logger"
	"agegate/internal/platform/metrics"
	redisplatform "agegate/internal/platform/redis"
	phandler "agegate/internal/postback/handler"
	"agegate/internal/postback/jwks"
	pservice "agegate/internal/postback/service"
	pmemory "agegate/internal/postback/store/memory"
	ppostgres "agegate/internal/postback/store/postgres"
	"agegate/internal/postback/verifier"
	rmiddleware "agegate/internal/ratelimit/middleware"
	rmodels "agegate/internal/ratelimit/models"
	rservice "agegate/internal/ratelimit/service"
	"agegate/internal/ratelimit/store/bucket"
	"agegate/internal/sweeper"
	transporthttp "agegate/internal/transport/http"
	"agegate/internal/verification/claims"
	vhandler "agegate/internal/verification/handler"
	"agegate/internal/verification/oauth"
	vservice "agegate/internal/verification/service"
	"agegate/internal/verification/sessionstore"
	vmemory "agegate/internal/verification/store/memory"
	vpostgres "agegate/internal/verification/store/postgres"
	"agegate/internal/verification/token"
	audit "agegate/pkg/platform/audit"
	"agegate/pkg/platform/audit/publisher"
	auditmemory "agegate/pkg/platform/audit/store/memory"
	auditpostgres "agegate/pkg/platform/audit/store/postgres"
	"agegate/pkg/platform/audit/worker"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg.Database)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	redisClient, err := redisplatform.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	} else {
		log.Warn("REDIS_URL not set, pending sessions and rate limits are in-memory")
	}

	registry := prometheus.NewRegistry()
	met := metrics.New(registry)

	// Audit events go through the transactional outbox when Postgres is
	// available; the worker drains the outbox into Kafka.
	var auditStore audit.Store
	var outboxStore *auditpostgres.Store
	if db != nil {
		outboxStore = auditpostgres.New(db.DB())
		auditStore = outboxStore
	} else {
		auditStore = auditmemory.New()
	}

	pub := publisher.New(auditStore,
		publisher.WithAsyncBuffer(1024),
		publisher.WithLogger(log),
	)
	defer pub.Close()

	if cfg.KafkaBrokers != "" && outboxStore != nil {
		if err := kafka.EnsureTopic(ctx, cfg.KafkaBrokers, kafka.AuditTopic, 3); err != nil {
			return err
		}
		prodCfg := producer.DefaultConfig()
		prodCfg.Brokers = cfg.KafkaBrokers
		prod, err := producer.New(prodCfg, log)
		if err != nil {
			return err
		}
		defer prod.Close()

		w := worker.New(outboxStore, prod,
			worker.WithTopic(kafka.AuditTopic),
			worker.WithLogger(log),
		)
		w.Start()
		defer w.Stop()
	} else if cfg.KafkaBrokers != "" {
		log.Warn("KAFKA_BROKERS set without DATABASE_URL, audit outbox worker disabled")
	}

	// Verification flow.
	var pending vservice.PendingStore
	if redisClient != nil {
		pending = sessionstore.NewRedis(redisClient.Client)
	} else {
		pending = sessionstore.NewInMemoryStore()
	}

	var sessions vservice.SessionStore
	if db != nil {
		sessions = vpostgres.New(db.DB())
	} else {
		sessions = vmemory.NewStore()
	}

	var links gservice.LinkStore
	if db != nil {
		links = gpostgres.New(db.DB())
	} else {
		links = gmemory.NewStore()
	}

	var artifacts pservice.ArtifactStore
	if db != nil {
		artifacts = ppostgres.New(db.DB())
	} else {
		artifacts = pmemory.NewStore()
	}

	tokens := token.New(cfg.RootSecret, cfg.TokenTTL)
	oauthClient := oauth.New(cfg.Providers, cfg.ExchangeTimeout)
	extractor := claims.New(oauthClient, cfg.ExchangeTimeout)

	guardianSvc := gservice.New(links, sessions, pub, met, log, cfg.LinkTTL)
	verificationSvc := vservice.New(pending, sessions, oauthClient, extractor,
		tokens, guardianSvc, pub, met, log, vservice.Config{
			PendingSessionTTL: cfg.PendingSessionTTL,
			SessionTTL:        cfg.SessionTTL,
			AdultAge:          cfg.AdultAge,
		})

	// Postback surface. Without a JWKS file no key is pinned, so every
	// assertion is rejected and recorded as such.
	keys := new(jwks.KeySet)
	if cfg.PostbackJWKSPath != "" {
		keys, err = jwks.LoadFile(cfg.PostbackJWKSPath)
		if err != nil {
			return err
		}
		log.Info("pinned postback signing keys", "count", keys.Len())
	} else {
		log.Warn("POSTBACK_JWKS_PATH not set, all postback assertions will be rejected")
	}
	if cfg.PostbackSecret == "" {
		log.Warn("POSTBACK_SHARED_SECRET not set, all postbacks will be rejected")
	}
	assertionVerifier := verifier.New(cfg.PostbackSecret, keys, cfg.PostbackIssuer, cfg.ConsentClientID)
	postbackSvc := pservice.New(artifacts, assertionVerifier, guardianSvc, pub, met, log)

	// Rate limiting.
	var buckets rservice.BucketStore
	if redisClient != nil {
		buckets = bucket.NewRedisStore(redisClient.Client)
	} else {
		buckets = bucket.NewInMemoryBucketStore()
	}
	limiter := rservice.New(buckets, rmodels.DefaultLimits())
	rateLimit := rmiddleware.New(limiter, pub, met, log)

	checks := map[string]transporthttp.Health{}
	if db != nil {
		checks["database"] = db
	}
	if redisClient != nil {
		checks["redis"] = redisClient
	}

	router := transporthttp.NewRouter(transporthttp.RouterConfig{
		Verification: vhandler.New(verificationSvc, log),
		Guardian:     ghandler.New(guardianSvc, log),
		Postback:     phandler.New(postbackSvc, assertionVerifier, log),
		RateLimit:    rateLimit,
		Logger:       log,
		Registry:     registry,
		Checks:       checks,
	})

	sweep := sweeper.New(verificationSvc, guardianSvc, met, log, cfg.SweepInterval)
	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		if err := sweep.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	log.Info("server stopped")
	return err
}
