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

	"valcore/internal/attest"
	"valcore/internal/events"
	"valcore/internal/honoring"
	"valcore/internal/honoring/giftcard"
	"valcore/internal/honoring/payout"
	"valcore/internal/ledger"
	"valcore/internal/mirror"
	"valcore/internal/platform/config"
	"valcore/internal/platform/httpserver"
	"valcore/internal/platform/logger"
	"valcore/internal/platform/metrics"
	"valcore/internal/platform/redis"
	"valcore/internal/spend"
	"valcore/internal/token"
	httptransport "valcore/internal/transport/http"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	attestor, err := attest.NewEngine(cfg.Signing.Signer, cfg.Signing.SeedHex)
	if err != nil {
		log.Error("attestation engine init failed", "error", err)
		os.Exit(1)
	}
	if cfg.Signing.SeedHex == "" {
		log.Warn("no attestation seed configured, using an ephemeral key")
	}

	codeMap, err := ledger.ParseCodeMap(cfg.Ledger.RejectCodeMap)
	if err != nil {
		log.Error("invalid reject code map", "error", err)
		os.Exit(1)
	}
	var gateway ledger.Gateway
	if cfg.Ledger.ClusterAddr != "" {
		gateway = ledger.NewClient(cfg.Ledger.ClusterAddr, codeMap, cfg.Ledger.CallTimeout)
	} else {
		log.Warn("no ledger cluster configured, using the in-process ledger")
		gateway = ledger.NewMemory()
	}

	healthChecks := make(map[string]httptransport.HealthChecker)

	var mirrorStore mirror.Store
	if cfg.Mirror.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.Mirror.DatabaseURL)
		if err != nil {
			log.Error("mirror database open failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		pg := mirror.NewPostgresStore(db)
		mirrorStore = pg
		healthChecks["mirror"] = pg
	} else {
		log.Warn("no mirror database configured, narrative entries are in-memory only")
		mirrorStore = mirror.NewInMemoryStore()
	}
	mirrorService := mirror.NewService(mirrorStore)
	recorder := mirror.NewRecorder(mirrorService, log, mirror.NewMetrics(), cfg.Mirror.QueueSize)

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	var results honoring.ResultStore
	if redisClient != nil {
		results = honoring.NewRedisResultStore(redisClient, 0)
		healthChecks["redis"] = redisClient
		defer redisClient.Close()
	} else {
		log.Warn("no redis configured, honoring results are in-memory only")
		results = honoring.NewInMemoryResultStore()
	}

	registry := honoring.NewRegistry()
	for _, adapter := range []honoring.Adapter{
		giftcard.New(cfg.Honoring.GiftCard),
		payout.New(cfg.Honoring.Payout),
	} {
		if err := registry.Register(adapter); err != nil {
			log.Error("honoring adapter rejected", "error", err)
			os.Exit(1)
		}
	}

	honoringMetrics := honoring.NewMetrics()
	driver := honoring.NewDriver(honoring.DriverConfig{
		MaxAttempts:    cfg.Honoring.MaxAttempts,
		BaseDelay:      cfg.Honoring.BaseDelay,
		MaxDelay:       cfg.Honoring.MaxDelay,
		AttemptTimeout: cfg.Honoring.AttemptTimeout,
	}, log, honoringMetrics)
	publisher, err := events.NewPublisher(cfg.Kafka, log)
	if err != nil {
		log.Error("event publisher init failed", "error", err)
		os.Exit(1)
	}

	dispatcher := honoring.NewDispatcher(registry, driver, results, recorder, publisher, log, honoringMetrics, cfg.Honoring.Concurrency)

	engine := spend.NewEngine(
		spend.Config{
			Ledger:          cfg.Ledger.Partition,
			Code:            cfg.Ledger.Code,
			TreasuryAccount: cfg.Ledger.TreasuryAccount,
		},
		attestor, gateway, recorder, dispatcher, publisher,
		log, spend.NewMetrics(),
	)

	tokens := token.NewService(cfg.Server.JWTSigningKey, "valcore", "valcore-operators")
	platformMetrics := metrics.New()

	router := httptransport.NewRouter(healthChecks,
		httptransport.NewClaimsHandler(engine, mirrorService, log, platformMetrics, tokens),
		httptransport.NewHonoringHandler(dispatcher, results, cfg.Webhook, log, platformMetrics, tokens),
	)
	srv := httpserver.New(cfg.Server.Addr, router)

	bgCtx, bgCancel := context.WithCancel(context.Background())
	go recorder.Run(bgCtx)

	if err := publisher.EnsureTopic(bgCtx); err != nil {
		log.Warn("lifecycle topic ensure failed", "error", err)
	}

	go func() {
		log.Info("starting valcore", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}

	// Stop background work after the server drains: in-flight honoring runs
	// either finish or settle as PENDING for the next start to re-drive.
	bgCancel()
	dispatcher.Shutdown()
	publisher.Close()
}
