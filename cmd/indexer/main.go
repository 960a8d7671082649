// Copyright 2025 Chainframe

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chainframe/evm-indexer/pkg/config"
	"github.com/chainframe/evm-indexer/pkg/httpapi"
	"github.com/chainframe/evm-indexer/pkg/ingest"
	"github.com/chainframe/evm-indexer/pkg/rpc"
	"github.com/chainframe/evm-indexer/pkg/store"
	"github.com/chainframe/evm-indexer/pkg/supervisor"
	"github.com/chainframe/evm-indexer/pkg/verify"
)

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Printf("🚀 Starting EVM indexer")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load configuration:", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration:", err)
	}

	storeClient, err := store.NewClient(cfg, store.WithLogger(
		log.New(log.Writer(), "[Store] ", log.LstdFlags),
	))
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}
	defer storeClient.Close()

	registry := prometheus.NewRegistry()
	metrics := supervisor.NewMetrics(registry)

	backupMgr := supervisor.NewBackupManager(supervisor.BackupConfig{
		DatabaseURL:    cfg.DatabaseURL,
		HoneypotDBName: cfg.HoneypotDBName,
		Dir:            cfg.BackupDir,
		Interval:       cfg.BackupInterval,
		Retention:      cfg.BackupRetention,
		Logger:         log.New(log.Writer(), "[Backup] ", log.LstdFlags),
	})

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	bootErr := supervisor.Bootstrap(bootCtx, storeClient, backupMgr, log.New(log.Writer(), "[Supervisor] ", log.LstdFlags))
	bootCancel()
	if bootErr != nil {
		log.Fatal("schema bootstrap failed:", bootErr)
	}

	pool, err := rpc.NewPool(cfg.RPCURLs,
		rpc.WithLogger(log.New(log.Writer(), "[RPC] ", log.LstdFlags)),
		rpc.WithHealthInterval(cfg.RPCHealthInterval),
		rpc.WithCallTimeout(cfg.RPCRequestTimeout),
	)
	if err != nil {
		log.Fatal("failed to initialize RPC pool:", err)
	}
	defer pool.Close()

	repos := store.NewRepositories(storeClient)

	ctx, cancel := context.WithCancel(context.Background())

	pool.StartHealthChecks(ctx)

	pipeline := ingest.New(pool, storeClient, repos, ingest.Config{
		Confirmations:   cfg.Confirmations,
		StartBlock:      cfg.StartBlock,
		MetadataTimeout: 10 * time.Second,
		Logger:          log.New(log.Writer(), "[Ingest] ", log.LstdFlags),
	})

	sup := supervisor.New(storeClient, pool, pipeline, backupMgr, metrics, supervisor.Config{
		HealthInterval: cfg.HealthInterval,
		Logger:         log.New(log.Writer(), "[Supervisor] ", log.LstdFlags),
	})

	engine := verify.NewEngine(pool, verify.Config{
		BinariesIndexURL: cfg.SolcBinariesURL,
		CacheDir:         cfg.SolcCacheDir,
		DownloadTimeout:  30 * time.Second,
		CompileTimeout:   cfg.VerificationTimeout,
		Logger:           log.New(log.Writer(), "[Verify] ", log.LstdFlags),
	})

	handlers := httpapi.NewHandlers(engine, repos, log.New(log.Writer(), "[HTTPAPI] ", log.LstdFlags))
	mux := handlers.Router()
	mux.HandleFunc("/health", sup.Handler())

	apiServer := &http.Server{Addr: cfg.ListenAddr, Handler: mux}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}

	go func() {
		log.Printf("ingestion pipeline starting (confirmations=%d)", cfg.Confirmations)
		if err := pipeline.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("ingestion pipeline exited: %v", err)
		}
	}()

	go sup.Run(ctx)

	go func() {
		log.Printf("✅ API listening on %s", cfg.ListenAddr)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("API server failed:", err)
		}
	}()

	go func() {
		log.Printf("✅ metrics listening on %s", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("metrics server failed:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("🛑 shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("API server shutdown error: %v", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown error: %v", err)
	}

	log.Printf("✅ stopped")
}
