package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/manastr/validator/pkg/auditstore"
	"github.com/manastr/validator/pkg/config"
	"github.com/manastr/validator/pkg/metrics"
	"github.com/manastr/validator/pkg/validator"
)

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Printf("[main] starting manastr validator")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[main] failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[main] invalid configuration: %v", err)
	}

	metricsReg := metrics.New()

	var audit *auditstore.Store
	if cfg.DatabaseURL != "" {
		log.Printf("[main] connecting to audit database...")
		audit, err = auditstore.Open(context.Background(), cfg.DatabaseURL)
		if err != nil {
			if cfg.DatabaseRequired {
				log.Fatalf("[main] audit database REQUIRED but unavailable: %v", err)
			}
			log.Printf("[main] audit database unavailable, continuing without persistence: %v", err)
			audit = nil
		} else {
			log.Printf("[main] connected to audit database")
		}
	}

	v, err := validator.New(cfg, metricsReg, audit)
	if err != nil {
		log.Fatalf("[main] failed to construct validator: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metricsReg.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: mux}

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		log.Printf("[main] dispatcher starting, relay=%s mint=%s", cfg.RelayURL, cfg.MintURL)
		if err := v.Run(ctx); err != nil {
			log.Printf("[main] dispatcher stopped: %v", err)
		}
	}()

	go func() {
		log.Printf("[main] HTTP listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[main] HTTP server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("[main] shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("[main] HTTP shutdown error: %v", err)
	}
	if audit != nil {
		if err := audit.Close(); err != nil {
			log.Printf("[main] audit store close error: %v", err)
		}
	}

	log.Printf("[main] stopped")
}
