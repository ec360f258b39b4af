package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/medichain/telemed/internal/diagnosis"
	"github.com/medichain/telemed/internal/ledger"
	"github.com/medichain/telemed/internal/medicine"
	"github.com/medichain/telemed/pkg/auth"
	"github.com/medichain/telemed/pkg/config"
	"github.com/medichain/telemed/pkg/logger"
	"github.com/medichain/telemed/pkg/monitoring"
	"github.com/medichain/telemed/pkg/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("telemed-server", cfg.LogLevel)
	log.Info("Starting telemed server")

	// Persistence
	pg, err := store.NewPostgres(&cfg.Database, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer pg.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := pg.Migrate(ctx); err != nil {
		cancel()
		log.WithError(err).Fatal("Failed to apply database schema")
	}
	cancel()

	// Ledger
	anchorer := ledger.NewSimulatedAnchorer(cfg.Chain.ChainID, cfg.Chain.ContractAddress, log)
	ledgerSvc := ledger.NewService(pg, anchorer, log)

	// Diagnosis
	rules := diagnosis.DefaultRuleSet()
	engine := diagnosis.NewEngine(rules, nil)

	var classifier diagnosis.Classifier
	if cfg.Classifier.Endpoint != "" {
		classifier = diagnosis.NewZeroShotClassifier(
			cfg.Classifier.Endpoint,
			cfg.Classifier.APIKey,
			time.Duration(cfg.Classifier.TimeoutSeconds)*time.Second,
		)
		log.WithField("endpoint", cfg.Classifier.Endpoint).Info("Remote classifier configured")
	} else {
		log.Info("No classifier configured, rule engine serves all requests")
	}

	analyzer := diagnosis.NewAnalyzer(engine, classifier, rules, log)
	diagnosisSvc := diagnosis.NewService(analyzer, ledgerSvc, pg, log)

	// Medicine catalog
	medicineSvc := medicine.NewService(pg, ledgerSvc, log)

	// HTTP surface
	router := mux.NewRouter()
	if cfg.Monitoring.Enabled {
		router.Use(monitoring.Middleware)
		router.Handle(cfg.Monitoring.MetricsPath, monitoring.Handler()).Methods("GET")
	}

	router.HandleFunc(cfg.Monitoring.HealthPath, func(w http.ResponseWriter, r *http.Request) {
		if err := pg.Health(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, `{"status":"degraded","database":"%v"}`, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"ok"}`)
	}).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	if cfg.Auth.JWTSecret != "" {
		validator := auth.NewTokenValidator(cfg.Auth.JWTSecret)
		api.Use(validator.Middleware)
	} else {
		log.Warn("No JWT secret configured, trusting upstream X-User-ID header")
	}

	diagnosis.NewHandlers(diagnosisSvc, medicineSvc, log).RegisterRoutes(api.PathPrefix("/diagnosis").Subrouter())
	ledger.NewHandlers(ledgerSvc, log).RegisterRoutes(api.PathPrefix("/ledger").Subrouter())
	medicine.NewHandlers(medicineSvc, log).RegisterRoutes(api.PathPrefix("/medicines").Subrouter())

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown failed")
	}
	log.Info("Server stopped")
}
