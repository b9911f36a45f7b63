package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/tasknest/tasknest/pkg/api"
	"github.com/tasknest/tasknest/pkg/audit"
	"github.com/tasknest/tasknest/pkg/claims"
	"github.com/tasknest/tasknest/pkg/claimsync"
	"github.com/tasknest/tasknest/pkg/config"
	"github.com/tasknest/tasknest/pkg/identity"
	"github.com/tasknest/tasknest/pkg/migration"
	"github.com/tasknest/tasknest/pkg/observability"
	"github.com/tasknest/tasknest/pkg/tenancy"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	log := newLogger(cfg)
	ctx := context.Background()

	// Profile store
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnLifetime)
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	if err := identity.RunMigrations(ctx, db); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}
	store := identity.NewPostgresStore(db)

	// Claims cache
	provider, err := claims.NewRedisProviderFromURL(cfg.Redis.URL, cfg.Redis.SnapshotTTL)
	if err != nil {
		log.Fatalf("Failed to connect to claims cache: %v", err)
	}
	defer provider.Close()

	codec := claims.NewCodec([]byte(cfg.Auth.TokenSecret), cfg.Auth.TokenIssuer, cfg.Auth.TokenTTL)

	// Audit trail to both the log stream and the database
	dbAudit, err := audit.NewDBLogger(db)
	if err != nil {
		log.Fatalf("Failed to initialize audit log: %v", err)
	}
	auditor := audit.NewMultiLogger(audit.NewLogrusLogger(log), dbAudit)
	defer auditor.Close()

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	sync := claimsync.New(store, provider, log).WithAudit(auditor).WithMetrics(metrics)
	guard := tenancy.NewGuard(store, log).WithMetrics(metrics)
	engine := migration.NewEngine(store, sync, log).
		WithAudit(auditor).
		WithMetrics(metrics).
		WithConcurrency(cfg.Migration.Concurrency)

	// API server
	router := mux.NewRouter()
	router.Use(api.NewRequestMiddleware(log, observability.NewAccessLogger(os.Stdout), metrics).Handler)
	router.Use(api.NewClaimsMiddleware(codec, true).Handler)
	api.NewHandlers(sync, guard, engine, log).RegisterRoutes(router)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics on a separate port for probes
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	if cfg.Observability.MetricsEnabled {
		healthMux.Handle("/metrics", observability.Handler(registry))
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	// Periodic repair: drop cached snapshots that lag the profile store.
	scheduler := cron.New()
	lookup := func(ctx context.Context, userID string) (int64, error) {
		ident, err := store.GetIdentity(ctx, userID)
		if err != nil {
			return 0, err
		}
		return ident.ClaimsVersion, nil
	}
	if _, err := scheduler.AddFunc(cfg.Redis.CleanupSchedule, func() {
		dropped, err := provider.SweepStale(context.Background(), lookup)
		if err != nil {
			log.WithError(err).Warn("Stale claims sweep failed")
			return
		}
		if dropped > 0 {
			log.WithField("dropped", dropped).Info("Stale claims snapshots removed")
		}
	}); err != nil {
		log.Fatalf("Failed to schedule claims cleanup: %v", err)
	}
	scheduler.Start()

	go func() {
		log.WithField("addr", healthServer.Addr).Info("Health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Health server failed: %v", err)
		}
	}()

	go func() {
		log.WithField("addr", server.Addr).Info("Authorization server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for termination signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info("Shutting down gracefully...")

	<-scheduler.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Server shutdown incomplete")
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Health server shutdown incomplete")
	}

	log.Info("Server stopped")
}

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetLevel(cfg.Observability.LogLevel)
	if cfg.Observability.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}
