//	@title			Piccolo API
//	@version		1.0
//	@description	Photo upload service backed by S3-compatible object storage.
//
//	@host		localhost:8080
//	@BasePath	/api/v1
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT Bearer token (only when JWT_SECRET is set). Format: **Bearer {token}**

package main

import (
	"context"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"

	"github.com/piccolo/service/internal/config"
	"github.com/piccolo/service/internal/db"
	"github.com/piccolo/service/internal/logger"
	"github.com/piccolo/service/internal/metrics"
	appMiddleware "github.com/piccolo/service/internal/middleware"
	"github.com/piccolo/service/internal/photo"
	"github.com/piccolo/service/internal/storage"

	_ "github.com/piccolo/service/docs/swagger"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel, !cfg.IsProduction())
	if err != nil {
		stdlog.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = log.Sync() }()

	metrics.Init()

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	storeCfg := newStorageConfig(cfg.Storage())
	stores := metrics.InstrumentProvider(storage.SharedProvider(storeCfg.Options))
	if _, err := stores(startCtx); err != nil {
		log.Fatal("object storage init failed", zap.Error(err))
	}

	var recorder photo.Recorder
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(startCtx, cfg.DatabaseURL, log)
		if err != nil {
			log.Fatal("database connection failed", zap.Error(err))
		}
		defer pool.Close()

		if err := db.Migrate(cfg.DatabaseURL, log); err != nil {
			log.Fatal("database migration failed", zap.Error(err))
		}
		recorder = photo.NewRepository(pool)
	} else {
		log.Info("DATABASE_URL not set, upload history disabled")
	}

	// Wire dependencies: storage → service → handler
	photoSvc := photo.NewService(stores, recorder, log)
	if _, _, err := photoSvc.EnsureBucket(startCtx); err != nil {
		log.Fatal("bucket setup failed", zap.Error(err))
	}
	photoHandler := photo.NewHandler(photoSvc, log, cfg.MaxUploadBytes)

	// Router
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger(log))
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", metrics.Handler())

	// Swagger UI, served at http://localhost:8080/swagger/
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		photoHandler.Routes(r,
			appMiddleware.RequireAuth(cfg.JWTSecret),
			appMiddleware.OptionalAuth(cfg.JWTSecret),
		)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine; wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// SIGHUP re-reads storage settings and rebuilds the client on next use.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			opts := config.Reload().Storage()
			storeCfg.reload(opts)
			log.Info("object storage reconnect scheduled",
				zap.String("backend", opts.Backend),
				zap.String("bucket", opts.Bucket),
			)
		}
	}()

	go func() {
		log.Info("server listening",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.AppEnv),
			zap.String("bucket", cfg.StorageBucket),
			zap.Bool("auth", cfg.JWTSecret != ""),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-quit
	log.Info("shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("forced shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

// storageConfig holds the options the shared store is built from.
type storageConfig struct {
	opts atomic.Pointer[storage.Options]
}

func newStorageConfig(opts storage.Options) *storageConfig {
	c := &storageConfig{}
	c.opts.Store(&opts)
	return c
}

// Options returns the current settings.
func (c *storageConfig) Options() storage.Options {
	return *c.opts.Load()
}

// reload swaps in opts and drops the shared client, so in-flight requests
// finish on the old one and the next resolves a fresh one.
func (c *storageConfig) reload(opts storage.Options) {
	c.opts.Store(&opts)
	storage.Reconnect()
}
