package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"schoolattend/internal/attendance"
	"schoolattend/internal/auth"
	"schoolattend/internal/config"
	"schoolattend/internal/httpapi"
	"schoolattend/internal/logging"
	"schoolattend/internal/metrics"
	"schoolattend/internal/store"
	"schoolattend/internal/validation"
)

func main() {
	cfg := config.Load()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := runHTTP(cfg, logger); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, logger *zap.Logger) error {
	ctx := context.Background()

	kv, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return err
	}
	defer func() { _ = kv.Close() }()
	logger.Info("store opened", zap.String("backend", cfg.StoreBackend))

	validate := validation.New()
	repo := attendance.NewRepository(kv, auth.NewHasher(cfg.BcryptCost))
	authSvc := auth.NewService(repo, validate, logger.Named("auth"))
	if err := authSvc.Bootstrap(ctx); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := httpapi.NewRouter(httpapi.Deps{
		KV:                  kv,
		Auth:                authSvc,
		Attendance:          attendance.NewService(repo, validate, logger.Named("attendance")),
		Metrics:             metrics.New(reg),
		Gatherer:            reg,
		Log:                 logger.Named("http"),
		Issuer:              cfg.JWTIssuer,
		SigningKey:          cfg.JWTSigningKey,
		AccessTTL:           cfg.AccessTTL,
		RateLimitPerMin:     cfg.RateLimitPerMin,
		LoginAttemptsPerMin: cfg.LoginAttemptsPerMin,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	logger.Info("shutting down server")

	// give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", zap.Error(err))
	}
	logger.Info("server exited")
	return nil
}
