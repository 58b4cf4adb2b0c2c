package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/celerix-dev/intern-connect/internal/api"
	"github.com/celerix-dev/intern-connect/internal/config"
	"github.com/celerix-dev/intern-connect/internal/logging"
)

func main() {
	// 1. Configuration
	cfg, err := config.Load()
	if err != nil {
		logging.Must("error", "console").Fatal("failed to load config", zap.Error(err))
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		logging.Must("error", "console").Fatal("failed to initialize logger", zap.Error(err))
	}
	defer log.Sync()

	if err := cfg.ValidateDevServer(); err != nil {
		log.Fatal("invalid dev server config", zap.Error(err))
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// 2. In-memory directory and token issuer
	h := &api.Handler{
		Dir:         api.NewDirectory(),
		Tokens:      api.NewTokens(cfg.DevServer.JWTSecret, cfg.DevServer.TokenTTL),
		Logger:      log.Named("api"),
		AutoApprove: cfg.DevServer.AutoApprove,
		Wrap:        cfg.DevServer.WrapResponses,
	}

	srv := &http.Server{
		Addr:              cfg.DevServer.Addr(),
		Handler:           api.NewRouter(h, log.Named("http")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 3. Serve until interrupted
	go func() {
		log.Info("dev server listening",
			zap.String("addr", srv.Addr),
			zap.Bool("auto_approve", h.AutoApprove),
			zap.Bool("wrap_responses", h.Wrap))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// 4. Handle Graceful Shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("shutdown signal received")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
	log.Info("dev server stopped")
}
