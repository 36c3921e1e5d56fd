package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"launchpad/internal/app"
	"launchpad/internal/backend"
	"launchpad/internal/config"
	"launchpad/internal/export"
	"launchpad/internal/logging"
	"launchpad/internal/search"
)

func main() {
	cfg := config.Load()
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logger = zap.NewExample()
		logger.Warn("falling back to example logger", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	docs, closeStore, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open document store", zap.String("backend", cfg.Backend), zap.Error(err))
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("close document store", zap.Error(err))
		}
	}()

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
	}
	searchService := search.NewService(meiliClient, logger)
	defer searchService.Close()

	metrics := app.NewMetrics()
	service := app.New(docs, app.Options{
		Logger:  logger,
		Search:  searchService,
		Export:  export.NewService(cfg.Author),
		Metrics: metrics,
	})
	if err := service.WarmSearch(ctx); err != nil {
		logger.Warn("initial load failed, will retry on first request", zap.Error(err))
	}

	httpServer := app.NewHTTPServer(service, app.HTTPOptions{
		CORSOrigin:    cfg.CORSOrigin,
		Logger:        logger,
		Metrics:       metrics,
		MutationRPS:   cfg.MutationRPS,
		MutationBurst: cfg.MutationBurst,
	})
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("launchpad API listening", zap.String("addr", cfg.Addr), zap.String("backend", cfg.Backend))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}
