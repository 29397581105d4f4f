// Package main is the entry point for the image-loader HTTP server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/image-loader/internal/config"
	"github.com/fleveque/image-loader/internal/imageload"
	"github.com/fleveque/image-loader/internal/logging"
	"github.com/fleveque/image-loader/internal/server"
	"github.com/fleveque/image-loader/internal/service"
	"github.com/fleveque/image-loader/internal/source"
	"github.com/fleveque/image-loader/internal/storage"
)

func main() {
	// run keeps deferred cleanup working; os.Exit would skip it.
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	// Sync commonly fails on stderr; nothing to do about it.
	defer func() { _ = logger.Sync() }()

	var repo storage.ConversionRepository
	if cfg.Storage.DatabasePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0755); err != nil {
			return fmt.Errorf("creating database directory: %w", err)
		}
		db, err := storage.NewDatabase(cfg.Storage.DatabasePath)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()
		repo = storage.NewConversionRepository(db)
	}

	loader := imageload.New(nil, cfg.Loader.SurfaceProvider(), logger)
	deps := server.Deps{
		Images:  service.NewImageService(loader, repo, logger),
		Fetcher: source.NewFetcher(cfg.Fetch.Timeout, cfg.Fetch.MaxBytes, logger),
	}
	srv := server.New(cfg, deps, logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		if err != nil {
			return err
		}
	}

	// Give in-flight conversions 10 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(ctx)
}
