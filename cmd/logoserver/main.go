package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Adda-Baaj/logo-fetcher/internal/app"
	"github.com/Adda-Baaj/logo-fetcher/internal/config"
	"github.com/Adda-Baaj/logo-fetcher/internal/logger"
	"github.com/Adda-Baaj/logo-fetcher/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "logoserver start failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.InfoObj("logoserver starting", "config", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	finder, err := app.NewFinder(ctx, cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize finder", "error", err)
		return err
	}
	defer finder.Close()

	engine, err := server.NewRouter(server.Options{
		Finder:          finder,
		Logger:          log,
		DefaultScraping: cfg.IncludeScraping,
		Debug:           strings.EqualFold(cfg.LogLevel, "debug"),
	})
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	if err := server.Serve(ctx, cfg.HTTPAddr, engine, log); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
