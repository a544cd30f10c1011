package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adda-Baaj/logo-fetcher/internal/app"
	"github.com/Adda-Baaj/logo-fetcher/internal/config"
	"github.com/Adda-Baaj/logo-fetcher/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "logofetch failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	maxAlternatives := flag.Int("max", cfg.MaxAlternatives, "number of distinct raster logos to collect (1-5)")
	scrape := flag.Bool("scrape", cfg.IncludeScraping, "scrape the company website for additional candidates")
	outDir := flag.String("out", cfg.OutputDir, "directory PNG files are written to")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: logofetch [flags] <domain>\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		return fmt.Errorf("expected exactly one domain argument")
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	finder, err := app.NewFinder(ctx, cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize finder", "error", err)
		return err
	}
	defer finder.Close()

	res, err := finder.Lookup(ctx, flag.Arg(0), *maxAlternatives, *scrape)
	if err != nil {
		return err
	}

	paths, err := app.WritePNGs(*outDir, res.Domain, res.Images)
	if err != nil {
		return fmt.Errorf("write logos: %w", err)
	}
	for i, img := range res.Images.Entries() {
		fmt.Printf("%-18s %4dx%-4d %s\n", img.SourceLabel, img.Width(), img.Height(), paths[i])
	}
	for _, v := range res.Vectors {
		fmt.Printf("%-18s svg       %s\n", v.SourceLabel, v.URL)
	}
	if res.Images.Len() == 0 && len(res.Vectors) == 0 {
		fmt.Printf("no logos found for %s\n", res.Domain)
	}
	return nil
}
