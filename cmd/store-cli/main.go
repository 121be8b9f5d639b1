package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/MorseWayne/catalog_shop/internal/catalog"
	"github.com/MorseWayne/catalog_shop/internal/cli"
	"github.com/MorseWayne/catalog_shop/internal/logger"
	"github.com/MorseWayne/catalog_shop/internal/mq"
	"github.com/MorseWayne/catalog_shop/internal/service"
)

func main() {
	catalogFile := flag.String("catalog", "", "catalog YAML file (defaults to the built-in catalog)")
	logLevel := flag.String("log-level", "error", "log level: debug, info, warn, error")
	flag.Parse()

	if err := run(*catalogFile, *logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "store-cli: %v\n", err)
		os.Exit(1)
	}
}

func run(catalogFile, logLevel string) error {
	lg, err := logger.New("dev", logLevel, "console", "store-cli", "")
	if err != nil {
		return err
	}
	defer func() { _ = lg.Sync() }()

	file, err := catalog.Load(catalogFile)
	if err != nil {
		return err
	}
	store, promotions, err := file.Build()
	if err != nil {
		return fmt.Errorf("build catalog: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	svc := service.NewStoreService(store, promotions, mq.NopPublisher{}, lg)
	return cli.NewMenu(svc, os.Stdin, os.Stdout, lg).Run(ctx)
}
