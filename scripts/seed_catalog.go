package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"travelbook/internal/catalog"
	"travelbook/internal/config"
	"travelbook/internal/rowstore"

	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		catalogPath = flag.String("catalog", "configs/catalog.yaml", "path to catalog.yaml")
		configPath  = flag.String("config", "configs/config.yaml", "path to config.yaml")
		backend     = flag.String("backend", "", "override row_store.backend")
	)
	flag.Parse()

	cat, err := catalog.Load(*catalogPath)
	if err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *backend != "" {
		cfg.RowStore.Backend = *backend
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	store, closer, err := rowstore.Open(ctx, cfg.RowStore, &logger)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	res, err := catalog.Seed(ctx, store, cat, &logger)
	if err != nil {
		return err
	}

	fmt.Printf("done: created=%d skipped=%d\n", res.Created, res.Skipped)
	return nil
}
