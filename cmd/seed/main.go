// Command seed loads products from a JSON file into the catalog. Products
// whose id already exists are skipped, so the command can be rerun.
//
// Usage:
//
//	go run ./cmd/seed [-config configs/development.yaml] [-file data/mock_products.json]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/product-reranker/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/database"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/logger"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	file := flag.String("file", "", "seed file (defaults to catalog.seedFile)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	path := *file
	if path == "" {
		path = cfg.Catalog.SeedFile
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := seed(ctx, cfg.Catalog, path); err != nil {
		slog.Error("seeding failed", "error", err)
		os.Exit(1)
	}
}

func seed(ctx context.Context, cfg config.CatalogConfig, path string) error {
	db, err := database.New(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	store := catalog.NewStore(db, nil)
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening seed file: %w", err)
	}
	defer f.Close()

	products, err := catalog.DecodeSeed(f)
	if err != nil {
		return err
	}
	added, err := store.BulkCreate(ctx, products)
	if err != nil {
		return err
	}
	total, err := store.Count(ctx)
	if err != nil {
		return err
	}
	slog.Info("seed complete",
		"file", path,
		"read", len(products),
		"added", added,
		"skipped", len(products)-added,
		"catalog_size", total,
	)
	return nil
}
