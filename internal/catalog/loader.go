package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/resilience"
)

// seedRecord accepts both "id" and the legacy "product_id" key.
type seedRecord struct {
	Product
	ProductID string `json:"product_id"`
}

// DecodeSeed reads a JSON array of products.
func DecodeSeed(r io.Reader) ([]Product, error) {
	var records []seedRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decoding seed products: %w", err)
	}
	products := make([]Product, len(records))
	for i, rec := range records {
		p := rec.Product
		if p.ID == "" {
			p.ID = rec.ProductID
		}
		products[i] = p
	}
	return products, nil
}

// Loader seeds an empty catalog from a JSON file.
type Loader struct {
	store  *Store
	logger *slog.Logger
}

func NewLoader(store *Store) *Loader {
	return &Loader{
		store:  store,
		logger: slog.Default().With("component", "catalog-loader"),
	}
}

// SeedIfEmpty creates the schema and, when the catalog has no products,
// inserts the products in path. A missing file is not an error. It returns
// the number of products inserted.
func (l *Loader) SeedIfEmpty(ctx context.Context, path string) (int, error) {
	var count int
	err := resilience.Retry(ctx, "catalog-schema", resilience.RetryConfig{MaxAttempts: 5}, func() error {
		if err := l.store.EnsureSchema(ctx); err != nil {
			return err
		}
		n, err := l.store.Count(ctx)
		count = n
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("preparing catalog: %w", err)
	}
	if count > 0 {
		l.logger.Info("catalog already populated, skipping seed", "products", count)
		return 0, nil
	}
	if path == "" {
		return 0, nil
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		l.logger.Warn("seed file not found, catalog left empty", "path", path)
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("opening seed file: %w", err)
	}
	defer f.Close()

	products, err := DecodeSeed(f)
	if err != nil {
		return 0, err
	}
	added, err := l.store.BulkCreate(ctx, products)
	if err != nil {
		return 0, fmt.Errorf("seeding catalog from %s: %w", path, err)
	}
	l.logger.Info("catalog seeded", "path", path, "products", added)
	return added, nil
}
