package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/database"
	apperrors "github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/errors"
)

const productColumns = `product_id, title, description, category, price, rating, num_reviews`

var schemas = map[string]string{
	database.DriverSQLite: `
CREATE TABLE IF NOT EXISTS products (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    product_id  TEXT    NOT NULL UNIQUE,
    title       TEXT    NOT NULL,
    description TEXT    NOT NULL DEFAULT '',
    category    TEXT    NOT NULL DEFAULT '',
    price       REAL    NOT NULL DEFAULT 0,
    rating      REAL    NOT NULL DEFAULT 0,
    num_reviews INTEGER NOT NULL DEFAULT 0,
    created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	database.DriverPostgres: `
CREATE TABLE IF NOT EXISTS products (
    id          BIGSERIAL PRIMARY KEY,
    product_id  VARCHAR(100) NOT NULL UNIQUE,
    title       VARCHAR(500) NOT NULL,
    description TEXT         NOT NULL DEFAULT '',
    category    VARCHAR(100) NOT NULL DEFAULT '',
    price       DOUBLE PRECISION NOT NULL DEFAULT 0,
    rating      DOUBLE PRECISION NOT NULL DEFAULT 0,
    num_reviews INTEGER      NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW()
)`,
}

// QueryObserver receives the duration of each catalog query by operation.
type QueryObserver func(operation string, d time.Duration)

// Store reads and writes products in the SQL catalog.
type Store struct {
	db      *database.Client
	observe QueryObserver
	logger  *slog.Logger
}

// NewStore creates a Store. observe may be nil.
func NewStore(db *database.Client, observe QueryObserver) *Store {
	if observe == nil {
		observe = func(string, time.Duration) {}
	}
	return &Store{
		db:      db,
		observe: observe,
		logger:  slog.Default().With("component", "catalog-store"),
	}
}

// EnsureSchema creates the products table when it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ddl, ok := schemas[s.db.Driver()]
	if !ok {
		return fmt.Errorf("no products schema for driver %q", s.db.Driver())
	}
	if _, err := s.db.DB.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("creating products table: %w", err)
	}
	return nil
}

// GetByIDs returns the products whose ids are in ids, keyed by id. Ids not
// in the catalog are absent from the map.
func (s *Store) GetByIDs(ctx context.Context, ids []string) (map[string]Product, error) {
	found := make(map[string]Product, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	defer s.timed("get_by_ids")()

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := s.db.Rebind(`SELECT ` + productColumns + ` FROM products WHERE product_id IN (` + database.Placeholders(len(ids)) + `)`)
	rows, err := s.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying products by id: %w", errors.Join(apperrors.ErrCatalogUnavailable, err))
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		found[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating products: %w", err)
	}
	return found, nil
}

// All returns every product ordered by id.
func (s *Store) All(ctx context.Context) ([]Product, error) {
	defer s.timed("all")()

	rows, err := s.db.DB.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY product_id`)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", errors.Join(apperrors.ErrCatalogUnavailable, err))
	}
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating products: %w", err)
	}
	return products, nil
}

// Create inserts p. It returns ErrProductExists when the id is taken.
func (s *Store) Create(ctx context.Context, p Product) error {
	if err := p.Validate(); err != nil {
		return apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, err.Error())
	}
	defer s.timed("create")()

	inserted, err := s.insert(ctx, s.db.DB, p)
	if err != nil {
		return err
	}
	if !inserted {
		return fmt.Errorf("product %q: %w", p.ID, apperrors.ErrProductExists)
	}
	return nil
}

// BulkCreate inserts products in one transaction, skipping ids that already
// exist, and returns how many rows were added.
func (s *Store) BulkCreate(ctx context.Context, products []Product) (int, error) {
	for _, p := range products {
		if err := p.Validate(); err != nil {
			return 0, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, err.Error())
		}
	}
	defer s.timed("bulk_create")()

	added := 0
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		for _, p := range products {
			inserted, err := s.insert(ctx, tx, p)
			if err != nil {
				return err
			}
			if inserted {
				added++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("products inserted", "requested", len(products), "added", added)
	return added, nil
}

// Count returns the number of products in the catalog.
func (s *Store) Count(ctx context.Context) (int, error) {
	defer s.timed("count")()

	var n int
	if err := s.db.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting products: %w", errors.Join(apperrors.ErrCatalogUnavailable, err))
	}
	return n, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) insert(ctx context.Context, db execer, p Product) (bool, error) {
	res, err := db.ExecContext(ctx,
		s.db.Rebind(`INSERT INTO products (`+productColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT (product_id) DO NOTHING`),
		p.ID, p.Title, p.Description, p.Category, p.Price, p.Rating, p.NumReviews,
	)
	if err != nil {
		return false, fmt.Errorf("inserting product %q: %w", p.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("inserting product %q: %w", p.ID, err)
	}
	return n > 0, nil
}

func scanProduct(rows *sql.Rows) (Product, error) {
	var p Product
	if err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.Category, &p.Price, &p.Rating, &p.NumReviews); err != nil {
		return Product{}, fmt.Errorf("scanning product row: %w", err)
	}
	return p, nil
}

func (s *Store) timed(operation string) func() {
	start := time.Now()
	return func() { s.observe(operation, time.Since(start)) }
}
