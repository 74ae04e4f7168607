package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/config"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := New(config.CatalogConfig{Driver: DriverSQLite, Path: ":memory:"})
	if err != nil {
		t.Fatalf("opening sqlite: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRebind(t *testing.T) {
	pg := &Client{driver: DriverPostgres}
	if got := pg.Rebind("SELECT * FROM t WHERE a = ? AND b IN (?,?)"); got != "SELECT * FROM t WHERE a = $1 AND b IN ($2,$3)" {
		t.Errorf("postgres Rebind = %q", got)
	}
	lite := &Client{driver: DriverSQLite}
	if got := lite.Rebind("a = ?"); got != "a = ?" {
		t.Errorf("sqlite Rebind = %q", got)
	}
}

func TestPlaceholders(t *testing.T) {
	tests := map[int]string{0: "", 1: "?", 3: "?,?,?"}
	for n, want := range tests {
		if got := Placeholders(n); got != want {
			t.Errorf("Placeholders(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestInTx(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	if _, err := c.DB.ExecContext(ctx, `CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT)`); err != nil {
		t.Fatal(err)
	}

	err := c.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, c.Rebind(`INSERT INTO kv (k, v) VALUES (?, ?)`), "a", "1"); err != nil {
			return err
		}
		return errors.New("abort")
	})
	if err == nil || err.Error() != "abort" {
		t.Fatalf("InTx error = %v, want abort", err)
	}

	var count int
	if err := c.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM kv`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("rolled back insert is visible: count = %d", count)
	}

	if err := c.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, c.Rebind(`INSERT INTO kv (k, v) VALUES (?, ?)`), "b", "2")
		return err
	}); err != nil {
		t.Fatalf("InTx commit: %v", err)
	}
	if err := c.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM kv`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}
