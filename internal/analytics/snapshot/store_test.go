package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/product-reranker/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/database"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.New(config.CatalogConfig{Driver: database.DriverSQLite, Path: ":memory:"})
	if err != nil {
		t.Fatalf("opening sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	s := NewStore(db)
	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return s
}

func TestLatestEmpty(t *testing.T) {
	s := newTestStore(t)
	got, err := s.Latest(context.Background())
	if err != nil || got != nil {
		t.Errorf("Latest = (%v, %v), want (nil, nil)", got, err)
	}
}

func TestSaveAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		stats := analytics.AggregatedStats{
			TotalRequests: int64(i),
			TopQueries:    []analytics.QueryCount{{Query: "headphones", Count: int64(i)}},
			CapturedAt:    time.Now().UTC(),
		}
		if err := s.Save(ctx, stats); err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
	}

	latest, err := s.Latest(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if latest.TotalRequests != 3 || latest.TopQueries[0].Query != "headphones" {
		t.Errorf("latest = %+v", latest)
	}

	list, err := s.ListSnapshots(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].TotalRequests != 3 || list[1].TotalRequests != 2 {
		t.Errorf("list = %+v", list)
	}
}

type fixedSource struct{ stats analytics.AggregatedStats }

func (f fixedSource) Stats() analytics.AggregatedStats { return f.stats }

func TestRunSavesFinalSnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Run(ctx, fixedSource{analytics.AggregatedStats{TotalRequests: 42}}, time.Hour); err != nil {
		t.Fatal(err)
	}
	latest, err := s.Latest(context.Background())
	if err != nil || latest == nil || latest.TotalRequests != 42 {
		t.Errorf("Latest = (%+v, %v)", latest, err)
	}
}
