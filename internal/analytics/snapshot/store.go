// Package snapshot persists periodic copies of the aggregated rerank
// analytics so they survive restarts of the analytics service.
package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/product-reranker/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/database"
)

var schemas = map[string]string{
	database.DriverSQLite: `
CREATE TABLE IF NOT EXISTS analytics_snapshots (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    data        TEXT      NOT NULL,
    captured_at TIMESTAMP NOT NULL
)`,
	database.DriverPostgres: `
CREATE TABLE IF NOT EXISTS analytics_snapshots (
    id          BIGSERIAL   PRIMARY KEY,
    data        JSONB       NOT NULL,
    captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
}

// StatsSource produces the stats to persist. *analytics.Aggregator
// implements it.
type StatsSource interface {
	Stats() analytics.AggregatedStats
}

// Store persists aggregated analytics snapshots in the analytics_snapshots
// table.
type Store struct {
	db     *database.Client
	logger *slog.Logger
}

func NewStore(db *database.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "analytics-snapshots"),
	}
}

// EnsureSchema creates the snapshot table when it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ddl, ok := schemas[s.db.Driver()]
	if !ok {
		return fmt.Errorf("no snapshot schema for driver %q", s.db.Driver())
	}
	if _, err := s.db.DB.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("creating analytics_snapshots table: %w", err)
	}
	return nil
}

// Save persists a stats snapshot.
func (s *Store) Save(ctx context.Context, stats analytics.AggregatedStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}

	capturedAt := stats.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now().UTC()
	}
	_, err = s.db.DB.ExecContext(ctx,
		s.db.Rebind(`INSERT INTO analytics_snapshots (data, captured_at) VALUES (?, ?)`),
		string(data), capturedAt,
	)
	if err != nil {
		return fmt.Errorf("saving analytics snapshot: %w", err)
	}

	s.logger.Info("analytics snapshot saved",
		"total_requests", stats.TotalRequests,
		"failed_requests", stats.FailedRequests,
	)
	return nil
}

// Latest loads the most recent snapshot. It returns nil, nil when none
// exist yet.
func (s *Store) Latest(ctx context.Context) (*analytics.AggregatedStats, error) {
	var data []byte
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT data FROM analytics_snapshots ORDER BY id DESC LIMIT 1`,
	).Scan(&data)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}

	var stats analytics.AggregatedStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &stats, nil
}

// ListSnapshots returns the last limit snapshots, newest first.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]analytics.AggregatedStats, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		s.db.Rebind(`SELECT data FROM analytics_snapshots ORDER BY id DESC LIMIT ?`),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []analytics.AggregatedStats
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		var stats analytics.AggregatedStats
		if err := json.Unmarshal(data, &stats); err != nil {
			s.logger.Warn("skipping corrupt snapshot", "error", err)
			continue
		}
		snapshots = append(snapshots, stats)
	}

	return snapshots, rows.Err()
}

// Run saves a snapshot of src every interval until ctx is cancelled, then
// saves a final one.
func (s *Store) Run(ctx context.Context, src StatsSource, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.logger.Info("periodic snapshot started", "interval", interval)

	for {
		select {
		case <-ticker.C:
			if err := s.Save(ctx, src.Stats()); err != nil {
				s.logger.Error("periodic snapshot failed", "error", err)
			}
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.Save(shutdownCtx, src.Stats()); err != nil {
				s.logger.Error("final snapshot failed", "error", err)
				return err
			}
			return nil
		}
	}
}
