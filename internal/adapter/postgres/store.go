// Package postgres reads sensor readings from a Postgres telemetry
// database, as an alternative stream source to CSV files.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/slopesense/rockfall-risk/internal/domain"
)

// Store wraps a pgx connection pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Connect opens a pooled connection and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string, logger *slog.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool, logger: logger}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// FetchSensorReadings loads one sensor kind's readings for the window,
// oldest first. Null values are preserved; alignment decides what to do
// with them.
func (s *Store) FetchSensorReadings(ctx context.Context, kind domain.StreamKind, from, to time.Time) ([]domain.RawRecord, error) {
	rows, err := s.pool.Query(ctx, `
SELECT ts, value
FROM sensor_readings
WHERE kind = $1 AND ts >= $2 AND ts < $3
ORDER BY ts`, string(kind), from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch %s readings: %w", kind, err)
	}
	defer rows.Close()

	var records []domain.RawRecord
	for rows.Next() {
		var ts time.Time
		var value *float64
		if err := rows.Scan(&ts, &value); err != nil {
			return nil, fmt.Errorf("scan %s reading: %w", kind, err)
		}
		records = append(records, domain.RawRecord{Timestamp: ts.UTC(), Kind: kind, Value: value})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch %s readings: %w", kind, err)
	}
	return records, nil
}

// FetchAllStreams loads every sensor kind for the window. Kinds with no
// rows are omitted so alignment treats them as absent streams.
func (s *Store) FetchAllStreams(ctx context.Context, from, to time.Time) (map[domain.StreamKind][]domain.RawRecord, error) {
	streams := make(map[domain.StreamKind][]domain.RawRecord, len(domain.SensorKinds))
	for _, kind := range domain.SensorKinds {
		records, err := s.FetchSensorReadings(ctx, kind, from, to)
		if err != nil {
			return nil, err
		}
		if len(records) > 0 {
			streams[kind] = records
		}
	}
	return streams, nil
}
