package db

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tfl-bus-metrics/poller/internal/models"
)

var metricsCopyColumns = []string{
	"line_id",
	"date",
	"avg_delay_duration",
	"delay_frequency",
	"affected_stop_count",
	"good_service_count",
	"total_reports",
	"uptime_percentage",
}

// PostgresSink appends metrics rows to a Postgres table.
// It does not deduplicate: loading the same run twice stores it twice.
type PostgresSink struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresSink connects to databaseURL and checks the connection
func NewPostgresSink(ctx context.Context, databaseURL, table string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresSink{pool: pool, table: table}, nil
}

func (s *PostgresSink) Close() {
	s.pool.Close()
}

func (s *PostgresSink) tableName() string {
	return pgx.Identifier{s.table}.Sanitize()
}

// EnsureSchema creates the metrics table if it is missing
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			line_id TEXT,
			date DATE,
			avg_delay_duration DOUBLE PRECISION,
			delay_frequency INT,
			affected_stop_count INT,
			good_service_count INT,
			total_reports INT,
			uptime_percentage DOUBLE PRECISION
		)
	`, s.tableName())

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create table %s: %w", s.table, err)
	}
	return nil
}

// WriteMetrics appends rows with COPY
func (s *PostgresSink) WriteMetrics(ctx context.Context, rows []models.MetricsRow) error {
	if len(rows) == 0 {
		return nil
	}

	n, err := s.pool.CopyFrom(ctx, pgx.Identifier{s.table}, metricsCopyColumns, pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
		m := rows[i]
		return []any{
			m.LineID,
			m.Date,
			m.AvgDelayDuration,
			m.DelayFrequency,
			m.AffectedStopCount,
			m.GoodServiceCount,
			m.TotalReports,
			m.UptimePercentage,
		}, nil
	}))
	if err != nil {
		return fmt.Errorf("failed to copy metrics into %s: %w", s.table, err)
	}

	log.Printf("Postgres: appended %d rows to %s", n, s.table)
	return nil
}

// CountRows returns the number of rows currently stored for a line
func (s *PostgresSink) CountRows(ctx context.Context, lineID string) (int, error) {
	var n int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE line_id = $1", s.tableName())
	if err := s.pool.QueryRow(ctx, query, lineID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return n, nil
}
