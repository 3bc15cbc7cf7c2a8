package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tfl-bus-metrics/poller/internal/models"
)

// WriteMetrics upserts rows keyed by (line, date); a later run replaces
// the values an earlier run computed for the same day.
func (db *DB) WriteMetrics(ctx context.Context, rows []models.MetricsRow) error {
	if len(rows) == 0 {
		return nil
	}

	db.LockWrite()
	defer db.UnlockWrite()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO line_metrics (
			line_id, date, avg_delay_duration, delay_frequency, affected_stop_count,
			good_service_count, total_reports, uptime_percentage, computed_at_utc
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (line_id, date) DO UPDATE SET
			avg_delay_duration = excluded.avg_delay_duration,
			delay_frequency = excluded.delay_frequency,
			affected_stop_count = excluded.affected_stop_count,
			good_service_count = excluded.good_service_count,
			total_reports = excluded.total_reports,
			uptime_percentage = excluded.uptime_percentage,
			computed_at_utc = excluded.computed_at_utc
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare metrics statement: %w", err)
	}
	defer stmt.Close()

	computedAt := time.Now().UTC().Format(time.RFC3339)
	for _, m := range rows {
		_, err := stmt.ExecContext(ctx,
			m.LineID,
			m.DateString(),
			m.AvgDelayDuration,
			m.DelayFrequency,
			m.AffectedStopCount,
			m.GoodServiceCount,
			m.TotalReports,
			m.UptimePercentage,
			computedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert metrics for %s on %s: %w", m.LineID, m.DateString(), err)
		}
	}

	return tx.Commit()
}

const metricsColumns = `line_id, date, avg_delay_duration, delay_frequency, affected_stop_count,
	good_service_count, total_reports, uptime_percentage`

// MetricsByDate returns every line's metrics for one day, ordered by line
func (db *DB) MetricsByDate(ctx context.Context, date time.Time) ([]models.MetricsRow, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+metricsColumns+" FROM line_metrics WHERE date = ? ORDER BY line_id",
		date.Format(models.DateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics by date: %w", err)
	}
	return scanMetrics(rows)
}

// MetricsByLine returns up to limit most recent days for a line, newest first
func (db *DB) MetricsByLine(ctx context.Context, lineID string, limit int) ([]models.MetricsRow, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+metricsColumns+" FROM line_metrics WHERE line_id = ? ORDER BY date DESC LIMIT ?",
		lineID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics for line %s: %w", lineID, err)
	}
	return scanMetrics(rows)
}

// LatestMetricsDate returns the newest day with stored metrics, or nil
func (db *DB) LatestMetricsDate(ctx context.Context) (*time.Time, error) {
	var date sql.NullString
	if err := db.conn.QueryRowContext(ctx, "SELECT MAX(date) FROM line_metrics").Scan(&date); err != nil {
		return nil, fmt.Errorf("failed to query latest metrics date: %w", err)
	}
	if !date.Valid {
		return nil, nil
	}
	d, err := time.Parse(models.DateLayout, date.String)
	if err != nil {
		return nil, fmt.Errorf("invalid stored date %q: %w", date.String, err)
	}
	return &d, nil
}

func scanMetrics(rows *sql.Rows) ([]models.MetricsRow, error) {
	defer rows.Close()

	result := []models.MetricsRow{}
	for rows.Next() {
		var m models.MetricsRow
		var date string
		if err := rows.Scan(&m.LineID, &date, &m.AvgDelayDuration, &m.DelayFrequency,
			&m.AffectedStopCount, &m.GoodServiceCount, &m.TotalReports, &m.UptimePercentage); err != nil {
			return nil, fmt.Errorf("failed to scan metrics row: %w", err)
		}
		d, err := time.Parse(models.DateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("invalid stored date %q: %w", date, err)
		}
		m.Date = d
		result = append(result, m)
	}
	return result, rows.Err()
}
