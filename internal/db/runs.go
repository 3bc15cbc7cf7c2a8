package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tfl-bus-metrics/poller/internal/models"
)

// StatusRun describes one extraction run
type StatusRun struct {
	RunID           string    `json:"runId"`
	PolledAt        time.Time `json:"polledAt"`
	LinesDiscovered int       `json:"linesDiscovered"`
	LinesFailed     int       `json:"linesFailed"`
	RecordCount     int       `json:"recordCount"`
}

// SaveRun archives a run and all of its raw status records in one transaction
func (db *DB) SaveRun(ctx context.Context, run StatusRun, records []models.LineStatusRecord) error {
	db.LockWrite()
	defer db.UnlockWrite()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO status_runs (run_id, polled_at_utc, lines_discovered, lines_failed, record_count)
		VALUES (?, ?, ?, ?, ?)
	`, run.RunID, run.PolledAt.UTC().Format(time.RFC3339), run.LinesDiscovered, run.LinesFailed, len(records))
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.RunID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO status_records (
			run_id, line_id, line_name, status_severity, status_severity_description,
			reason, from_date_utc, to_date_utc, created_utc, modified_utc
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare record statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		_, err := stmt.ExecContext(ctx,
			run.RunID,
			r.LineID,
			r.LineName,
			r.StatusSeverity,
			r.StatusSeverityDescription,
			r.Reason,
			formatTime(r.FromDate),
			formatTime(r.ToDate),
			formatTime(r.Created),
			formatTime(r.Modified),
		)
		if err != nil {
			return fmt.Errorf("failed to insert record for line %s: %w", r.LineID, err)
		}
	}

	return tx.Commit()
}

// LatestRun returns the most recent run, or nil if none has been archived
func (db *DB) LatestRun(ctx context.Context) (*StatusRun, error) {
	var run StatusRun
	var polledAt string
	err := db.conn.QueryRowContext(ctx, `
		SELECT run_id, polled_at_utc, lines_discovered, lines_failed, record_count
		FROM status_runs
		ORDER BY polled_at_utc DESC, rowid DESC
		LIMIT 1
	`).Scan(&run.RunID, &polledAt, &run.LinesDiscovered, &run.LinesFailed, &run.RecordCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest run: %w", err)
	}

	run.PolledAt, _ = time.Parse(time.RFC3339, polledAt)
	return &run, nil
}

// RunRecords returns the raw records archived for a run
func (db *DB) RunRecords(ctx context.Context, runID string) ([]models.LineStatusRecord, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT line_id, line_name, status_severity, status_severity_description,
			reason, from_date_utc, to_date_utc, created_utc, modified_utc
		FROM status_records
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query records for run %s: %w", runID, err)
	}
	defer rows.Close()

	var records []models.LineStatusRecord
	for rows.Next() {
		var r models.LineStatusRecord
		var lineName, description sql.NullString
		var severity sql.NullInt64
		var reason, from, to, created, modified sql.NullString

		if err := rows.Scan(&r.LineID, &lineName, &severity, &description,
			&reason, &from, &to, &created, &modified); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}

		r.LineName = lineName.String
		r.StatusSeverityDescription = description.String
		if severity.Valid {
			v := int(severity.Int64)
			r.StatusSeverity = &v
		}
		if reason.Valid {
			r.Reason = &reason.String
		}
		r.FromDate = parseTime(from)
		r.ToDate = parseTime(to)
		r.Created = parseTime(created)
		r.Modified = parseTime(modified)
		records = append(records, r)
	}
	return records, rows.Err()
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339Nano)
	return &s
}

func parseTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	return models.ParseTimestamp(s.String)
}
