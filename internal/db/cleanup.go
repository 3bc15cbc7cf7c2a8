package db

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Cleanup deletes archived runs polled before now-retention, together with
// their records, and metrics rows for days older than the same cutoff.
func (db *DB) Cleanup(ctx context.Context, retention time.Duration) error {
	cutoff := time.Now().UTC().Add(-retention)

	db.LockWrite()
	defer db.UnlockWrite()

	queries := []struct {
		name  string
		query string
		arg   string
	}{
		{
			name:  "status_records",
			query: "DELETE FROM status_records WHERE run_id IN (SELECT run_id FROM status_runs WHERE polled_at_utc < ?)",
			arg:   cutoff.Format(time.RFC3339),
		},
		{
			name:  "status_runs",
			query: "DELETE FROM status_runs WHERE polled_at_utc < ?",
			arg:   cutoff.Format(time.RFC3339),
		},
		{
			name:  "line_metrics",
			query: "DELETE FROM line_metrics WHERE date < ?",
			arg:   cutoff.Format("2006-01-02"),
		},
	}

	totalDeleted := 0
	for _, q := range queries {
		result, err := db.conn.ExecContext(ctx, q.query, q.arg)
		if err != nil {
			return fmt.Errorf("failed to cleanup %s: %w", q.name, err)
		}
		rows, _ := result.RowsAffected()
		totalDeleted += int(rows)
	}

	if totalDeleted > 0 {
		log.Printf("Cleanup: deleted %d rows older than %s", totalDeleted, cutoff.Format(time.RFC3339))
	}
	return nil
}
