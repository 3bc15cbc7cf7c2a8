package tfl

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tfl-bus-metrics/poller/internal/models"
)

// DefaultConcurrency is the worker count used when FetchAll is given a non-positive one
const DefaultConcurrency = 5

// FetchResult is what a status fan-out produced.
// A line present in Failed contributed no records.
type FetchResult struct {
	Records   []models.LineStatusRecord
	Succeeded []string
	Failed    map[string]error
	Duration  time.Duration
}

// lineResult is the outcome of one line's work unit
type lineResult struct {
	lineID  string
	records []models.LineStatusRecord
	err     error
}

// FetchAll fetches the status of every line on a pool of `concurrency` workers.
// All workers share the client's rate limiter, so the combined call rate
// never exceeds its quota. A line that cannot be fetched is logged and
// skipped; FetchAll itself never fails.
func (c *Client) FetchAll(ctx context.Context, lineIDs []string, concurrency int) FetchResult {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	start := time.Now()

	// Each worker owns one slot, so no locking is needed to collect results
	results := make([]lineResult, len(lineIDs))

	var g errgroup.Group
	g.SetLimit(concurrency)

	for i, lineID := range lineIDs {
		g.Go(func() error {
			records, err := c.FetchLineStatus(ctx, lineID)
			results[i] = lineResult{lineID: lineID, records: records, err: err}
			// Never abort the group: a failed line only removes its own records
			return nil
		})
	}
	_ = g.Wait()

	out := FetchResult{
		Records:   make([]models.LineStatusRecord, 0, len(lineIDs)),
		Succeeded: make([]string, 0, len(lineIDs)),
		Failed:    make(map[string]error),
	}
	for _, res := range results {
		if res.err != nil {
			log.Printf("TfL: error fetching line %s: %v", res.lineID, res.err)
			out.Failed[res.lineID] = res.err
			continue
		}
		out.Succeeded = append(out.Succeeded, res.lineID)
		out.Records = append(out.Records, res.records...)
	}
	out.Duration = time.Since(start)

	log.Printf("TfL: fetched %d status records from %d/%d lines in %v (%d failed)",
		len(out.Records), len(out.Succeeded), len(lineIDs), out.Duration.Round(time.Millisecond), len(out.Failed))
	return out
}
