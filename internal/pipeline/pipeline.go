package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tfl-bus-metrics/poller/internal/db"
	"github.com/tfl-bus-metrics/poller/internal/feed"
	"github.com/tfl-bus-metrics/poller/internal/metrics"
	"github.com/tfl-bus-metrics/poller/internal/models"
	"github.com/tfl-bus-metrics/poller/internal/static"
)

// Options configures a Pipeline. Archive, Sinks and AlertsFeedPath are optional.
type Options struct {
	Concurrency    int
	StopsPath      string
	StopPointsPath string
	Archive        RunArchive
	Sinks          []Sink
	AlertsFeedPath string
}

// Pipeline sequences extract, transform and load for one run
type Pipeline struct {
	source LineSource
	opts   Options
	now    func() time.Time
}

// New creates a pipeline reading live status from source
func New(source LineSource, opts Options) *Pipeline {
	return &Pipeline{source: source, opts: opts, now: time.Now}
}

// ExtractResult is the raw status table of one run
type ExtractResult struct {
	RunID           string
	PolledAt        time.Time
	LinesDiscovered int
	Records         []models.LineStatusRecord
	FailedLines     []string
}

// NoLines reports whether line discovery came back empty.
// Such a run is reportable but not an error.
func (r *ExtractResult) NoLines() bool {
	return r.LinesDiscovered == 0
}

// RunReport summarises a completed run
type RunReport struct {
	RunID           string
	PolledAt        time.Time
	NoLines         bool
	LinesDiscovered int
	LinesFailed     int
	Records         int
	Rows            int
	Summary         metrics.Summary
	Alerts          int
	Duration        time.Duration
}

// Extract discovers every bus line and fetches its status.
// It never fails: discovery failure yields a result with NoLines set and
// per-line failures are listed in FailedLines.
func (p *Pipeline) Extract(ctx context.Context) *ExtractResult {
	result := &ExtractResult{
		RunID:    uuid.New().String(),
		PolledAt: p.now().UTC(),
	}

	lines := p.source.ListBusLines(ctx)
	result.LinesDiscovered = len(lines)
	if len(lines) == 0 {
		log.Printf("Pipeline: run %s discovered no bus lines", result.RunID)
		return result
	}

	fetched := p.source.FetchAll(ctx, lines, p.opts.Concurrency)
	result.Records = fetched.Records
	for lineID := range fetched.Failed {
		result.FailedLines = append(result.FailedLines, lineID)
	}
	sort.Strings(result.FailedLines)

	if p.opts.Archive != nil {
		run := db.StatusRun{
			RunID:           result.RunID,
			PolledAt:        result.PolledAt,
			LinesDiscovered: result.LinesDiscovered,
			LinesFailed:     len(result.FailedLines),
		}
		if err := p.opts.Archive.SaveRun(ctx, run, result.Records); err != nil {
			log.Printf("Pipeline: failed to archive run %s: %v", result.RunID, err)
		}
	}

	log.Printf("Pipeline: run %s fetched %d records from %d/%d lines",
		result.RunID, len(result.Records), result.LinesDiscovered-len(result.FailedLines), result.LinesDiscovered)
	return result
}

// Transform aggregates raw records against the reference tables
func (p *Pipeline) Transform(records []models.LineStatusRecord, ref *static.Reference) []models.MetricsRow {
	return metrics.Aggregate(records, ref.StopPoints, ref.Stops)
}

// Run performs one full extract, transform and load cycle.
// Every sink is attempted; their errors are joined into the returned error.
func (p *Pipeline) Run(ctx context.Context) (*RunReport, error) {
	start := p.now()

	extracted := p.Extract(ctx)
	report := &RunReport{
		RunID:           extracted.RunID,
		PolledAt:        extracted.PolledAt,
		NoLines:         extracted.NoLines(),
		LinesDiscovered: extracted.LinesDiscovered,
		LinesFailed:     len(extracted.FailedLines),
		Records:         len(extracted.Records),
	}

	if report.NoLines {
		log.Printf("Pipeline: run %s processed zero lines, skipping transform and load", report.RunID)
		report.Duration = p.now().Sub(start)
		return report, nil
	}

	ref, err := static.LoadReference(p.opts.StopsPath, p.opts.StopPointsPath)
	if err != nil {
		return report, fmt.Errorf("failed to load reference data: %w", err)
	}

	rows := p.Transform(extracted.Records, ref)
	report.Rows = len(rows)
	report.Summary = metrics.Summarize(rows)
	log.Printf("Metrics: computed %d rows for %d lines over %d days (mean uptime %.1f%%)",
		report.Summary.Rows, report.Summary.Lines, report.Summary.Days, report.Summary.MeanUptime)

	if p.opts.AlertsFeedPath != "" {
		msg := feed.BuildAlertFeed(extracted.Records, extracted.PolledAt)
		if err := feed.WriteAlertFeed(p.opts.AlertsFeedPath, msg); err != nil {
			log.Printf("Pipeline: failed to write alerts feed: %v", err)
		} else {
			report.Alerts = len(msg.GetEntity())
			log.Printf("Pipeline: wrote %d alerts to %s", report.Alerts, p.opts.AlertsFeedPath)
		}
	}

	var sinkErrs []error
	for i, sink := range p.opts.Sinks {
		if err := sink.WriteMetrics(ctx, rows); err != nil {
			log.Printf("Pipeline: sink %d failed: %v", i, err)
			sinkErrs = append(sinkErrs, err)
		}
	}

	report.Duration = p.now().Sub(start)
	log.Printf("Pipeline: run %s finished in %v", report.RunID, report.Duration)

	if len(sinkErrs) > 0 {
		return report, fmt.Errorf("failed to load metrics: %w", errors.Join(sinkErrs...))
	}
	return report, nil
}
