package pipeline

import (
	"context"

	"github.com/tfl-bus-metrics/poller/internal/db"
	"github.com/tfl-bus-metrics/poller/internal/models"
	"github.com/tfl-bus-metrics/poller/internal/realtime/tfl"
)

//go:generate mockgen -destination=mock_pipeline.go -package=pipeline github.com/tfl-bus-metrics/poller/internal/pipeline Sink,RunArchive

// Sink receives the finished metrics table of a run
type Sink interface {
	WriteMetrics(ctx context.Context, rows []models.MetricsRow) error
}

// RunArchive keeps the raw records of each extraction
type RunArchive interface {
	SaveRun(ctx context.Context, run db.StatusRun, records []models.LineStatusRecord) error
}

// LineSource discovers bus lines and fetches their status
type LineSource interface {
	ListBusLines(ctx context.Context) []string
	FetchAll(ctx context.Context, lineIDs []string, concurrency int) tfl.FetchResult
}
