package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tfl-bus-metrics/poller/internal/config"
	"github.com/tfl-bus-metrics/poller/internal/db"
	"github.com/tfl-bus-metrics/poller/internal/pipeline"
	"github.com/tfl-bus-metrics/poller/internal/realtime/tfl"
	"github.com/tfl-bus-metrics/poller/internal/static"
)

func main() {
	once := flag.Bool("once", false, "run a single extract/transform/load cycle and exit")
	flag.Parse()

	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Println("Starting TfL bus metrics poller...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Config loaded: quota=%d/%v, concurrency=%d, interval=%v, retention=%v",
		cfg.RateLimitCalls, cfg.RatePeriod, cfg.Concurrency, cfg.RunInterval, cfg.Retention)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Local store: raw run archive and metrics table
	database, err := db.Connect(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to ensure database schema: %v", err)
	}

	sinks := []pipeline.Sink{database}

	if cfg.PostgresURL != "" {
		pg, err := db.NewPostgresSink(ctx, cfg.PostgresURL, cfg.MetricsTable)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		defer pg.Close()

		if err := pg.EnsureSchema(ctx); err != nil {
			log.Fatalf("Failed to ensure Postgres table: %v", err)
		}
		sinks = append(sinks, pg)
		log.Printf("Postgres sink enabled (table %s)", cfg.MetricsTable)
	}

	limiter := tfl.NewRateLimiter(cfg.RateLimitCalls, cfg.RatePeriod)
	requester := tfl.NewRequester(limiter,
		tfl.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		tfl.WithRetries(cfg.Retries),
		tfl.WithBackoff(cfg.Backoff),
	)
	client := tfl.NewClient(cfg.BaseURL, requester)

	p := pipeline.New(client, pipeline.Options{
		Concurrency:    cfg.Concurrency,
		StopsPath:      cfg.StopsPath,
		StopPointsPath: cfg.StopPointsPath,
		Archive:        database,
		Sinks:          sinks,
		AlertsFeedPath: cfg.AlertsFeedPath,
	})

	if *once {
		if !runOnce(ctx, p, database, cfg) {
			os.Exit(1)
		}
		return
	}

	log.Println("Running initial cycle...")
	runOnce(ctx, p, database, cfg)

	ticker := time.NewTicker(cfg.RunInterval)
	defer ticker.Stop()

	log.Printf("Poller running (every %v)", cfg.RunInterval)
	for {
		select {
		case <-ticker.C:
			runOnce(ctx, p, database, cfg)
		case <-ctx.Done():
			log.Println("Shutting down...")
			return
		}
	}
}

// runOnce performs one cycle and reports whether it completed without error
func runOnce(ctx context.Context, p *pipeline.Pipeline, database *db.DB, cfg *config.Config) bool {
	static.WarnIfStale(cfg.ReferenceMaxAge, cfg.StopsPath, cfg.StopPointsPath)

	ok := true
	report, err := p.Run(ctx)
	if err != nil {
		log.Printf("Run error: %v", err)
		ok = false
	}
	if report != nil && report.NoLines {
		log.Printf("Run %s: zero lines processed", report.RunID)
	}

	if cfg.Retention > 0 {
		if err := database.Cleanup(ctx, cfg.Retention); err != nil {
			log.Printf("Cleanup error: %v", err)
		}
	}
	return ok
}
