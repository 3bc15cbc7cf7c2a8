package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/tfl-bus-metrics/poller/internal/api"
	"github.com/tfl-bus-metrics/poller/internal/config"
	"github.com/tfl-bus-metrics/poller/internal/db"
)

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	database, err := db.Connect(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize SQLite database: %v", err)
	}
	defer database.Close()

	// The poller may not have run yet; an empty store still serves empty results
	if err := database.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("Failed to ensure database schema: %v", err)
	}

	router := api.NewRouter(database, cfg.AllowedOrigins)

	log.Printf("API server starting on :%s", cfg.Port)
	log.Println("Endpoints:")
	log.Println("  GET /api/metrics?date=YYYY-MM-DD")
	log.Println("  GET /api/metrics/lines/{lineId}?days=N")
	log.Println("  GET /api/runs/latest")
	log.Println("  GET /health (with database check)")

	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
